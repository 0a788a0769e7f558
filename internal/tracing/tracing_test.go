package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, testLogger)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, span := Start(context.Background(), "test")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		ServiceName: "isstracker-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, testLogger)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ShutdownWithTimeout(shutdown, testLogger)

	_, span := Start(context.Background(), "test")
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context with tracing enabled")
	}
	span.End()
}

func TestInitUnsupportedExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, testLogger)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
