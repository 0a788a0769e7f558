package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/star/isstracker/internal/metrics"
)

// writeDeadline bounds each write on an open stream.
const writeDeadline = 30 * time.Second

// eventWriter writes Server-Sent Events to one connection. Each write runs
// under its own deadline, cleared afterwards so idle gaps between events never
// trip the server's WriteTimeout.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
}

func newEventWriter(w http.ResponseWriter, flusher http.Flusher, logger *slog.Logger) *eventWriter {
	return &eventWriter{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  logger,
	}
}

// retry tells the browser how long to wait before reconnecting.
func (e *eventWriter) retry(d time.Duration) error {
	_, err := e.write(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()))
	return err
}

// eventJSON encodes v and sends it as one event.
func (e *eventWriter) eventJSON(id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return e.event(id, data)
}

// event sends data as one event. A non-empty id is sent as the event id, which
// a reconnecting EventSource echoes back in Last-Event-ID.
func (e *eventWriter) event(id string, data []byte) error {
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	fmt.Fprintf(&b, "data: %s\n\n", data)

	n, err := e.write(b.String())
	if err != nil {
		return err
	}
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// comment sends an empty SSE comment to keep intermediaries from timing out.
func (e *eventWriter) comment() error {
	n, err := e.write(":\n\n")
	if err != nil {
		return err
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}

func (e *eventWriter) write(s string) (int, error) {
	e.setDeadline(time.Now().Add(writeDeadline))
	defer e.setDeadline(time.Time{})

	n, err := io.WriteString(e.w, s)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	e.flusher.Flush()
	return n, nil
}

func (e *eventWriter) setDeadline(t time.Time) {
	if err := e.rc.SetWriteDeadline(t); err != nil && !errors.Is(err, http.ErrNotSupported) {
		e.logger.Debug("could not set write deadline", "error", err)
	}
}
