package oem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/tracing"
)

const (
	// DefaultSourceURL is NASA's public ISS ephemeris in OEM J2000 format.
	DefaultSourceURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 50 << 20
)

// ErrTransport is matched by every failure to retrieve a usable document.
var ErrTransport = errors.New("trajectory feed transport failure")

// TransportError describes why a fetch produced no data.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Fetcher retrieves and normalizes the trajectory feed.
type Fetcher struct {
	sourceURL  string
	maxBytes   int64
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for sourceURL. Zero values select the defaults.
func NewFetcher(sourceURL string, timeout time.Duration, maxBytes int64, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		sourceURL: sourceURL,
		maxBytes:  maxBytes,
		timeout:   timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch downloads and parses the feed. Every failure is reported as a
// *TransportError together with an empty, non-nil Dataset, so callers can
// log the failure and keep serving.
func (f *Fetcher) Fetch(ctx context.Context) (Dataset, error) {
	ctx, span := tracing.Start(ctx, "oem.Fetch", attribute.String("feed.url", f.sourceURL))
	defer span.End()

	start := time.Now()
	svs, err := f.fetch(ctx)
	metrics.ObserveFeedFetch("trajectory", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return Empty(), &TransportError{URL: f.sourceURL, Err: err}
	}

	span.SetAttributes(attribute.Int("feed.state_vectors", len(svs)))
	f.logger.Info("fetched trajectory feed",
		"source_url", f.sourceURL,
		"state_vectors", len(svs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return NewDataset(f.sourceURL, time.Now().UTC(), svs), nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]StateVector, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching OEM data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	// Read one byte past the limit to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", f.maxBytes)
	}

	return Parse(bytes.NewReader(body), f.logger)
}
