// Package realtime reads the current ISS ground position from the
// open-notify feed. Unlike the trajectory feed it carries only latitude and
// longitude, no state vectors.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/tracing"
)

// DefaultURL is the open-notify current-position endpoint.
const DefaultURL = "http://api.open-notify.org/iss-now.json"

const maxBodyBytes = 1 << 20

var (
	// ErrTransport covers network errors, timeouts and non-200 responses.
	ErrTransport = errors.New("realtime feed transport failure")

	// ErrInvalidResponse is returned when the body lacks a usable position.
	ErrInvalidResponse = errors.New("realtime feed returned an invalid response")
)

// Position is the station's sub-satellite point at Timestamp (unix seconds).
type Position struct {
	Timestamp int64
	Latitude  float64
	Longitude float64
}

type nowResponse struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Position  *struct {
		Latitude  *string `json:"latitude"`
		Longitude *string `json:"longitude"`
	} `json:"iss_position"`
}

// Client queries the real-time position feed.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for url (DefaultURL if empty).
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Current fetches the current position.
func (c *Client) Current(ctx context.Context) (Position, error) {
	ctx, span := tracing.Start(ctx, "realtime.Current", attribute.String("feed.url", c.url))
	defer span.End()

	start := time.Now()
	pos, err := c.current(ctx)
	metrics.ObserveFeedFetch("realtime", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("realtime position unavailable", "url", c.url, "error", err)
	}
	return pos, err
}

func (c *Client) current(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("%w: creating request: %v", ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("%w: unexpected status code %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Position{}, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	var nr nowResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if nr.Position == nil || nr.Position.Latitude == nil || nr.Position.Longitude == nil {
		return Position{}, fmt.Errorf("%w: missing iss_position", ErrInvalidResponse)
	}

	lat, err := parseCoord("latitude", *nr.Position.Latitude)
	if err != nil {
		return Position{}, err
	}
	lon, err := parseCoord("longitude", *nr.Position.Longitude)
	if err != nil {
		return Position{}, err
	}

	return Position{Timestamp: nr.Timestamp, Latitude: lat, Longitude: lon}, nil
}

// parseCoord parses a decimal-degree string; NaN and infinities are rejected.
func parseCoord(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s is %v", ErrInvalidResponse, name, v)
	}
	return v, nil
}
