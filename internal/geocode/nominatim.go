// Package geocode resolves coordinates to place names with the Nominatim
// reverse geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/isstracker/internal/tracing"
)

const (
	DefaultURL       = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent = "iss_tracker"
)

// ErrNoResult is returned when the coordinates resolve to no named place,
// which is the usual answer over open ocean.
var ErrNoResult = errors.New("no place found")

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Client is a Nominatim reverse geocoder.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Client. Empty arguments select the public Nominatim
// endpoint and the default user agent, which Nominatim's usage policy requires.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Reverse returns the display name of the place at (lat, lon) in degrees.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	ctx, span := tracing.Start(ctx, "geocode.Reverse",
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lon", lon),
	)
	defer span.End()

	name, err := c.reverse(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
	}
	return name, err
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d from geocoder", resp.StatusCode)
	}

	var rr reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rr); err != nil {
		return "", fmt.Errorf("decoding geocoder response: %w", err)
	}
	if rr.Error != "" || rr.DisplayName == "" {
		return "", ErrNoResult
	}
	return rr.DisplayName, nil
}
