// Package stream implements Server-Sent Events (SSE) streaming of the state
// vector nearest to the current time. Clients connect via GET /stream/closest
// and receive one message per interval until they disconnect.
//
// SSE message format:
//
//	data: {"type":"closest","at":"2025-03-10T12:05:00Z","epoch":"2025-069T12:04:00.000Z","x":...,"speed_km_s":7.66}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","dataset_fetched_at":"...","dataset_age_seconds":1800,"state_vectors":5400}\n\n
//
// Closest messages carry the epoch as their event id ("id: 2025-069T12:04:00.000Z").
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isstracker/internal/httputil"
	"github.com/star/isstracker/internal/kinematics"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/trajectory"
)

const (
	DefaultMaxConcurrentPerIP = 10
	DefaultMaxConcurrentTotal = 1000
	DefaultKeepaliveInterval  = 30 * time.Second

	defaultInterval = 5
	maxInterval     = 60
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxConcurrentTotal int           `yaml:"max_concurrent_total"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`

	// TrustProxy is copied from the top-level setting.
	TrustProxy bool `yaml:"-"`
}

// Source supplies the current trajectory dataset.
type Source interface {
	Dataset(ctx context.Context) oem.Dataset
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger

	now func() time.Time
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrentTotal),
		logger:  logger,
		now:     time.Now,
	}
}

// HandleClosest serves the SSE closest-vector stream.
// GET /stream/closest?interval=5
func (h *Handler) HandleClosest(w http.ResponseWriter, r *http.Request) {
	interval := defaultInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxInterval {
			writeError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return
		}
		interval = n
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, err := h.limiter.acquire(ip)
	if err != nil {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rejected",
			"remote_ip", ip,
			"reason", err,
			"ip_streams", h.limiter.count(ip),
			"total_streams", h.limiter.active(),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	defer release()

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_seconds", interval,
		"last_event_id", r.Header.Get("Last-Event-ID"),
	)

	defer func() {
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ev := newEventWriter(w, flusher, h.logger.With("remote_ip", ip))

	// Jittered retry interval (3-7s) spreads reconnections after a restart.
	if err := ev.retry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		return
	}

	ctx := r.Context()

	ds := h.source.Dataset(ctx)
	if err := ev.eventJSON("", buildMetadataMessage(ds, h.now())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}
	if !h.sendClosest(ev, ds, h.now()) {
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !h.sendClosest(ev, h.source.Dataset(ctx), h.now()) {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := ev.comment(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sendClosest writes the vector nearest to at. It returns false when the
// connection should be closed. A dataset with nothing to report is skipped.
func (h *Handler) sendClosest(ev *eventWriter, ds oem.Dataset, at time.Time) bool {
	msg, err := buildClosestMessage(ds, at)
	if err != nil {
		metrics.IncStreamErrors("no_data")
		ev.logger.Debug("stream has nothing to send", "error", err)
		return true
	}
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		ev.logger.Warn("stream marshal error", "error", err)
		return true
	}
	if err := ev.event(msg.Epoch, data); err != nil {
		metrics.IncStreamErrors("send_error")
		ev.logger.Warn("stream send error", "error", err)
		return false
	}
	return true
}

func buildMetadataMessage(ds oem.Dataset, now time.Time) metadataMessage {
	meta := metadataMessage{
		Type:         "metadata",
		StateVectors: ds.Len(),
	}
	if !ds.FetchedAt.IsZero() {
		meta.DatasetFetchedAt = ds.FetchedAt.UTC().Format(time.RFC3339)
		meta.DatasetAge = int(now.Sub(ds.FetchedAt).Seconds())
	}
	return meta
}

// buildClosestMessage formats the vector nearest to at into the SSE payload.
func buildClosestMessage(ds oem.Dataset, at time.Time) (closestMessage, error) {
	sv, err := trajectory.FindClosest(ds.StateVectors, at)
	if err != nil {
		return closestMessage{}, err
	}
	speed, err := kinematics.Speed(sv.XDot, sv.YDot, sv.ZDot)
	if err != nil {
		return closestMessage{}, fmt.Errorf("epoch %s: %w", sv.Epoch, err)
	}
	return closestMessage{
		Type:     "closest",
		At:       at.UTC().Format(time.RFC3339),
		Epoch:    sv.Epoch,
		X:        sv.X,
		Y:        sv.Y,
		Z:        sv.Z,
		XDot:     sv.XDot,
		YDot:     sv.YDot,
		ZDot:     sv.ZDot,
		SpeedKmS: speed,
	}, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type             string `json:"type"`
	DatasetFetchedAt string `json:"dataset_fetched_at"`
	DatasetAge       int    `json:"dataset_age_seconds"`
	StateVectors     int    `json:"state_vectors"`
}

type closestMessage struct {
	Type     string  `json:"type"`
	At       string  `json:"at"`
	Epoch    string  `json:"epoch"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	XDot     float64 `json:"x_dot"`
	YDot     float64 `json:"y_dot"`
	ZDot     float64 `json:"z_dot"`
	SpeedKmS float64 `json:"speed_km_s"`
}
