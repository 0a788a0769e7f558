package trajectory

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/star/isstracker/internal/oem"
)

// refresher is the part of Source the scheduler needs.
type refresher interface {
	Refresh(ctx context.Context) (oem.Dataset, error)
}

// Refresher re-fetches the feed on a fixed interval. An interval of zero
// pauses it until a positive interval is set.
type Refresher struct {
	src      refresher
	interval atomic.Int64
	reset    chan struct{}
	logger   *slog.Logger
}

// NewRefresher creates a Refresher; call Run to start it.
func NewRefresher(src refresher, interval time.Duration, logger *slog.Logger) *Refresher {
	r := &Refresher{
		src:    src,
		reset:  make(chan struct{}, 1),
		logger: logger,
	}
	r.interval.Store(int64(interval))
	return r
}

// Interval returns the current refresh interval.
func (r *Refresher) Interval() time.Duration {
	return time.Duration(r.interval.Load())
}

// SetInterval changes the interval; the next refresh is scheduled from now.
func (r *Refresher) SetInterval(d time.Duration) {
	if old := r.interval.Swap(int64(d)); old == int64(d) {
		return
	}
	r.logger.Info("refresh interval changed", "interval_seconds", d.Seconds())
	select {
	case r.reset <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		var timer *time.Timer
		var tick <-chan time.Time
		if d := r.Interval(); d > 0 {
			timer = time.NewTimer(d)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-r.reset:
			stopTimer(timer)
		case <-tick:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	start := time.Now()
	ds, err := r.src.Refresh(ctx)
	if err != nil {
		r.logger.Warn("scheduled refresh failed", "error", err)
		return
	}
	r.logger.Info("scheduled refresh complete",
		"state_vectors", ds.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
