package trajectory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// sv builds a state vector at the given epoch; it fails the test on a bad epoch.
func sv(t *testing.T, epoch string, x, y, z, vx, vy, vz float64) oem.StateVector {
	t.Helper()
	ts, err := oem.ParseEpoch(epoch)
	if err != nil {
		t.Fatalf("ParseEpoch(%q): %v", epoch, err)
	}
	return oem.StateVector{Epoch: epoch, Time: ts, X: x, Y: y, Z: z, XDot: vx, YDot: vy, ZDot: vz}
}

func sampleDataset(t *testing.T) oem.Dataset {
	t.Helper()
	return oem.NewDataset("test", time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC), []oem.StateVector{
		sv(t, "2025-069T12:00:00.000Z", -4510.3, 3620.8, 3660.2, -4.81, -5.92, 0.66),
		sv(t, "2025-069T12:04:00.000Z", -5388.1, 2016.4, 3685.9, -2.45, -7.18, -0.46),
		sv(t, "2025-069T12:08:00.000Z", -5638.2, 186.9, 3372.4, 0.37, -7.64, -1.55),
	})
}

// fakeFetcher returns a fixed result and counts calls.
type fakeFetcher struct {
	ds    oem.Dataset
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context) (oem.Dataset, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return oem.Empty(), f.err
	}
	return f.ds, nil
}

// countingStore wraps a store and counts Set calls.
type countingStore struct {
	store.Store
	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func newMemoryStore() store.Store {
	return store.NewMemory()
}
