// Package trajectory serves the ISS trajectory dataset: a read-through cache
// over the OEM feed, nearest-epoch and exact-epoch lookups, and the query
// facade used by the HTTP layer.
package trajectory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/store"
	"github.com/star/isstracker/internal/tracing"
)

// DefaultKey is the store key holding the serialized dataset.
const DefaultKey = "iss_data"

// Fetcher produces a fresh dataset from the upstream feed. On failure it
// returns an empty dataset and a non-nil error.
type Fetcher interface {
	Fetch(ctx context.Context) (oem.Dataset, error)
}

// Cache is a single-slot read-through cache of the trajectory dataset.
// The entry is written with one Set, so readers see either the previous
// dataset or the complete new one.
type Cache struct {
	store   store.Store
	fetcher Fetcher
	key     string
	logger  *slog.Logger

	group singleflight.Group

	// fetchedAt is the FetchedAt (unix nanos) of the last dataset seen.
	fetchedAt atomic.Int64
}

// NewCache creates a Cache storing its entry under key (DefaultKey if empty).
func NewCache(st store.Store, f Fetcher, key string, logger *slog.Logger) *Cache {
	if key == "" {
		key = DefaultKey
	}
	return &Cache{
		store:   st,
		fetcher: f,
		key:     key,
		logger:  logger,
	}
}

// Get returns the cached dataset, fetching and storing it first when the
// entry is missing. It never fails: if the feed is unreachable the result is
// an empty dataset and the failure is logged. Concurrent misses share one
// fetch.
func (c *Cache) Get(ctx context.Context) oem.Dataset {
	ctx, span := tracing.Start(ctx, "trajectory.Cache.Get", attribute.String("cache.key", c.key))
	defer span.End()

	if ds, ok := c.load(ctx); ok {
		metrics.IncCacheHits()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return ds
	}
	metrics.IncCacheMisses()
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, _, _ := c.group.Do(c.key, func() (any, error) {
		// Another flight may have populated the entry since our read.
		if ds, ok := c.load(ctx); ok {
			return ds, nil
		}
		c.logger.Info("no cached trajectory data, fetching feed", "key", c.key)

		// The fetch is shared with other callers and bounded by the fetcher's
		// own timeout, so it does not inherit this caller's cancellation.
		ds, err := c.Refresh(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Warn("trajectory refresh failed",
				"error", err,
				"state_vectors", ds.Len(),
			)
		}
		return ds, nil
	})
	return v.(oem.Dataset)
}

// Refresh fetches the feed and, on success, stores the dataset before
// returning it. A transport failure leaves the existing entry untouched and
// returns an empty dataset with the error. A store failure returns the
// fetched dataset together with the error.
func (c *Cache) Refresh(ctx context.Context) (oem.Dataset, error) {
	ctx, span := tracing.Start(ctx, "trajectory.Cache.Refresh", attribute.String("cache.key", c.key))
	defer span.End()

	ds, err := c.fetcher.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return oem.Empty(), err
	}
	if ds.StateVectors == nil {
		ds.StateVectors = []oem.StateVector{}
	}

	data, err := json.Marshal(ds)
	if err != nil {
		return ds, fmt.Errorf("encoding dataset: %w", err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		span.RecordError(err)
		return ds, fmt.Errorf("storing dataset: %w", err)
	}

	c.fetchedAt.Store(ds.FetchedAt.UnixNano())
	metrics.SetDataset(ds.Len())
	c.logger.Info("stored trajectory dataset",
		"key", c.key,
		"state_vectors", ds.Len(),
		"bytes", len(data),
	)
	return ds, nil
}

// AgeSeconds returns seconds since the last dataset this cache loaded or
// stored was fetched, or -1 if none has been seen.
func (c *Cache) AgeSeconds() float64 {
	ns := c.fetchedAt.Load()
	if ns == 0 {
		return -1
	}
	return time.Since(time.Unix(0, ns)).Seconds()
}

// load reads and decodes the entry. Any failure is reported as a miss.
func (c *Cache) load(ctx context.Context) (oem.Dataset, bool) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("trajectory cache read failed", "key", c.key, "error", err)
		}
		return oem.Dataset{}, false
	}

	ds, err := decodeDataset(data)
	if err != nil {
		c.logger.Warn("discarding undecodable trajectory cache entry", "key", c.key, "error", err)
		return oem.Dataset{}, false
	}
	if !ds.FetchedAt.IsZero() {
		c.fetchedAt.Store(ds.FetchedAt.UnixNano())
	}
	return ds, true
}

// decodeDataset accepts the current object encoding and the bare list of
// state vectors written by earlier deployments.
func decodeDataset(data []byte) (oem.Dataset, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var svs []oem.StateVector
		if err := json.Unmarshal(trimmed, &svs); err != nil {
			return oem.Dataset{}, err
		}
		return oem.NewDataset("", time.Time{}, svs), nil
	}

	var ds oem.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return oem.Dataset{}, err
	}
	return oem.NewDataset(ds.Source, ds.FetchedAt, ds.StateVectors), nil
}
