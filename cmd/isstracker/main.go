package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/isstracker/internal/api"
	"github.com/star/isstracker/internal/config"
	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/realtime"
	"github.com/star/isstracker/internal/store"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracing"
	"github.com/star/isstracker/internal/trajectory"
)

func main() {
	configPath := flag.String("config", os.Getenv("ISSTRACKER_CONFIG"), "path to YAML config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, logger)

	st, closeStore := openStore(cfg.Store, logger)
	defer closeStore()

	fetcher := oem.NewFetcher(cfg.Feeds.TrajectoryURL, cfg.Feeds.Timeout, cfg.Feeds.MaxBodyBytes, logger)
	trajCache := trajectory.NewCache(st, fetcher, cfg.Store.Key, logger)
	svc := trajectory.NewService(
		trajCache,
		geocode.NewClient(cfg.Feeds.GeocodeURL, cfg.Feeds.GeocodeUserAgent, cfg.Feeds.Timeout),
		realtime.NewClient(cfg.Feeds.RealtimeURL, cfg.Feeds.Timeout, logger),
		logger,
	)

	// Make sure the store holds a dataset before serving.
	ds := trajCache.Get(ctx)
	logger.Info("trajectory data loaded",
		"state_vectors", ds.Len(),
		"source", ds.Source,
	)

	refresher := trajectory.NewRefresher(trajCache, cfg.RefreshInterval, logger)
	go refresher.Run(ctx)

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, logger, func(next *config.Config) {
				level.Set(next.Level())
				refresher.SetInterval(next.RefreshInterval)
			})
			if err != nil {
				logger.Warn("config watch stopped", "path", *configPath, "error", err)
			}
		}()
	}

	// Background goroutine to update the dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := trajCache.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	streamCfg := cfg.Stream
	streamCfg.TrustProxy = cfg.TrustProxy

	srv := api.NewServer(cfg.HTTPAddr, logger, api.Deps{
		Service:    svc,
		Stream:     stream.NewHandler(svc, streamCfg, logger),
		Store:      st,
		Auth:       cfg.Auth,
		TrustProxy: cfg.TrustProxy,
	})

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"store_backend", cfg.Store.Backend,
			"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// openStore builds the configured dataset store and its cleanup function.
func openStore(cfg config.StoreConfig, logger *slog.Logger) (store.Store, func()) {
	switch cfg.Backend {
	case "memory":
		logger.Info("using in-memory store")
		return store.NewMemory(), func() {}
	case "file":
		logger.Info("using file store", "dir", cfg.Dir)
		return store.NewFile(cfg.Dir), func() {}
	}

	rdb := store.NewRedis(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx); err != nil {
		// Reads fall through to the feed until Redis comes up.
		logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	}
	return rdb, func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("closing redis", "error", err)
		}
	}
}
