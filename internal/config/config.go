// Package config loads the tracker configuration: defaults, then an optional
// YAML file, then ISSTRACKER_* environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/isstracker/internal/auth"
	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/realtime"
	"github.com/star/isstracker/internal/store"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracing"
	"github.com/star/isstracker/internal/trajectory"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPAddr        = ":5000"
	DefaultLogLevel        = "info"
	DefaultStoreBackend    = "redis"
	DefaultRedisAddr       = "redis:6379"
	DefaultStoreDir        = "/tmp/isstracker"
	DefaultRefreshInterval = time.Hour
)

// Config is the top-level tracker configuration.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	// TrustProxy makes client IP extraction honour X-Forwarded-For and
	// X-Real-IP. Only enable behind a trusted reverse proxy.
	TrustProxy bool `yaml:"trust_proxy"`

	Feeds FeedsConfig `yaml:"feeds"`
	Store StoreConfig `yaml:"store"`

	// RefreshInterval is how often the trajectory feed is re-fetched in the
	// background. Zero disables scheduled refreshes.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	Auth    auth.Config    `yaml:"auth"`
	Stream  stream.Config  `yaml:"stream"`
	Tracing tracing.Config `yaml:"tracing"`
}

// FeedsConfig holds the upstream endpoints.
type FeedsConfig struct {
	TrajectoryURL    string        `yaml:"trajectory_url"`
	RealtimeURL      string        `yaml:"realtime_url"`
	GeocodeURL       string        `yaml:"geocode_url"`
	GeocodeUserAgent string        `yaml:"geocode_user_agent"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// StoreConfig selects the dataset store.
type StoreConfig struct {
	// Backend is one of: redis | file | memory.
	Backend string            `yaml:"backend"`
	Key     string            `yaml:"key"`
	Redis   store.RedisConfig `yaml:"redis"`

	// Dir holds the dataset file for the file backend.
	Dir string `yaml:"dir"`
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. Invalid environment values are logged
// and ignored.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg, logger)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPAddr: DefaultHTTPAddr,
		LogLevel: DefaultLogLevel,
		Feeds: FeedsConfig{
			TrajectoryURL:    oem.DefaultSourceURL,
			RealtimeURL:      realtime.DefaultURL,
			GeocodeURL:       geocode.DefaultURL,
			GeocodeUserAgent: geocode.DefaultUserAgent,
			Timeout:          oem.DefaultTimeout,
			MaxBodyBytes:     oem.DefaultMaxBytes,
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
			Key:     trajectory.DefaultKey,
			Redis:   store.RedisConfig{Addr: DefaultRedisAddr},
			Dir:     DefaultStoreDir,
		},
		RefreshInterval: DefaultRefreshInterval,
		Stream: stream.Config{
			MaxConcurrentPerIP: stream.DefaultMaxConcurrentPerIP,
			MaxConcurrentTotal: stream.DefaultMaxConcurrentTotal,
			KeepaliveInterval:  stream.DefaultKeepaliveInterval,
		},
		Tracing: tracing.Config{
			ServiceName: "isstracker",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Feeds.TrajectoryURL == "" {
		return fmt.Errorf("feeds.trajectory_url is required")
	}
	if cfg.Feeds.Timeout <= 0 {
		return fmt.Errorf("feeds.timeout must be positive")
	}
	if cfg.Feeds.MaxBodyBytes <= 0 {
		return fmt.Errorf("feeds.max_body_bytes must be positive")
	}
	switch cfg.Store.Backend {
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case "file":
		if cfg.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", cfg.Store.Backend)
	}
	if cfg.Store.Key == "" {
		return fmt.Errorf("store.key is required")
	}
	if cfg.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative")
	}
	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return fmt.Errorf("auth.token is required when auth is enabled")
	}
	if cfg.Stream.MaxConcurrentPerIP < 1 {
		return fmt.Errorf("stream.max_concurrent_per_ip must be positive")
	}
	if cfg.Stream.MaxConcurrentTotal < cfg.Stream.MaxConcurrentPerIP {
		return fmt.Errorf("stream.max_concurrent_total must be at least max_concurrent_per_ip")
	}
	if cfg.Stream.KeepaliveInterval <= 0 {
		return fmt.Errorf("stream.keepalive_interval must be positive")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
	}
	return lvl, nil
}

// applyEnv overrides cfg from ISSTRACKER_* variables.
func applyEnv(cfg *Config, logger *slog.Logger) {
	setString(&cfg.HTTPAddr, "ISSTRACKER_HTTP_ADDR")

	if v := os.Getenv("ISSTRACKER_LOG_LEVEL"); v != "" {
		if _, err := parseLevel(v); err != nil {
			logger.Warn("invalid ISSTRACKER_LOG_LEVEL value, using configured level", "value", v, "level", cfg.LogLevel)
		} else {
			cfg.LogLevel = v
		}
	}

	setBool(&cfg.TrustProxy, "ISSTRACKER_TRUST_PROXY", logger)

	setString(&cfg.Feeds.TrajectoryURL, "ISSTRACKER_OEM_URL")
	setString(&cfg.Feeds.RealtimeURL, "ISSTRACKER_REALTIME_URL")
	setString(&cfg.Feeds.GeocodeURL, "ISSTRACKER_GEOCODE_URL")
	setString(&cfg.Feeds.GeocodeUserAgent, "ISSTRACKER_GEOCODE_USER_AGENT")
	setSeconds(&cfg.Feeds.Timeout, "ISSTRACKER_FETCH_TIMEOUT", 1, logger)

	if v := os.Getenv("ISSTRACKER_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			logger.Warn("invalid ISSTRACKER_MAX_BODY_BYTES value, using default", "value", v, "default", cfg.Feeds.MaxBodyBytes)
		} else {
			cfg.Feeds.MaxBodyBytes = n
		}
	}

	if v := os.Getenv("ISSTRACKER_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	setString(&cfg.Store.Key, "ISSTRACKER_CACHE_KEY")
	setString(&cfg.Store.Dir, "ISSTRACKER_STORE_DIR")
	setString(&cfg.Store.Redis.Addr, "ISSTRACKER_REDIS_ADDR")
	setString(&cfg.Store.Redis.Password, "ISSTRACKER_REDIS_PASSWORD")

	if v := os.Getenv("ISSTRACKER_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ISSTRACKER_REDIS_DB value, using default", "value", v, "default", cfg.Store.Redis.DB)
		} else {
			cfg.Store.Redis.DB = n
		}
	}

	setSeconds(&cfg.RefreshInterval, "ISSTRACKER_REFRESH_INTERVAL", 0, logger)

	setBool(&cfg.Auth.Enabled, "ISSTRACKER_AUTH_ENABLED", logger)
	setString(&cfg.Auth.Token, "ISSTRACKER_AUTH_TOKEN")

	if v := os.Getenv("ISSTRACKER_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ISSTRACKER_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", cfg.Stream.MaxConcurrentPerIP)
		} else {
			cfg.Stream.MaxConcurrentPerIP = n
		}
	}
	if v := os.Getenv("ISSTRACKER_STREAM_MAX_CONCURRENT_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ISSTRACKER_STREAM_MAX_CONCURRENT_TOTAL value, using default", "value", v, "default", cfg.Stream.MaxConcurrentTotal)
		} else {
			cfg.Stream.MaxConcurrentTotal = n
		}
	}
	setSeconds(&cfg.Stream.KeepaliveInterval, "ISSTRACKER_STREAM_KEEPALIVE_INTERVAL", 1, logger)

	setBool(&cfg.Tracing.Enabled, "ISSTRACKER_TRACING_ENABLED", logger)
	setString(&cfg.Tracing.Exporter, "ISSTRACKER_TRACING_EXPORTER")
	setString(&cfg.Tracing.Endpoint, "ISSTRACKER_TRACING_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string, logger *slog.Logger) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, must be a boolean (true/false/1/0)", "value", v, "default", *dst)
		return
	}
	*dst = b
}

// setSeconds parses a whole number of seconds no smaller than min.
func setSeconds(dst *time.Duration, key string, min int, logger *slog.Logger) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default_seconds", dst.Seconds())
		return
	}
	*dst = time.Duration(n) * time.Second
}
