package poll

import (
	"fmt"
	"log/slog"
	"time"

	"crawl-dashboard/internal/pkg/config"
)

// Config controls the polling controller.
//
// Environment variables:
//   - POLL_INTERVAL: base tick, 1s-5m (default 10s)
//   - IDLE_POLL_INTERVAL: list refresh period while nothing runs,
//     between POLL_INTERVAL and 30m (default 30s)
//   - STATS_CONCURRENCY: parallel stats requests, 1-32 (default 4)
//   - POLL_INITIAL_RETRIES: attempts for the first list load, 1-10 (default 5)
//   - POLL_BYPASS_CACHE: publish every fetched list even when unchanged (default false)
type Config struct {
	Interval         time.Duration
	IdleInterval     time.Duration
	StatsConcurrency int
	InitialRetries   int
	BypassCache      bool
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{
		Interval:         10 * time.Second,
		IdleInterval:     30 * time.Second,
		StatsConcurrency: 4,
		InitialRetries:   5,
	}
}

const (
	minInterval     = time.Second
	maxInterval     = 5 * time.Minute
	maxIdleInterval = 30 * time.Minute
)

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if err := config.ValidateDuration(c.Interval, minInterval, maxInterval); err != nil {
		errs = append(errs, fmt.Errorf("poll interval: %w", err))
	}
	if err := config.ValidateDuration(c.IdleInterval, c.Interval, maxIdleInterval); err != nil {
		errs = append(errs, fmt.Errorf("idle poll interval: %w", err))
	}
	if err := config.ValidateIntRange(c.StatsConcurrency, 1, 32); err != nil {
		errs = append(errs, fmt.Errorf("stats concurrency: %w", err))
	}
	if err := config.ValidateIntRange(c.InitialRetries, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("initial retries: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads Config from the environment. Invalid values fall
// back to their defaults with a warning; the returned config is always valid
// and the error is always nil.
//
// An IDLE_POLL_INTERVAL shorter than the loaded POLL_INTERVAL is rejected,
// since the idle period cannot be checked more often than the tick.
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) (*Config, error) {
	cfg := DefaultConfig()
	l := config.NewLoader("poller", logger, metrics)

	cfg.Interval = l.Duration("POLL_INTERVAL", cfg.Interval, func(d time.Duration) error {
		return config.ValidateDuration(d, minInterval, maxInterval)
	})

	idleDefault := cfg.IdleInterval
	if idleDefault < cfg.Interval {
		idleDefault = cfg.Interval
	}
	cfg.IdleInterval = l.Duration("IDLE_POLL_INTERVAL", idleDefault, func(d time.Duration) error {
		return config.ValidateDuration(d, cfg.Interval, maxIdleInterval)
	})

	cfg.StatsConcurrency = l.Int("STATS_CONCURRENCY", cfg.StatsConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 32)
	})
	cfg.InitialRetries = l.Int("POLL_INITIAL_RETRIES", cfg.InitialRetries, func(v int) error {
		return config.ValidateIntRange(v, 1, 10)
	})
	cfg.BypassCache = l.Bool("POLL_BYPASS_CACHE", cfg.BypassCache)

	l.Finish()
	return &cfg, nil
}
