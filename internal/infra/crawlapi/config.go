package crawlapi

import (
	"fmt"
	"log/slog"
	"time"

	"crawl-dashboard/internal/pkg/config"
)

// Config holds the connection settings of the backend client.
type Config struct {
	// BaseURL is the backend API root, e.g. http://127.0.0.1:8000/api.
	BaseURL string

	// Timeout bounds each request. Zero means no client-side timeout.
	// Default: 0
	Timeout time.Duration

	// RateLimitRPS caps the sustained request rate. Zero disables limiting.
	// Default: 20
	RateLimitRPS float64

	// RateLimitBurst is the number of requests allowed at once.
	// Default: 10
	RateLimitBurst int

	// Timezone interprets backend timestamps that carry no offset.
	// Empty means the local zone.
	Timezone string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		RateLimitRPS:   20,
		RateLimitBurst: 10,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := config.ValidateBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	if err := config.ValidateNonNegativeDuration(c.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit: must not be negative, got %v", c.RateLimitRPS)
	}
	if err := config.ValidateIntRange(c.RateLimitBurst, 1, 1000); err != nil {
		return fmt.Errorf("rate limit burst: %w", err)
	}
	if c.Timezone != "" {
		if err := config.ValidateTimezone(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// Options turns the configuration into client options.
func (c Config) Options() []Option {
	opts := []Option{
		WithBaseURL(c.BaseURL),
		WithRateLimit(NewRateLimiter(c.RateLimitRPS, c.RateLimitBurst)),
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			opts = append(opts, WithLocation(loc))
		}
	}
	return opts
}

// LoadConfigFromEnv loads Config from the environment, falling back to
// defaults for invalid values.
//
// Environment variables:
//   - BACKEND_URL: absolute http(s) URL (default http://127.0.0.1:8000/api)
//   - BACKEND_TIMEOUT: duration, 0 for none (default 0)
//   - BACKEND_RATE_LIMIT_RPS: requests per second, 0 to disable (default 20)
//   - BACKEND_RATE_LIMIT_BURST: 1-1000 (default 10)
//   - BACKEND_TIMEZONE: IANA zone name (default local)
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) (*Config, error) {
	cfg := DefaultConfig()
	l := config.NewLoader("backend", logger, metrics)

	cfg.BaseURL = l.String("BACKEND_URL", cfg.BaseURL, config.ValidateBaseURL)
	cfg.Timeout = l.Duration("BACKEND_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 0, 5*time.Minute)
	})
	cfg.RateLimitRPS = l.Float("BACKEND_RATE_LIMIT_RPS", cfg.RateLimitRPS, func(v float64) error {
		if v < 0 {
			return fmt.Errorf("value must not be negative, got %v", v)
		}
		return nil
	})
	cfg.RateLimitBurst = l.Int("BACKEND_RATE_LIMIT_BURST", cfg.RateLimitBurst, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.Timezone = l.String("BACKEND_TIMEZONE", cfg.Timezone, func(s string) error {
		if s == "" {
			return nil
		}
		return config.ValidateTimezone(s)
	})

	l.Finish()
	return &cfg, nil
}
