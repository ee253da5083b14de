package probe

import (
	"fmt"
	"log/slog"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/pkg/config"
)

// Config holds the limits applied to a probe.
type Config struct {
	// Timeout bounds a single probe request, redirects included.
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize is the largest body read for extraction, in bytes.
	// It is enforced while reading, not from Content-Length.
	// Default: 5MB
	MaxBodySize int

	// MaxRedirects is the number of redirects followed. Each target is
	// validated like the seed URL.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects URLs resolving to loopback, private or
	// link-local addresses.
	// Default: true
	DenyPrivateIPs bool

	// UserAgent is sent with every probe request.
	UserAgent string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    5 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		UserAgent:      entity.DefaultUserAgent,
	}
}

const (
	minBodySize = 1024
	maxBodySize = 50 * 1024 * 1024
)

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := config.ValidateDuration(c.Timeout, time.Second, 2*time.Minute); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if err := config.ValidateIntRange(c.MaxBodySize, minBodySize, maxBodySize); err != nil {
		return fmt.Errorf("max body size: %w", err)
	}
	if err := config.ValidateIntRange(c.MaxRedirects, 0, 10); err != nil {
		return fmt.Errorf("max redirects: %w", err)
	}
	return nil
}

// LoadConfigFromEnv loads Config from the environment, falling back to
// defaults for invalid values.
//
// Environment variables:
//   - PROBE_TIMEOUT: duration, 1s-2m (default 10s)
//   - PROBE_MAX_BODY_SIZE: bytes, 1KB-50MB (default 5MB)
//   - PROBE_MAX_REDIRECTS: 0-10 (default 5)
//   - PROBE_DENY_PRIVATE_IPS: "true" or "false" (default true)
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) (*Config, error) {
	cfg := DefaultConfig()
	l := config.NewLoader("probe", logger, metrics)

	cfg.Timeout = l.Duration("PROBE_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 2*time.Minute)
	})
	cfg.MaxBodySize = l.Int("PROBE_MAX_BODY_SIZE", cfg.MaxBodySize, func(v int) error {
		return config.ValidateIntRange(v, minBodySize, maxBodySize)
	})
	cfg.MaxRedirects = l.Int("PROBE_MAX_REDIRECTS", cfg.MaxRedirects, func(v int) error {
		return config.ValidateIntRange(v, 0, 10)
	})
	cfg.DenyPrivateIPs = l.Bool("PROBE_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)

	l.Finish()
	return &cfg, nil
}
