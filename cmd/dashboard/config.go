package main

import (
	"errors"
	"log/slog"
	"time"

	hhttp "crawl-dashboard/internal/handler/http"
	"crawl-dashboard/internal/pkg/config"
)

var errRatio = errors.New("ratio must be between 0 and 1")

// serverConfig holds the process-level settings of the dashboard.
type serverConfig struct {
	Addr        string
	MetricsPort int
	HealthPort  int

	// CommandRatePerMinute and CommandBurst limit state-changing requests
	// per client IP. A rate of 0 disables the limit.
	CommandRatePerMinute int
	CommandBurst         int

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers the limiter believes. Empty means RemoteAddr only.
	TrustedProxies hhttp.TrustedProxies

	// RequestTimeout bounds /api requests. WebSocket upgrades are exempt.
	RequestTimeout time.Duration

	// StaleAfter marks the poller degraded in the health report when the
	// last successful refresh is older.
	StaleAfter time.Duration

	TraceSampleRatio float64
	Version          string
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:                 ":8080",
		MetricsPort:          9090,
		HealthPort:           9091,
		CommandRatePerMinute: 60,
		CommandBurst:         10,
		RequestTimeout:       30 * time.Second,
		StaleAfter:           2 * time.Minute,
		TraceSampleRatio:     1,
		Version:              "dev",
	}
}

// loadServerConfig reads the server settings from the environment.
//
// Environment variables:
//   - DASHBOARD_ADDR: listen address (default :8080)
//   - METRICS_PORT: Prometheus port (default 9090)
//   - HEALTH_PORT: liveness/readiness port (default 9091)
//   - COMMAND_RATE_LIMIT: commands per minute per IP, 0 disables (default 60)
//   - COMMAND_RATE_BURST: 1-100 (default 10)
//   - RATE_LIMIT_TRUSTED_PROXIES: comma-separated proxy IPs or CIDRs (default none)
//   - REQUEST_TIMEOUT: /api request timeout, 1s-5m (default 30s)
//   - HEALTH_STALE_AFTER: 10s-1h (default 2m)
//   - TRACE_SAMPLE_RATIO: 0-1 (default 1)
//   - VERSION: reported version (default dev)
func loadServerConfig(logger *slog.Logger, metrics *config.ConfigMetrics) serverConfig {
	cfg := defaultServerConfig()
	l := config.NewLoader("server", logger, metrics)

	cfg.Addr = l.String("DASHBOARD_ADDR", cfg.Addr, config.ValidateListenAddr)
	port := func(v int) error { return config.ValidateIntRange(v, 1, 65535) }
	cfg.MetricsPort = l.Int("METRICS_PORT", cfg.MetricsPort, port)
	cfg.HealthPort = l.Int("HEALTH_PORT", cfg.HealthPort, port)
	cfg.CommandRatePerMinute = l.Int("COMMAND_RATE_LIMIT", cfg.CommandRatePerMinute, func(v int) error {
		return config.ValidateIntRange(v, 0, 10000)
	})
	cfg.CommandBurst = l.Int("COMMAND_RATE_BURST", cfg.CommandBurst, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	proxies := l.String("RATE_LIMIT_TRUSTED_PROXIES", "", func(v string) error {
		_, err := hhttp.ParseTrustedProxies(v)
		return err
	})
	cfg.TrustedProxies, _ = hhttp.ParseTrustedProxies(proxies)
	cfg.RequestTimeout = l.Duration("REQUEST_TIMEOUT", cfg.RequestTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	})
	cfg.StaleAfter = l.Duration("HEALTH_STALE_AFTER", cfg.StaleAfter, func(d time.Duration) error {
		return config.ValidateDuration(d, 10*time.Second, time.Hour)
	})
	cfg.TraceSampleRatio = l.Float("TRACE_SAMPLE_RATIO", cfg.TraceSampleRatio, func(v float64) error {
		if v < 0 || v > 1 {
			return errRatio
		}
		return nil
	})
	cfg.Version = config.LoadEnvString("VERSION", cfg.Version)

	l.Finish()
	return cfg
}
