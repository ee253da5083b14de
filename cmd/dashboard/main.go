// Command dashboard runs the crawl-source dashboard: it polls the crawl
// backend, renders the source table and pushes changes to open pages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crawl-dashboard/internal/handler/http/middleware"
	"crawl-dashboard/internal/infra/crawlapi"
	"crawl-dashboard/internal/infra/health"
	"crawl-dashboard/internal/infra/probe"
	"crawl-dashboard/internal/observability/logging"
	"crawl-dashboard/internal/observability/tracing"
	"crawl-dashboard/internal/pkg/config"
	"crawl-dashboard/internal/usecase/poll"
	srcUC "crawl-dashboard/internal/usecase/source"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := logging.NewFromEnv()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("dashboard failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	configMetrics := config.NewConfigMetrics("dashboard")

	serverCfg := loadServerConfig(logger, configMetrics)
	backendCfg, err := crawlapi.LoadConfigFromEnv(logger, configMetrics)
	if err != nil {
		return fmt.Errorf("load backend configuration: %w", err)
	}
	pollCfg, err := poll.LoadConfigFromEnv(logger, configMetrics)
	if err != nil {
		return fmt.Errorf("load poller configuration: %w", err)
	}
	probeCfg, err := probe.LoadConfigFromEnv(logger, configMetrics)
	if err != nil {
		return fmt.Errorf("load probe configuration: %w", err)
	}
	cspCfg := middleware.LoadCSPConfigFromEnv(logger, configMetrics)

	logger.Info("configuration loaded",
		slog.String("backend_url", backendCfg.BaseURL),
		slog.Duration("backend_timeout", backendCfg.Timeout),
		slog.Float64("backend_rps", backendCfg.RateLimitRPS),
		slog.Duration("poll_interval", pollCfg.Interval),
		slog.Duration("idle_poll_interval", pollCfg.IdleInterval),
		slog.String("addr", serverCfg.Addr),
		slog.Bool("csp_enabled", cspCfg.Enabled),
		slog.String("version", serverCfg.Version))

	shutdownTracing := tracing.Setup(serverCfg.TraceSampleRatio)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	loc := time.Local
	if backendCfg.Timezone != "" {
		if l, err := time.LoadLocation(backendCfg.Timezone); err == nil {
			loc = l
		}
	}

	client := crawlapi.New(append(backendCfg.Options(), crawlapi.WithLogger(logger))...)
	controller := poll.NewController(client, *pollCfg,
		poll.WithLogger(logger),
		poll.WithMetrics(poll.NewMetrics(prometheus.DefaultRegisterer)))
	service := &srcUC.Service{Backend: client, Catalog: controller, Logger: logger}
	prober := probe.New(*probeCfg, probe.WithLogger(logger))

	startMetricsServer(ctx, logger, serverCfg.MetricsPort)

	healthServer := health.NewServer(fmt.Sprintf(":%d", serverCfg.HealthPort), logger, controller.Ready)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		_ = controller.Run(ctx)
	}()

	mux := setupRoutes(logger, serverCfg, components{
		Poller:  controller,
		Health:  controller,
		Backend: client,
		Service: service,
		Prober:  prober,
		CSP:     cspCfg,
	}, loc)

	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           applyMiddleware(logger, serverCfg, cspCfg, mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", serverCfg.Addr),
			slog.String("version", serverCfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancel()
			<-pollDone
			return fmt.Errorf("serve: %w", err)
		}
	}
	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	<-pollDone
	logger.Info("server stopped")
	return nil
}
