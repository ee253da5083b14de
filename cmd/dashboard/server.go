package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	hhttp "crawl-dashboard/internal/handler/http"
	"crawl-dashboard/internal/handler/http/dashboard"
	"crawl-dashboard/internal/handler/http/middleware"
	"crawl-dashboard/internal/handler/http/requestid"
	hsrc "crawl-dashboard/internal/handler/http/source"
	"crawl-dashboard/internal/observability/tracing"
	srcUC "crawl-dashboard/internal/usecase/source"
)

// maxRequestBody caps request bodies, import uploads included.
const maxRequestBody = 1 << 20

// components are the collaborators the HTTP layer is built from.
type components struct {
	Poller  dashboard.Poller
	Health  hhttp.PollerStatus
	Backend hhttp.BreakerStatus
	Service *srcUC.Service
	Prober  hsrc.Prober
	CSP     middleware.CSPMiddlewareConfig
}

// setupRoutes registers the page, the live feed, the command endpoints and
// the detailed health report.
func setupRoutes(logger *slog.Logger, cfg serverConfig, c components, loc *time.Location) *http.ServeMux {
	mux := http.NewServeMux()

	dashboard.Register(mux, c.Poller, c.Service, dashboard.Config{
		Version:  cfg.Version,
		Location: loc,
		Logger:   logger,
	})

	var limit func(http.Handler) http.Handler
	if cfg.CommandRatePerMinute > 0 {
		limit = hhttp.NewCommandRateLimiter(cfg.CommandRatePerMinute, cfg.CommandBurst, cfg.TrustedProxies).Limit
	}
	hsrc.Register(mux, c.Service, c.Prober, limit)

	mux.Handle("GET /health", &hhttp.HealthHandler{
		Poller:        c.Health,
		Backend:       c.Backend,
		Version:       cfg.Version,
		StaleAfter:    cfg.StaleAfter,
		CSPEnabled:    c.CSP.Enabled,
		CSPReportOnly: c.CSP.ReportOnly,
	})
	mux.Handle("GET /health/live", &hhttp.LiveHandler{})
	return mux
}

// applyMiddleware wraps the handler with the middleware chain.
// Order, outermost first: Request ID → Tracing → Recovery → Logging →
// Body Limit → CSP → Metrics → Timeout (/api only).
func applyMiddleware(logger *slog.Logger, cfg serverConfig, csp middleware.CSPMiddlewareConfig, handler http.Handler) http.Handler {
	chain := apiOnly(hhttp.Timeout(cfg.RequestTimeout), handler)
	chain = hhttp.MetricsMiddleware(chain)
	chain = middleware.NewCSPMiddleware(csp).Middleware()(chain)
	chain = hhttp.LimitRequestBody(maxRequestBody)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)
	return chain
}

// apiOnly applies mw to /api/ requests and passes everything else through.
func apiOnly(mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	wrapped := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			wrapped.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
