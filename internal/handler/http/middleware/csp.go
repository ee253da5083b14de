// Package middleware holds HTTP middleware shared by the dashboard routes.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"crawl-dashboard/internal/pkg/config"
	"crawl-dashboard/pkg/security/csp"
)

// CSPMiddlewareConfig selects the Content-Security-Policy for each request.
type CSPMiddlewareConfig struct {
	// Enabled controls whether CSP headers are applied.
	// Default: true
	Enabled bool

	// DefaultPolicy applies when no path policy matches.
	DefaultPolicy *csp.CSPBuilder

	// PathPolicies maps path prefixes to policies. The longest matching
	// prefix wins.
	PathPolicies map[string]*csp.CSPBuilder

	// ReportOnly sends Content-Security-Policy-Report-Only instead of
	// enforcing.
	// Default: false
	ReportOnly bool
}

// DashboardCSPConfig returns the policies used by the dashboard server:
// the dashboard policy for pages and the strict policy for /api/.
func DashboardCSPConfig() CSPMiddlewareConfig {
	return CSPMiddlewareConfig{
		Enabled:       true,
		DefaultPolicy: csp.DashboardPolicy(),
		PathPolicies: map[string]*csp.CSPBuilder{
			"/api/": csp.StrictPolicy(),
		},
	}
}

// LoadCSPConfigFromEnv loads the enable and report-only switches.
//
// Environment variables:
//   - CSP_ENABLED: "true" or "false" (default true)
//   - CSP_REPORT_ONLY: "true" or "false" (default false)
func LoadCSPConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) CSPMiddlewareConfig {
	cfg := DashboardCSPConfig()
	l := config.NewLoader("csp", logger, metrics)
	cfg.Enabled = l.Bool("CSP_ENABLED", cfg.Enabled)
	cfg.ReportOnly = l.Bool("CSP_REPORT_ONLY", cfg.ReportOnly)
	l.Finish()
	return cfg
}

// CSPMiddleware applies Content-Security-Policy headers.
type CSPMiddleware struct {
	config CSPMiddlewareConfig
	// built header values, keyed by prefix; "" is the default policy
	headers map[string]cspHeader
}

type cspHeader struct {
	name  string
	value string
}

// NewCSPMiddleware creates the middleware. Policies are built once here;
// later changes to the builders are not observed.
func NewCSPMiddleware(cfg CSPMiddlewareConfig) *CSPMiddleware {
	m := &CSPMiddleware{config: cfg, headers: make(map[string]cspHeader)}
	add := func(prefix string, p *csp.CSPBuilder) {
		if p == nil {
			return
		}
		p = p.Clone().ReportOnly(cfg.ReportOnly)
		if v := p.Build(); v != "" {
			m.headers[prefix] = cspHeader{name: p.HeaderName(), value: v}
		}
	}
	add("", cfg.DefaultPolicy)
	for prefix, p := range cfg.PathPolicies {
		add(prefix, p)
	}
	return m
}

// Middleware returns the HTTP middleware.
func (m *CSPMiddleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.config.Enabled {
				if h, ok := m.selectHeader(r.URL.Path); ok {
					w.Header().Set(h.name, h.value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *CSPMiddleware) selectHeader(path string) (cspHeader, bool) {
	longest := ""
	found := false
	for prefix := range m.headers {
		if prefix != "" && strings.HasPrefix(path, prefix) && len(prefix) > len(longest) {
			longest = prefix
			found = true
		}
	}
	if found {
		return m.headers[longest], true
	}
	h, ok := m.headers[""]
	return h, ok
}
