package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern maps a dynamic route to its metrics label.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns are checked in order; the first match wins.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/api/sources/[^/]+/start$`), Template: "/api/sources/:id/start"},
	{Pattern: regexp.MustCompile(`^/api/sources/[^/]+/stop$`), Template: "/api/sources/:id/stop"},
	{Pattern: regexp.MustCompile(`^/api/sources/[^/]+/options$`), Template: "/api/sources/:id/options"},
	{Pattern: regexp.MustCompile(`^/api/sources/[^/]+/stats$`), Template: "/api/sources/:id/stats"},
}

// staticPaths are the fixed routes of the dashboard server.
var staticPaths = []string{
	"/", "/ws", "/health", "/health/ready", "/metrics",
	"/api/state", "/api/sources", "/api/runs", "/api/import", "/api/probe", "/api/refresh",
}

// NormalizePath turns a request path into a low-cardinality metrics label.
// Source IDs are replaced by :id, the query string and a trailing slash are
// dropped, and unmatched paths pass through unchanged.
//
//	NormalizePath("/api/sources/42/start") // "/api/sources/:id/start"
//	NormalizePath("/api/state?q=news")     // "/api/state"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return path
}

// GetExpectedCardinality returns the number of distinct labels the known
// routes normalize to.
func GetExpectedCardinality() int {
	return len(pathPatterns) + len(staticPaths)
}
