// Package dashboard renders the crawl dashboard page and keeps open pages
// current over a WebSocket.
package dashboard

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the page settings.
type Config struct {
	Version string
	// Location renders run timestamps; nil means the local zone.
	Location *time.Location
	Logger   *slog.Logger
}

// Register registers the page, the state endpoints, the live feed and the
// static assets.
func Register(mux *http.ServeMux, poller Poller, runs RunLister, cfg Config) {
	mux.Handle("GET /{$}", &PageHandler{
		Poller:   poller,
		Runs:     runs,
		Location: cfg.Location,
		Version:  cfg.Version,
		Logger:   cfg.Logger,
	})
	mux.Handle("GET /api/state", StateHandler{poller})
	mux.Handle("POST /api/refresh", RefreshHandler{poller})
	mux.Handle("GET /ws", NewLiveHandler(poller, cfg.Logger))
	mux.Handle("GET /static/", StaticHandler())
}
