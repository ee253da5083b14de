// Package source serves the source commands of the dashboard as a JSON API.
//
// Every command also accepts an HTML form post; the reply is then a 303
// redirect back to the page with a flash message, so the page works without
// its script.
package source

import (
	"net/http"

	srcUC "crawl-dashboard/internal/usecase/source"
)

// Register registers the source routes. limit wraps the state-changing
// routes and may be nil.
func Register(mux *http.ServeMux, svc *srcUC.Service, prober Prober, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(h http.Handler) http.Handler { return h }
	}

	mux.Handle("GET /api/sources", ListHandler{svc})
	mux.Handle("GET /api/sources/{id}/stats", StatsHandler{svc})
	mux.Handle("GET /api/runs", RunsHandler{svc})

	mux.Handle("POST /api/sources", limit(CreateHandler{svc}))
	mux.Handle("POST /api/sources/{id}/start", limit(StartHandler{svc}))
	mux.Handle("POST /api/sources/{id}/stop", limit(StopHandler{svc}))
	mux.Handle("POST /api/sources/{id}/options", limit(OptionsHandler{svc}))
	mux.Handle("PUT /api/sources/{id}/options", limit(OptionsHandler{svc}))
	mux.Handle("POST /api/import", limit(ImportHandler{svc}))
	if prober != nil {
		mux.Handle("POST /api/probe", limit(ProbeHandler{prober}))
	}
}
