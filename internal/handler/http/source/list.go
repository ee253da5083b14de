package source

import (
	"net/http"
	"strconv"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/pathutil"
	"crawl-dashboard/internal/handler/http/respond"
	srcUC "crawl-dashboard/internal/usecase/source"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// ListHandler returns the sources matching ?q=, or all of them.
type ListHandler struct{ Svc *srcUC.Service }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, r, "list", err)
		return
	}
	if sources == nil {
		sources = []entity.Source{}
	}
	respond.JSON(w, http.StatusOK, sources)
}

// StatsHandler returns the derived stats of one source.
type StatsHandler struct{ Svc *srcUC.Service }

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.SourceID(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := h.Svc.Stats(r.Context(), id)
	if err != nil {
		fail(w, r, "stats", err)
		return
	}
	if stats == nil {
		stats = entity.Stats{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"source_id": id,
		"stats":     stats,
	})
}

// RunsHandler returns recent crawl runs, ?limit= of them (default 20).
type RunsHandler struct{ Svc *srcUC.Service }

func (h RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			respond.SafeError(w, http.StatusBadRequest, &entity.ValidationError{
				Field:   "limit",
				Message: "must be between 1 and " + strconv.Itoa(maxRunsLimit),
			})
			return
		}
		limit = n
	}
	runs, err := h.Svc.RecentRuns(r.Context(), limit)
	if err != nil {
		fail(w, r, "runs", err)
		return
	}
	if runs == nil {
		runs = []entity.Run{}
	}
	respond.JSON(w, http.StatusOK, runs)
}
