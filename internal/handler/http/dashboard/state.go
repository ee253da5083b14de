package dashboard

import (
	"context"
	"net/http"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/respond"
	"crawl-dashboard/internal/usecase/poll"
)

// Poller is the polling controller as the view sees it.
type Poller interface {
	Snapshot() poll.Snapshot
	Subscribe() (<-chan poll.Snapshot, func())
	WatchLoading() (<-chan bool, func())
	Loading() bool
	RequestRefresh(silent bool)
}

// RunLister returns recent crawl runs.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]entity.Run, error)
}

// StateHandler serves the current state, filtered by ?q=.
type StateHandler struct{ Poller Poller }

func (h StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	respond.JSON(w, http.StatusOK, NewState(h.Poller.Snapshot(), h.Poller.Loading(), r.URL.Query().Get("q")))
}

// RefreshHandler requests a visible list refresh.
type RefreshHandler struct{ Poller Poller }

func (h RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Poller.RequestRefresh(false)
	if ct := r.Header.Get("Content-Type"); ct == "application/x-www-form-urlencoded" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}
