package source

import (
	"net/http"

	"crawl-dashboard/internal/handler/http/pathutil"
	srcUC "crawl-dashboard/internal/usecase/source"
)

// StartHandler starts a crawl.
type StartHandler struct{ Svc *srcUC.Service }

func (h StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.SourceID(r)
	if err != nil {
		fail(w, r, "start", err)
		return
	}
	runID, err := h.Svc.Start(r.Context(), id)
	if err != nil {
		fail(w, r, "start", err)
		return
	}
	ok(w, r, http.StatusAccepted, StartResponse{SourceID: id, RunID: runID}, "crawl started")
}

// StopHandler stops a crawl.
type StopHandler struct{ Svc *srcUC.Service }

func (h StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.SourceID(r)
	if err != nil {
		fail(w, r, "stop", err)
		return
	}
	if err := h.Svc.Stop(r.Context(), id); err != nil {
		fail(w, r, "stop", err)
		return
	}
	ok(w, r, http.StatusAccepted, map[string]string{"source_id": id}, "stop requested")
}

// OptionsHandler saves the keyword filter and run options of a source.
// It answers 409 while the source is running.
type OptionsHandler struct{ Svc *srcUC.Service }

func (h OptionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.SourceID(r)
	if err != nil {
		fail(w, r, "save options", err)
		return
	}
	current, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		fail(w, r, "save options", err)
		return
	}
	req, err := decodeOptions(r, current)
	if err != nil {
		fail(w, r, "save options", err)
		return
	}
	if err := h.Svc.SaveOptions(r.Context(), id, req.KeywordFilter, req.Options); err != nil {
		fail(w, r, "save options", err)
		return
	}
	ok(w, r, http.StatusOK, req, "options saved")
}
