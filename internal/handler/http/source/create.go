package source

import (
	"net/http"

	srcUC "crawl-dashboard/internal/usecase/source"
)

// CreateHandler creates a source. Name and url are required; nothing is
// sent to the backend when validation fails.
type CreateHandler struct{ Svc *srcUC.Service }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreate(r)
	if err != nil {
		fail(w, r, "create", err)
		return
	}
	created, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		fail(w, r, "create", err)
		return
	}
	ok(w, r, http.StatusCreated, created, "created "+req.Name)
}
