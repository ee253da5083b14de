package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"crawl-dashboard/internal/domain/entity"
)

// Prober previews a seed URL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (entity.Probe, error)
}

// ProbeHandler probes a seed URL and suggests create-form values. A form
// post redirects to the page with the create form pre-filled.
type ProbeHandler struct{ Prober Prober }

func (h ProbeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL string `json:"url"`
	}
	if isForm(r) {
		if err := parseForm(r); err != nil {
			fail(w, r, "probe", err)
			return
		}
		in.URL, _ = formValue(r, "url")
	} else if err := decodeJSON(r, &in); err != nil {
		fail(w, r, "probe", err)
		return
	}
	if in.URL == "" {
		fail(w, r, "probe", &entity.ValidationError{Field: "url", Message: "is required"})
		return
	}

	p, err := h.Prober.Probe(r.Context(), in.URL)
	if err != nil {
		fail(w, r, "probe", err)
		return
	}
	suggested := p.Suggest(entity.NewCreateRequest("", in.URL))
	suggested.SourceType = p.DetectedType

	if isForm(r) {
		prefill := url.Values{
			"name":        {suggested.Name},
			"url":         {suggested.URL},
			"description": {suggested.Description},
			"source_type": {suggested.SourceType},
		}
		msg := "detected " + p.DetectedType
		if p.ItemCount > 0 {
			msg += " with " + strconv.Itoa(p.ItemCount) + " items"
		}
		http.Redirect(w, r, flashURL(r, "info", msg, prefill), http.StatusSeeOther)
		return
	}
	ok(w, r, http.StatusOK, ProbeResponse{Probe: p, Suggested: suggested}, "")
}
