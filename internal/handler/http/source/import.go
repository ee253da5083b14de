package source

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/respond"
	srcUC "crawl-dashboard/internal/usecase/source"
)

// ImportHandler bulk-creates sources from a YAML or JSON document.
//
// The document is the request body, or for form posts either the "sources"
// field or an uploaded "file". Every entry is validated before any is sent.
// Entries the backend refuses are reported without stopping the import.
type ImportHandler struct{ Svc *srcUC.Service }

func (h ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc, err := importDocument(r)
	if err != nil {
		fail(w, r, "import", err)
		return
	}
	reqs, err := srcUC.ParseImport(doc)
	if err != nil {
		fail(w, r, "import", err)
		return
	}
	res, err := h.Svc.Import(r.Context(), reqs)
	if err != nil {
		fail(w, r, "import", err)
		return
	}

	resp := ImportResponse{
		Created: res.Created,
		Failed:  make([]ImportFailureDTO, 0, len(res.Failed)),
	}
	if resp.Created == nil {
		resp.Created = []entity.Source{}
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, ImportFailureDTO{Index: f.Index, Name: f.Name, Error: respond.SanitizeError(f.Err)})
	}

	code := http.StatusCreated
	switch {
	case len(res.Created) == 0:
		code = http.StatusBadGateway
	case len(res.Failed) > 0:
		code = http.StatusMultiStatus
	}
	msg := fmt.Sprintf("imported %d of %d sources", len(res.Created), len(reqs))
	if code == http.StatusBadGateway && isForm(r) {
		http.Redirect(w, r, flashURL(r, "error", msg, nil), http.StatusSeeOther)
		return
	}
	ok(w, r, code, resp, msg)
}

func importDocument(r *http.Request) (io.Reader, error) {
	if !isForm(r) {
		return r.Body, nil
	}
	if err := parseForm(r); err != nil {
		return nil, err
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return nil, &entity.ValidationError{Field: "file", Message: "invalid upload: " + err.Error()}
			}
			defer f.Close()
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, f); err != nil {
				return nil, &entity.ValidationError{Field: "file", Message: "invalid upload: " + err.Error()}
			}
			return &buf, nil
		}
	}
	v, _ := formValue(r, "sources")
	return strings.NewReader(v), nil
}
