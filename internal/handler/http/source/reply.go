package source

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/pathutil"
	"crawl-dashboard/internal/handler/http/respond"
	"crawl-dashboard/internal/infra/crawlapi"
	"crawl-dashboard/internal/infra/probe"
	"crawl-dashboard/internal/observability/logging"
	srcUC "crawl-dashboard/internal/usecase/source"
)

// statusFor maps a command error to a response status.
func statusFor(err error) int {
	var apiErr *crawlapi.APIError
	switch {
	case errors.Is(err, entity.ErrOptionsLocked):
		return http.StatusConflict
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, pathutil.ErrInvalidID),
		errors.Is(err, srcUC.ErrImportEmpty),
		errors.Is(err, srcUC.ErrImportFormat),
		errors.Is(err, probe.ErrInvalidURL),
		errors.Is(err, probe.ErrPrivateIP):
		return http.StatusBadRequest
	case errors.Is(err, crawlapi.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, probe.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr) && apiErr.NotFound():
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// flashURL is the page URL showing msg after a form post.
func flashURL(r *http.Request, level, msg string, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = vs
	}
	q.Set("flash", msg)
	q.Set("level", level)
	if r.PostForm == nil {
		_ = r.ParseForm()
	}
	if search, ok := formValue(r, "q"); ok && search != "" {
		q.Set("q", search)
	}
	return "/?" + q.Encode()
}

// ok answers a successful command.
func ok(w http.ResponseWriter, r *http.Request, code int, body any, msg string) {
	if isForm(r) {
		http.Redirect(w, r, flashURL(r, "info", msg, nil), http.StatusSeeOther)
		return
	}
	respond.JSON(w, code, body)
}

// fail answers a failed command. Backend failures are reported as
// "<action> failed" with the cause logged; client errors carry their message.
func fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	code := statusFor(err)
	logging.FromContext(r.Context()).Warn("command failed",
		slog.String("action", action),
		slog.Int("status", code),
		slog.Any("error", err))
	if isForm(r) {
		msg := action + " failed"
		if code < 500 {
			msg = err.Error()
		}
		http.Redirect(w, r, flashURL(r, "error", msg, nil), http.StatusSeeOther)
		return
	}
	if code >= 500 {
		respond.WriteError(w, code, respond.NewAppError(code, action+" failed", err))
		return
	}
	respond.SafeError(w, code, err)
}
