package dashboard

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"crawl-dashboard/internal/domain/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// runsTimeout bounds the recent-runs lookup so a slow backend cannot hold
// the page.
const (
	runsTimeout = 2 * time.Second
	runsLimit   = 10
)

// sourceTypes are the choices of the create form; "auto" lets the backend
// detect the type.
var sourceTypes = []string{
	entity.SourceTypeAuto,
	entity.ContentHTML,
	entity.ContentRSS,
	entity.ContentXML,
	entity.ContentPDF,
	entity.ContentTXT,
}

type filterOption struct {
	Value string
	Label string
}

type pageData struct {
	State       State
	Filters     []filterOption
	SourceTypes []string
	Create      entity.CreateRequest
	Runs        []RunRow
	RunsError   bool
	Flash       string
	FlashLevel  string
	Version     string
}

// PageHandler renders the dashboard page from the latest snapshot.
type PageHandler struct {
	Poller   Poller
	Runs     RunLister
	Location *time.Location
	Version  string
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snap := h.Poller.Snapshot()

	data := pageData{
		State:       NewState(snap, h.Poller.Loading(), q.Get("q")),
		Filters:     filterOptions(),
		SourceTypes: sourceTypes,
		Create:      prefill(q),
		Flash:       q.Get("flash"),
		FlashLevel:  q.Get("level"),
		Version:     h.Version,
	}
	if data.FlashLevel != "error" {
		data.FlashLevel = "info"
	}
	data.Runs, data.RunsError = h.recentRuns(r.Context(), snap.Sources)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger().Error("failed to render dashboard", slog.Any("error", err))
	}
}

func (h *PageHandler) recentRuns(ctx context.Context, sources []entity.Source) ([]RunRow, bool) {
	if h.Runs == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, runsTimeout)
	defer cancel()

	runs, err := h.Runs.RecentRuns(ctx, runsLimit)
	if err != nil {
		h.logger().Warn("failed to load recent runs", slog.Any("error", err))
		return nil, true
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	return newRunRows(runs, sources, now(), loc), false
}

func (h *PageHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func filterOptions() []filterOption {
	filters := entity.KeywordFilters()
	opts := make([]filterOption, 0, len(filters))
	for _, f := range filters {
		opts = append(opts, filterOption{Value: string(f), Label: f.Label()})
	}
	return opts
}

// prefill returns the create form defaults, overridden by the values a
// probe redirect carries.
func prefill(q map[string][]string) entity.CreateRequest {
	req := entity.NewCreateRequest("", "")
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	if v := get("name"); v != "" {
		req.Name = v
	}
	if v := get("url"); v != "" {
		req.URL = v
	}
	if v := get("description"); v != "" {
		req.Description = v
	}
	if v := get("source_type"); v != "" {
		req.SourceType = v
	}
	return req
}

// StaticHandler serves the page's script and stylesheet.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
