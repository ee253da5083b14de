package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/infra/crawlapi"
	"crawl-dashboard/internal/resilience/retry"
	srcUC "crawl-dashboard/internal/usecase/source"
)

/*────────────────────  stubs  ────────────────────*/

type stubBackend struct {
	mu      sync.Mutex
	sources []entity.Source
	err     error // forced error for every call
	// failCreate makes CreateSource fail for the given names.
	failCreate map[string]error
	// startErrs and stopErrs are returned by StartCrawl and StopCrawl
	// in order, then nil.
	startErrs []error
	stopErrs  []error

	created  []entity.CreateRequest
	started  []string
	starts   int
	stopped  int
	updates  []map[string]any
	runLimit int
}

func (s *stubBackend) ListSources(_ context.Context) ([]entity.Source, error) {
	return s.sources, s.err
}

func (s *stubBackend) CreateSource(_ context.Context, req entity.CreateRequest) (entity.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return entity.Source{}, s.err
	}
	if err := s.failCreate[req.Name]; err != nil {
		return entity.Source{}, err
	}
	s.created = append(s.created, req)
	return entity.Source{ID: req.Name + "-id", Name: req.Name, URL: req.URL}, nil
}

func (s *stubBackend) StartCrawl(_ context.Context, id string) (string, error) {
	s.starts++
	if len(s.startErrs) > 0 {
		err := s.startErrs[0]
		s.startErrs = s.startErrs[1:]
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	s.started = append(s.started, id)
	return "run-" + id, nil
}

func (s *stubBackend) StopCrawl(_ context.Context, _ string) error {
	s.stopped++
	if len(s.stopErrs) > 0 {
		err := s.stopErrs[0]
		s.stopErrs = s.stopErrs[1:]
		return err
	}
	return s.err
}

func (s *stubBackend) UpdateOptions(_ context.Context, _ string, payload map[string]any) error {
	s.updates = append(s.updates, payload)
	return s.err
}

func (s *stubBackend) FetchDerivedStats(_ context.Context, _ string) (entity.Stats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return entity.Stats{"pages": 3}, nil
}

func (s *stubBackend) ListRuns(_ context.Context, limit int) ([]entity.Run, error) {
	s.runLimit = limit
	return []entity.Run{{ID: "r1"}}, s.err
}

type stubCatalog struct {
	sources  []entity.Source
	requests []bool
}

func (c *stubCatalog) Sources() []entity.Source { return c.sources }
func (c *stubCatalog) RequestRefresh(silent bool) {
	c.requests = append(c.requests, silent)
}

func catalog(sources ...entity.Source) *stubCatalog {
	return &stubCatalog{sources: sources}
}

/*────────────────────  tests  ────────────────────*/

/* 1. Create: validation failure sends nothing */
func TestService_Create_validation(t *testing.T) {
	be := &stubBackend{}
	cat := catalog()
	svc := srcUC.Service{Backend: be, Catalog: cat}

	_, err := svc.Create(context.Background(), entity.NewCreateRequest("", "https://example.com"))
	if !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if len(be.created) != 0 {
		t.Fatalf("nothing should be sent, got %d creates", len(be.created))
	}
	if len(cat.requests) != 0 {
		t.Fatalf("no refresh expected, got %v", cat.requests)
	}
}

/* 2. Create: success refreshes visibly */
func TestService_Create_success(t *testing.T) {
	be := &stubBackend{}
	cat := catalog()
	svc := srcUC.Service{Backend: be, Catalog: cat}

	got, err := svc.Create(context.Background(), entity.NewCreateRequest("Example", "https://example.com"))
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if got.ID != "Example-id" {
		t.Fatalf("unexpected source %#v", got)
	}
	if len(cat.requests) != 1 || cat.requests[0] {
		t.Fatalf("want one non-silent refresh, got %v", cat.requests)
	}
}

/* 3. Create: backend failure does not refresh */
func TestService_Create_backendError(t *testing.T) {
	be := &stubBackend{err: errors.New("boom")}
	cat := catalog()
	svc := srcUC.Service{Backend: be, Catalog: cat}

	if _, err := svc.Create(context.Background(), entity.NewCreateRequest("Example", "https://example.com")); err == nil {
		t.Fatal("want error, got nil")
	}
	if len(cat.requests) != 0 {
		t.Fatalf("no refresh expected, got %v", cat.requests)
	}
}

/* 4. Start / Stop */
func TestService_Start(t *testing.T) {
	be := &stubBackend{}
	cat := catalog()
	svc := srcUC.Service{Backend: be, Catalog: cat}

	runID, err := svc.Start(context.Background(), "7")
	if err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if runID != "run-7" {
		t.Fatalf("runID = %q", runID)
	}
	if len(cat.requests) != 1 || cat.requests[0] {
		t.Fatalf("want one non-silent refresh, got %v", cat.requests)
	}

	if _, err := svc.Start(context.Background(), ""); !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("empty id: want ErrInvalidInput, got %v", err)
	}
}

func TestService_Start_sendsOnceOnServerError(t *testing.T) {
	be := &stubBackend{startErrs: []error{&retry.HTTPError{StatusCode: 502, Message: "bad gateway"}}}
	cat := catalog()
	svc := srcUC.Service{Backend: be, Catalog: cat}

	if _, err := svc.Start(context.Background(), "7"); err == nil {
		t.Fatal("want error, got nil")
	}
	if be.starts != 1 {
		t.Fatalf("want 1 attempt, got %d", be.starts)
	}
	if len(be.started) != 0 || len(cat.requests) != 0 {
		t.Fatalf("failed start must not take effect: started=%v refreshes=%v", be.started, cat.requests)
	}
}

func TestService_Start_singleRequestOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/start") {
			hits.Add(1)
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := srcUC.Service{Backend: crawlapi.New(crawlapi.WithBaseURL(srv.URL)), Catalog: catalog()}

	if _, err := svc.Start(context.Background(), "7"); err == nil {
		t.Fatal("want error, got nil")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("want exactly 1 POST /start, got %d", got)
	}
}

func TestService_Stop_sendsOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "server error", err: &retry.HTTPError{StatusCode: 503, Message: "unavailable"}},
		{name: "client error", err: &retry.HTTPError{StatusCode: 404, Message: "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &stubBackend{stopErrs: []error{tt.err}}
			cat := catalog()
			svc := srcUC.Service{Backend: be, Catalog: cat}

			if err := svc.Stop(context.Background(), "7"); err == nil {
				t.Fatal("want error, got nil")
			}
			if be.stopped != 1 {
				t.Fatalf("want 1 attempt, got %d", be.stopped)
			}
			if len(cat.requests) != 0 {
				t.Fatalf("no refresh expected, got %v", cat.requests)
			}
		})
	}
}

/* 5. SaveOptions */
func TestService_SaveOptions(t *testing.T) {
	idle := entity.Source{ID: "1", Name: "Idle", RuntimeStatus: entity.StatusIdle}
	running := entity.Source{ID: "2", Name: "Busy", RuntimeStatus: entity.StatusRunning}
	stopping := entity.Source{ID: "3", Name: "Winding down", RuntimeStatus: entity.StatusStopping}

	tests := []struct {
		name        string
		id          string
		opts        entity.RunOptions
		backendErr  error
		wantErr     error
		wantUpdates int
		wantRefresh bool
	}{
		{name: "idle source", id: "1", opts: entity.DefaultRunOptions(), wantUpdates: 1, wantRefresh: true},
		{name: "stopping source is editable", id: "3", opts: entity.DefaultRunOptions(), wantUpdates: 1, wantRefresh: true},
		{name: "running source is locked", id: "2", opts: entity.DefaultRunOptions(), wantErr: entity.ErrOptionsLocked},
		{name: "unknown source", id: "9", opts: entity.DefaultRunOptions(), wantErr: entity.ErrNotFound},
		{name: "invalid options", id: "1", opts: entity.RunOptions{MaxHits: 0, Concurrency: 1, UserAgent: "x"}, wantErr: entity.ErrInvalidInput},
		{name: "backend rejects still refreshes", id: "1", opts: entity.DefaultRunOptions(), backendErr: errors.New("405"), wantUpdates: 1, wantRefresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &stubBackend{err: tt.backendErr}
			cat := catalog(idle, running, stopping)
			svc := srcUC.Service{Backend: be, Catalog: cat}

			err := svc.SaveOptions(context.Background(), tt.id, entity.FilterFinance, tt.opts)

			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			case tt.wantErr == nil && tt.backendErr == nil && err != nil:
				t.Fatalf("unexpected error %v", err)
			case tt.backendErr != nil && err == nil:
				t.Fatal("want backend error, got nil")
			}
			if len(be.updates) != tt.wantUpdates {
				t.Fatalf("updates = %d, want %d", len(be.updates), tt.wantUpdates)
			}
			if tt.wantUpdates > 0 && be.updates[0]["keyword_filter"] != "finance" {
				t.Fatalf("payload keyword_filter = %v", be.updates[0]["keyword_filter"])
			}
			if got := len(cat.requests) == 1 && !cat.requests[0]; got != tt.wantRefresh {
				t.Fatalf("refresh requests = %v, want refresh %v", cat.requests, tt.wantRefresh)
			}
		})
	}
}

/* 6. Search */
func TestService_Search(t *testing.T) {
	cat := catalog(
		entity.Source{ID: "1", Name: "Example News", URL: "https://news.example.com"},
		entity.Source{ID: "2", Name: "Blog", URL: "https://blog.test"},
		entity.Source{ID: "3", Name: "Docs", URL: "https://EXAMPLE.org/docs"},
	)
	svc := srcUC.Service{Backend: &stubBackend{}, Catalog: cat}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3"}},
		{"   ", []string{"1", "2", "3"}},
		{"example", []string{"1", "3"}},
		{"BLOG", []string{"2"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := svc.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search err=%v", err)
			}
			var ids []string
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

/* 7. List without a catalog goes to the backend */
func TestService_List_backend(t *testing.T) {
	tests := []struct {
		name      string
		backend   *stubBackend
		wantCount int
		wantErr   bool
	}{
		{name: "empty list", backend: &stubBackend{}, wantCount: 0},
		{name: "multiple sources", backend: &stubBackend{sources: []entity.Source{{ID: "1"}, {ID: "2"}}}, wantCount: 2},
		{name: "backend error", backend: &stubBackend{err: errors.New("unreachable")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := srcUC.Service{Backend: tt.backend}
			sources, err := svc.List(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("List() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(sources) != tt.wantCount {
				t.Fatalf("List() got %d sources, want %d", len(sources), tt.wantCount)
			}
		})
	}
}

/* 8. Get */
func TestService_Get_notFound(t *testing.T) {
	svc := srcUC.Service{Backend: &stubBackend{}, Catalog: catalog(entity.Source{ID: "1"})}
	if _, err := svc.Get(context.Background(), "2"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

/* 9. Stats and runs */
func TestService_StatsAndRuns(t *testing.T) {
	be := &stubBackend{}
	svc := srcUC.Service{Backend: be}

	st, err := svc.Stats(context.Background(), "1")
	if err != nil {
		t.Fatalf("Stats err=%v", err)
	}
	if pages, ok := st.Pages(); !ok || pages != 3 {
		t.Fatalf("pages = %d, %v", pages, ok)
	}

	runs, err := svc.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns err=%v", err)
	}
	if len(runs) != 1 || be.runLimit != 10 {
		t.Fatalf("runs = %v, limit = %d", runs, be.runLimit)
	}
}
