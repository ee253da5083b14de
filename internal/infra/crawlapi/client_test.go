package crawlapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/requestid"
	"crawl-dashboard/internal/resilience/circuitbreaker"
	"crawl-dashboard/internal/resilience/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(append([]Option{WithBaseURL(srv.URL + "/api")}, opts...)...)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListSources(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/sources", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(requestid.RequestIDHeader))
		writeJSON(t, w, http.StatusOK, []any{
			map[string]any{"id": "1", "name": "CNN", "url": "https://cnn.com", "runtime_status": "running",
				"stats": map[string]any{"pages": 3}},
			map[string]any{"_id": "2", "title": "BBC"},
			"garbage",
		})
	}))

	sources, err := client.ListSources(context.Background())

	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "CNN", sources[0].Name)
	assert.Equal(t, entity.StatusRunning, sources[0].RuntimeStatus)
	pages, ok := sources[0].Stats.Pages()
	assert.True(t, ok)
	assert.Equal(t, int64(3), pages)
	assert.Equal(t, "2", sources[1].ID)
	assert.Equal(t, entity.StatusIdle, sources[1].RuntimeStatus)
}

func TestClient_ListSources_NonArrayIsEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"detail": "unexpected"})
	}))

	sources, err := client.ListSources(context.Background())

	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestClient_ListSources_InvalidJSON(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	}))

	_, err := client.ListSources(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ListSources_SharesInFlightRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(t, w, http.StatusOK, []any{map[string]any{"id": "1"}})
	}))

	var wg sync.WaitGroup
	results := make([][]entity.Source, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = client.ListSources(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
	for _, r := range results {
		assert.Len(t, r, 1)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Source not found"}`, http.StatusNotFound)
	}))

	_, err := client.FetchStats(context.Background(), "missing")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.True(t, apiErr.NotFound())
	assert.Equal(t, "/sources/missing/stats", apiErr.Path)
	assert.Equal(t, `failed to fetch stats ({"detail":"Source not found"})`, err.Error())
	assert.False(t, retry.IsRetryable(err))
}

func TestClient_ErrorStatus_EmptyBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.StopCrawl(context.Background(), "1")

	require.Error(t, err)
	assert.Equal(t, "failed to stop crawler", err.Error())
	assert.True(t, retry.IsRetryable(err))
}

func TestClient_NoContentIsSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	runID, err := client.StartCrawl(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, runID)

	sources, err := client.ListSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestClient_StartCrawl(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sources/a%2Fb/start", r.URL.EscapedPath())
		writeJSON(t, w, http.StatusOK, map[string]any{"run_id": "run-9"})
	}))

	runID, err := client.StartCrawl(context.Background(), "a/b")

	require.NoError(t, err)
	assert.Equal(t, "run-9", runID)
}

func TestClient_CreateSource(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		echo := map[string]any{"id": "new-1", "runtime_status": "idle"}
		for k, v := range body {
			echo[k] = v
		}
		writeJSON(t, w, http.StatusOK, echo)
	}))

	req := entity.NewCreateRequest("CNN", "https://edition.cnn.com")
	req.SourceType = entity.SourceTypeAuto
	src, err := client.CreateSource(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "new-1", src.ID)
	assert.Equal(t, "CNN", src.Name)
	assert.Nil(t, body["source_type"])
	assert.Contains(t, body, "options")
}

func TestClient_CreateSource_EmptyEcho(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	src, err := client.CreateSource(context.Background(), entity.NewCreateRequest("CNN", "https://cnn.com"))

	require.NoError(t, err)
	assert.Equal(t, "CNN", src.Name)
	assert.Equal(t, "https://cnn.com", src.URL)
	assert.Empty(t, src.ID)
}

func TestClient_CreateSource_Rejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "url and name are required", http.StatusBadRequest)
	}))

	_, err := client.CreateSource(context.Background(), entity.CreateRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "failed to create source (url and name are required)", err.Error())
}

func TestClient_FetchDerivedStats(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 1, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"source_id":           "s1",
			"runtime_status":      "running",
			"running":             true,
			"total_pages":         400,
			"current_run_crawled": 120,
			"runtime_seconds":     nil,
			"rate":                nil,
			"last_run":            map[string]any{"started_at": "2025-03-01T10:00:00Z", "crawled_count": 120},
		})
	}), WithClock(func() time.Time { return now }))

	stats, err := client.FetchDerivedStats(context.Background(), "s1")

	require.NoError(t, err)
	rate, ok := stats.Rate()
	require.True(t, ok)
	assert.InDelta(t, 2.0, rate, 1e-9)
	uptime, ok := stats.Uptime()
	require.True(t, ok)
	assert.InDelta(t, 60.0, uptime, 1e-9)
	pages, _ := stats.Pages()
	assert.Equal(t, int64(400), pages)
}

func TestClient_ListRuns(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/runs", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeJSON(t, w, http.StatusOK, []any{
			map[string]any{"id": "r2", "source_id": "s1", "status": "running", "started_at": "2025-03-01T10:00:00"},
			map[string]any{"id": "r1", "source_id": "s1", "status": "completed", "crawled_count": 50},
		})
	}))

	runs, err := client.ListRuns(context.Background(), 25)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.NotNil(t, runs[0].StartedAt)
	assert.Equal(t, int64(50), runs[1].CrawledCount)
}

func TestClient_UpdateOptions_FallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		accept    string
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "first route accepted",
			accept:    "PUT /api/sources/s1",
			wantCalls: []string{"PUT /api/sources/s1"},
		},
		{
			name:   "partial update on config route",
			accept: "PATCH /api/sources/s1/config",
			wantCalls: []string{
				"PUT /api/sources/s1",
				"PATCH /api/sources/s1",
				"PUT /api/sources/s1/config",
				"PATCH /api/sources/s1/config",
			},
		},
		{
			name:   "every route rejected",
			accept: "",
			wantCalls: []string{
				"PUT /api/sources/s1",
				"PATCH /api/sources/s1",
				"PUT /api/sources/s1/config",
				"PATCH /api/sources/s1/config",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var calls []string
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				route := r.Method + " " + r.URL.Path
				mu.Lock()
				calls = append(calls, route)
				mu.Unlock()

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "finance", body["keyword_filter"])

				if route == tt.accept {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			}))

			payload := entity.UpdatePayload(entity.FilterFinance, entity.DefaultRunOptions())
			err := client.UpdateOptions(context.Background(), "s1", payload)

			assert.Equal(t, tt.wantCalls, calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var updErr *UpdateError
			require.True(t, errors.As(err, &updErr))
			assert.Equal(t, "s1", updErr.ID)
			assert.Len(t, updErr.Attempts, 4)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusMethodNotAllowed, apiErr.StatusCode)
		})
	}
}

func TestClient_UpdateOptions_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	err := client.UpdateOptions(ctx, "s1", map[string]any{})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_PropagatesRequestID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-123", r.Header.Get(requestid.RequestIDHeader))
		assert.Equal(t, "tester/1", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNoContent)
	}), WithUserAgent("tester/1"))

	ctx := requestid.WithRequestID(context.Background(), "req-123")
	require.NoError(t, client.StopCrawl(ctx, "1"))
}

func TestClient_Timeout(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}), WithTimeout(50*time.Millisecond))

	err := client.StopCrawl(context.Background(), "1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop crawler")
}

func TestClient_BreakerIgnoresClientErrors(t *testing.T) {
	cfg := circuitbreaker.BackendAPIConfig()
	cfg.MinRequests = 2
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}), WithBreaker(cfg))

	for i := 0; i < 10; i++ {
		_ = client.StopCrawl(context.Background(), "1")
	}

	assert.False(t, client.BreakerOpen())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	cfg := circuitbreaker.BackendAPIConfig()
	cfg.MinRequests = 2
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithBreaker(cfg))

	for i := 0; i < 5; i++ {
		_ = client.StopCrawl(context.Background(), "1")
	}

	assert.True(t, client.BreakerOpen())
	err := client.StopCrawl(context.Background(), "1")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), WithRateLimit(NewRateLimiter(0.001, 1)))

	require.NoError(t, client.StopCrawl(context.Background(), "1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.StopCrawl(ctx, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestClient_CreatesClientSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_ = client.StopCrawl(context.Background(), "1")
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "crawlapi.stop_crawler", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}
