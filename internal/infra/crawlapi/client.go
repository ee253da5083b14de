// Package crawlapi is the HTTP/JSON client for the crawl backend.
//
// Every response is normalized into entity types before it leaves the
// package, so callers never see the backend's shifting field names.
package crawlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/requestid"
	"crawl-dashboard/internal/observability/tracing"
	"crawl-dashboard/internal/resilience/circuitbreaker"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

// DefaultUserAgent identifies the dashboard to the backend.
const DefaultUserAgent = "crawl-dashboard/1.0"

// maxResponseBytes bounds a decoded backend response.
const maxResponseBytes = 10 << 20

// Operation names, used in error messages and as metric and span labels.
const (
	opListSources   = "fetch sources"
	opCreateSource  = "create source"
	opFetchStats    = "fetch stats"
	opStartCrawl    = "start crawler"
	opStopCrawl     = "stop crawler"
	opUpdateOptions = "update options"
	opListRuns      = "fetch runs"
)

// Client talks to the crawl backend.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *RateLimiter
	breaker    *circuitbreaker.CircuitBreaker
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time

	listGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the backend base URL, e.g. "http://127.0.0.1:8000/api".
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero means no timeout, which is the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRateLimit throttles outgoing requests. A nil limiter disables throttling.
func WithRateLimit(l *RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBreaker replaces the circuit breaker configuration.
// Backend 4xx responses never count as breaker failures.
func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(c *Client) {
		c.breaker = newBreaker(cfg)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLocation sets the zone used for timestamps the backend sends without one.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used when deriving stats.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client. Without options it targets DefaultBaseURL with no
// timeout and no rate limit.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		userAgent:  DefaultUserAgent,
		breaker:    newBreaker(circuitbreaker.BackendAPIConfig()),
		location:   time.Local,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(cfg circuitbreaker.Config) *circuitbreaker.CircuitBreaker {
	cfg.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return true
		}
		var apiErr *APIError
		return errors.As(err, &apiErr) && apiErr.StatusCode < 500
	}
	return circuitbreaker.New(cfg)
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerOpen reports whether backend calls are currently short-circuited.
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

// ListSources fetches and normalizes every source.
// Concurrent calls share a single request. A response that is not a JSON
// array yields an empty list.
func (c *Client) ListSources(ctx context.Context) ([]entity.Source, error) {
	v, err, _ := c.listGroup.Do("sources", func() (interface{}, error) {
		var raw any
		if err := c.do(ctx, opListSources, http.MethodGet, "/sources", nil, &raw); err != nil {
			return nil, err
		}
		items, _ := raw.([]any)
		sources := make([]entity.Source, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sources = append(sources, normalizeSource(m, c.location))
		}
		return sources, nil
	})
	if err != nil {
		return nil, err
	}
	// Sources are shared between callers; the slice itself is not.
	return slices.Clone(v.([]entity.Source)), nil
}

// CreateSource posts a new source and returns the backend's echo.
// When the backend echoes nothing usable, the source is built from the request.
func (c *Client) CreateSource(ctx context.Context, req entity.CreateRequest) (entity.Source, error) {
	payload := req.Payload()
	var raw any
	if err := c.do(ctx, opCreateSource, http.MethodPost, "/sources", payload, &raw); err != nil {
		return entity.Source{}, err
	}
	if m, ok := raw.(map[string]any); ok {
		return normalizeSource(m, c.location), nil
	}
	return normalizeSource(payload, c.location), nil
}

// FetchStats fetches the raw stats record of one source.
func (c *Client) FetchStats(ctx context.Context, id string) (*StatsRecord, error) {
	var raw any
	if err := c.do(ctx, opFetchStats, http.MethodGet, sourcePath(id, "stats"), nil, &raw); err != nil {
		return nil, err
	}
	m, _ := raw.(map[string]any)
	rec := parseStatsRecord(m, c.location)
	if rec.SourceID == "" {
		rec.SourceID = id
	}
	return rec, nil
}

// FetchDerivedStats fetches the stats of one source and derives the Stats mapping.
func (c *Client) FetchDerivedStats(ctx context.Context, id string) (entity.Stats, error) {
	rec, err := c.FetchStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return DeriveStats(rec, c.now()), nil
}

// StartCrawl starts a crawl run. The returned run id is empty when the
// backend does not report one.
func (c *Client) StartCrawl(ctx context.Context, id string) (string, error) {
	var raw any
	if err := c.do(ctx, opStartCrawl, http.MethodPost, sourcePath(id, "start"), nil, &raw); err != nil {
		return "", err
	}
	m, _ := raw.(map[string]any)
	return lookupOr(m, []string{"run_id", "id"}, asID, ""), nil
}

// StopCrawl asks the backend to stop the running crawl.
func (c *Client) StopCrawl(ctx context.Context, id string) error {
	return c.do(ctx, opStopCrawl, http.MethodPost, sourcePath(id, "stop"), nil, nil)
}

type updateRoute struct {
	method string
	suffix string
}

// Options update routes, tried in order until one succeeds.
var updateRoutes = []updateRoute{
	{http.MethodPut, ""},
	{http.MethodPatch, ""},
	{http.MethodPut, "config"},
	{http.MethodPatch, "config"},
}

// UpdateOptions sends payload to each options update route in turn and
// returns on the first success. When every route fails the returned
// *UpdateError holds one error per attempt.
func (c *Client) UpdateOptions(ctx context.Context, id string, payload map[string]any) error {
	attempts := make([]error, 0, len(updateRoutes))
	for _, route := range updateRoutes {
		path := sourcePath(id, route.suffix)
		label := route.method + " " + routeLabel(route.suffix)

		err := c.do(ctx, opUpdateOptions, route.method, path, payload, nil)
		if err == nil {
			updateFallbacksTotal.WithLabelValues(label, "success").Inc()
			if len(attempts) > 0 {
				c.logger.Info("options updated through fallback route",
					slog.String("source_id", id),
					slog.String("route", label),
					slog.Int("failed_attempts", len(attempts)))
			}
			return nil
		}
		updateFallbacksTotal.WithLabelValues(label, "failure").Inc()
		attempts = append(attempts, fmt.Errorf("%s %s: %w", route.method, path, err))

		if ctx.Err() != nil || errors.Is(err, ErrBackendUnavailable) {
			break
		}
	}
	return &UpdateError{ID: id, Attempts: attempts}
}

// ListRuns fetches the most recent crawl runs, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	path := "/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var raw any
	if err := c.do(ctx, opListRuns, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	items, _ := raw.([]any)
	runs := make([]entity.Run, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			runs = append(runs, normalizeRun(m, c.location))
		}
	}
	return runs, nil
}

func sourcePath(id, suffix string) string {
	p := "/sources/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func routeLabel(suffix string) string {
	if suffix == "" {
		return "/sources/:id"
	}
	return "/sources/:id/" + suffix
}

func metricLabel(op string) string {
	return strings.ReplaceAll(op, " ", "_")
}

// do sends one request and decodes a JSON response into out.
// A 204 or an empty body leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	ctx, span := tracing.GetTracer().Start(ctx, "crawlapi."+metricLabel(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.send(ctx, op, method, path, body, out)
	observeRequest(metricLabel(op), err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.StatusCode))
		}
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body any, out any) error {
	if c.limiter != nil {
		waited, err := c.limiter.Allow(ctx)
		backendRateLimitWait.Observe(waited.Seconds())
		if err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, op, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, err)
		}
		return err
	}

	data, _ := result.([]byte)
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	req.Header.Set(requestid.RequestIDHeader, reqID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(op, method, path, resp.StatusCode, data)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return data, nil
}
