// Package probe previews what the backend will find at a seed URL before a
// source is created: the detected source type, a suggested name and
// description, and any feed an HTML page advertises.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/observability/metrics"
	"crawl-dashboard/internal/observability/tracing"
	"crawl-dashboard/internal/resilience/circuitbreaker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Prober fetches seed URLs and classifies them.
//
// Every request target, redirects included, passes SSRF validation. Bodies
// are read up to Config.MaxBodySize, and server failures trip a circuit
// breaker shared by all probes.
//
// Prober is safe for concurrent use.
type Prober struct {
	cfg      Config
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	resolver resolver
	logger   *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the transport. The redirect policy is always
// installed on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) {
		if hc != nil {
			clone := *hc
			p.client = &clone
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Prober.
func New(cfg Config, opts ...Option) *Prober {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	cbCfg := circuitbreaker.ProbeConfig()
	cbCfg.IsSuccessful = func(err error) bool {
		var se *StatusError
		return err == nil || (errors.As(err, &se) && se.Code < 500)
	}

	p := &Prober{
		cfg:      cfg,
		breaker:  circuitbreaker.New(cbCfg),
		resolver: net.DefaultResolver,
		logger:   slog.Default(),
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client.CheckRedirect = p.checkRedirect
	return p
}

func (p *Prober) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > p.cfg.MaxRedirects {
		return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
	}
	if err := validateURL(req.Context(), p.resolver, req.URL, p.cfg.DenyPrivateIPs); err != nil {
		return fmt.Errorf("redirect target: %w", err)
	}
	return nil
}

// Probe fetches rawURL and describes it.
func (p *Prober) Probe(ctx context.Context, rawURL string) (entity.Probe, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "probe.fetch")
	defer span.End()

	start := time.Now()
	result, size, err := p.probe(ctx, strings.TrimSpace(rawURL))
	metrics.RecordProbe(result.DetectedType, err, time.Since(start), size)

	span.SetAttributes(
		attribute.String("probe.url", rawURL),
		attribute.String("probe.detected_type", result.DetectedType),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("probe failed", slog.String("url", rawURL), slog.Any("error", err))
		return entity.Probe{URL: rawURL}, err
	}
	p.logger.Debug("probe finished",
		slog.String("url", rawURL),
		slog.String("detected_type", result.DetectedType),
		slog.Int64("size", size))
	return result, nil
}

type fetched struct {
	probe entity.Probe
	size  int64
}

func (p *Prober) probe(ctx context.Context, rawURL string) (entity.Probe, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return entity.Probe{}, 0, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if err := validateURL(ctx, p.resolver, u, p.cfg.DenyPrivateIPs); err != nil {
		return entity.Probe{}, 0, err
	}

	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, u)
	})
	if err != nil {
		return entity.Probe{}, 0, err
	}
	f := res.(fetched)
	return f.probe, f.size, nil
}

func (p *Prober) fetch(ctx context.Context, u *url.URL) (fetched, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fetched{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fetched{}, fmt.Errorf("%w: request exceeded %v", ErrTimeout, p.cfg.Timeout)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return fetched{}, urlErr.Err
		}
		return fetched{}, fmt.Errorf("fetch seed url: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetched{}, &StatusError{Code: resp.StatusCode}
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	out := entity.Probe{
		URL:          u.String(),
		FinalURL:     final.String(),
		ContentType:  resp.Header.Get("Content-Type"),
		DetectedType: DetectType(resp.Header.Get("Content-Type"), final),
	}

	switch out.DetectedType {
	case entity.ContentPDF, entity.ContentTXT:
		return fetched{probe: out, size: max(resp.ContentLength, 0)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(p.cfg.MaxBodySize)+1))
	if err != nil {
		return fetched{}, fmt.Errorf("read seed url body: %w", err)
	}
	if len(body) > p.cfg.MaxBodySize {
		return fetched{}, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, p.cfg.MaxBodySize)
	}

	switch out.DetectedType {
	case entity.ContentRSS, entity.ContentXML:
		extractFeed(body, &out)
	default:
		extractHTML(body, final, &out)
	}
	return fetched{probe: out, size: int64(len(body))}, nil
}
