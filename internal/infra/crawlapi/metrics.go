package crawlapi

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlapi_requests_total",
			Help: "Total number of requests sent to the crawl backend",
		},
		[]string{"op", "result"}, // result: success|http_4xx|http_5xx|transport|breaker_open
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawlapi_request_duration_seconds",
			Help:    "Crawl backend request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	backendRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawlapi_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the backend rate limiter",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
		},
	)

	updateFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlapi_update_route_attempts_total",
			Help: "Options update attempts per route",
		},
		[]string{"route", "result"},
	)
)

func observeRequest(op string, err error, d time.Duration) {
	backendRequestDuration.WithLabelValues(op).Observe(d.Seconds())
	backendRequestsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return "breaker_open"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	}
	return "transport"
}
