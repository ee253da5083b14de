// Package metrics holds the dashboard's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command and live-update metrics
var (
	// CommandsTotal counts operator commands by command and result.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_commands_total",
			Help: "Total number of operator commands sent to the crawl backend",
		},
		[]string{"command", "result"},
	)

	// LiveClients tracks connected websocket clients.
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_live_clients",
			Help: "Number of connected live-update clients",
		},
	)
)

// Seed probe metrics
var (
	// ProbeTotal counts seed URL probes by detected content type and result.
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_probe_total",
			Help: "Total number of seed URL probes",
		},
		[]string{"content_type", "result"},
	)

	// ProbeDuration measures seed URL probe latency.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_probe_duration_seconds",
			Help:    "Seed URL probe duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ProbeSize measures the bytes read while probing.
	ProbeSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dashboard_probe_size_bytes",
			Help: "Bytes read from a seed URL while probing",
			Buckets: []float64{
				1024, 4096, 16384, 65536, 262144, 1048576, 2097152,
			},
		},
	)
)
