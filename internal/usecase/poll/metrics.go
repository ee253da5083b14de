package poll

import (
	"time"

	"crawl-dashboard/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch kinds used as metric labels.
const (
	kindList  = "list"
	kindStats = "stats"
)

// Metrics are the controller's Prometheus metrics:
//   - poller_ticks_total{plan}: ticks by the plan they produced
//   - poller_fetches_total{kind, result}: list and stats refreshes
//   - poller_fetch_duration_seconds{kind}
//   - poller_stats_failures_total: per-source stats requests that failed
//   - poller_snapshot_changes_total{result}: change-detection outcomes
//   - poller_snapshot_updated_timestamp_seconds
//   - poller_sources{runtime_status}
type Metrics struct {
	TicksTotal         *prometheus.CounterVec
	FetchesTotal       *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	StatsFailuresTotal prometheus.Counter
	SnapshotChanges    *prometheus.CounterVec
	SnapshotUpdated    prometheus.Gauge
	SourcesByStatus    *prometheus.GaugeVec
}

// NewMetrics creates and registers the metrics with reg, or with the default
// registerer when reg is nil. Registering twice with the same registerer panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TicksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_ticks_total",
			Help: "Total number of poll ticks by plan",
		}, []string{"plan"}),

		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_fetches_total",
			Help: "Total number of list and stats refreshes by result",
		}, []string{"kind", "result"}),

		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poller_fetch_duration_seconds",
			Help:    "Duration of list and stats refreshes in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		StatsFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "poller_stats_failures_total",
			Help: "Total number of per-source stats requests that failed",
		}),

		SnapshotChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_snapshot_changes_total",
			Help: "Total number of fetched lists compared with the published one, by result",
		}, []string{"result"}),

		SnapshotUpdated: f.NewGauge(prometheus.GaugeOpts{
			Name: "poller_snapshot_updated_timestamp_seconds",
			Help: "Unix timestamp of the last published source list",
		}),

		SourcesByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "poller_sources",
			Help: "Number of published sources by runtime status",
		}, []string{"runtime_status"}),
	}
}

func (m *Metrics) recordTick(p Plan) {
	m.TicksTotal.WithLabelValues(p.Label()).Inc()
}

func (m *Metrics) recordFetch(kind string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.FetchesTotal.WithLabelValues(kind, result).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) recordApply(changed bool) {
	if changed {
		m.SnapshotChanges.WithLabelValues("changed").Inc()
		return
	}
	m.SnapshotChanges.WithLabelValues("unchanged").Inc()
}

func (m *Metrics) recordSnapshot(s Snapshot) {
	m.SnapshotUpdated.Set(float64(s.UpdatedAt.Unix()))
	counts := make(map[entity.RuntimeStatus]int)
	for _, src := range s.Sources {
		counts[src.RuntimeStatus]++
	}
	m.SourcesByStatus.Reset()
	for status, n := range counts {
		m.SourcesByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}
