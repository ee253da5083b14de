package poll

import (
	"time"

	"crawl-dashboard/internal/domain/entity"
)

// Plan is what one tick should fetch.
type Plan struct {
	RefreshList  bool
	RefreshStats bool
}

// Label names the plan for metrics.
func (p Plan) Label() string {
	switch {
	case p.RefreshList && p.RefreshStats:
		return "list_and_stats"
	case p.RefreshList:
		return "list"
	case p.RefreshStats:
		return "stats"
	default:
		return "none"
	}
}

// Decide returns the plan for a tick at now.
//
// While any source is running, both the list and the stats are refreshed on
// every tick. Otherwise the list is refreshed once idleInterval has passed
// since the last list refresh, and stats are left alone.
func Decide(sources []entity.Source, lastListRefresh, now time.Time, idleInterval time.Duration) Plan {
	if AnyRunning(sources) {
		return Plan{RefreshList: true, RefreshStats: true}
	}
	return Plan{RefreshList: lastListRefresh.IsZero() || now.Sub(lastListRefresh) >= idleInterval}
}

// AnyRunning reports whether at least one source is running.
func AnyRunning(sources []entity.Source) bool {
	for _, s := range sources {
		if s.IsRunning() {
			return true
		}
	}
	return false
}

// StatsTargets returns the ids of sources whose stats should be polled:
// those running or stopping.
func StatsTargets(sources []entity.Source) []string {
	var ids []string
	for _, s := range sources {
		if s.RuntimeStatus.InFlight() && s.ID != "" {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// mergeStats returns a copy of sources where every source with an entry in
// stats has its Stats replaced by that entry.
func mergeStats(sources []entity.Source, stats map[string]entity.Stats) []entity.Source {
	out := make([]entity.Source, len(sources))
	copy(out, sources)
	for i := range out {
		if st, ok := stats[out[i].ID]; ok {
			out[i].Stats = st
		}
	}
	return out
}
