package crawlapi

import (
	"time"

	"crawl-dashboard/internal/domain/entity"
)

// StatsRecord is the typed form of GET /sources/{id}/stats.
// Pointer fields are nil when the backend omitted them or sent null.
type StatsRecord struct {
	SourceID          string
	Name              string
	URL               string
	RuntimeStatus     entity.RuntimeStatus
	Running           bool
	TotalPages        *int64
	CurrentRunCrawled *int64
	RuntimeSeconds    *float64
	Rate              *float64
	Queued            *int64
	Errors            *int64
	CrawlCount        *int64
	LastCrawled       *time.Time
	LastRun           *entity.Run
}

// IsRunning reports whether the backend considers the crawl active,
// either through the running flag or the runtime status.
func (r *StatsRecord) IsRunning() bool {
	return r.Running || r.RuntimeStatus == entity.StatusRunning
}

func parseStatsRecord(raw map[string]any, loc *time.Location) *StatsRecord {
	rec := &StatsRecord{
		SourceID:      lookupOr(raw, []string{"source_id", "id"}, asID, ""),
		Name:          lookupOr(raw, []string{"name"}, asText, ""),
		URL:           lookupOr(raw, []string{"url"}, asText, ""),
		RuntimeStatus: entity.RuntimeStatus(lookupOr(raw, []string{"runtime_status"}, asText, string(entity.StatusIdle))),
		Running:       lookupOr(raw, []string{"running"}, asBool, false),
		TotalPages:    optionalLookup(raw, []string{"total_pages"}, asCount),
		// Present-but-null is "unknown"; a present zero is kept.
		CurrentRunCrawled: optionalLookup(raw, []string{"current_run_crawled"}, asCount),
		RuntimeSeconds:    optionalLookup(raw, []string{"runtime_seconds"}, asNumber),
		Rate:              optionalLookup(raw, []string{"rate"}, asNumber),
		Queued:            optionalLookup(raw, []string{"queued", "queue_size", "pending"}, asCount),
		Errors:            optionalLookup(raw, []string{"errors", "error_count"}, asCount),
		CrawlCount:        optionalLookup(raw, []string{"crawl_count"}, asCount),
		LastCrawled:       optionalLookup(raw, []string{"last_crawled"}, asTime(loc)),
	}
	if run, ok := lookup(raw, []string{"last_run"}, asMap); ok {
		r := normalizeRun(run, loc)
		rec.LastRun = &r
	}
	return rec
}

func optionalLookup[T any](raw map[string]any, keys []string, accept func(any) (T, bool)) *T {
	v, ok := lookup(raw, keys, accept)
	if !ok {
		return nil
	}
	return &v
}

// DeriveStats turns a stats record into the Stats mapping stored on a Source.
//
// Pages crawled in the current run come from current_run_crawled, then
// last_run.crawled_count, then 0. The pages total is total_pages, or 0 when
// the backend omits it. Backend runtime and rate are used when
// positive. For a running crawl with a known start time, uptime is measured
// from the start to now and the rate is recomputed as pages per second.
// Keys whose value is unknown are omitted, never written as zero.
func DeriveStats(rec *StatsRecord, now time.Time) entity.Stats {
	stats := entity.Stats{}
	if rec == nil {
		return stats
	}

	var crawled int64
	switch {
	case rec.CurrentRunCrawled != nil:
		crawled = *rec.CurrentRunCrawled
	case rec.LastRun != nil:
		crawled = rec.LastRun.CrawledCount
	}

	var uptime, rate float64
	if rec.RuntimeSeconds != nil && *rec.RuntimeSeconds > 0 {
		uptime = *rec.RuntimeSeconds
	}
	if rec.Rate != nil && *rec.Rate > 0 {
		rate = *rec.Rate
	}

	if rec.IsRunning() && rec.LastRun != nil && rec.LastRun.StartedAt != nil {
		uptime = now.Sub(*rec.LastRun.StartedAt).Seconds()
		if uptime > 0 && crawled > 0 {
			rate = float64(crawled) / uptime
		}
	}

	var pages int64
	if rec.TotalPages != nil {
		pages = *rec.TotalPages
	}
	stats[entity.StatPages] = pages
	stats[entity.StatPagesCrawled] = crawled
	stats[entity.StatDocuments] = crawled

	if rate > 0 {
		stats[entity.StatRate] = rate
		stats[entity.StatPagesPerMin] = rate * 60
		stats[entity.StatThroughput] = rate
	}
	if uptime > 0 {
		stats[entity.StatUptime] = uptime
		stats[entity.StatRuntimeSeconds] = uptime
	}
	if rec.Queued != nil {
		stats[entity.StatQueued] = *rec.Queued
	}
	if rec.Errors != nil {
		stats[entity.StatErrors] = *rec.Errors
	}
	return stats
}
