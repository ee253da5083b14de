package entity

import (
	"strings"
	"time"
)

// RuntimeStatus is the backend-reported lifecycle state of a source's crawl job.
// Values other than the constants below are kept verbatim.
type RuntimeStatus string

const (
	StatusIdle     RuntimeStatus = "idle"
	StatusRunning  RuntimeStatus = "running"
	StatusStopping RuntimeStatus = "stopping"
)

// InFlight reports whether a crawl job is running or winding down.
// Stats are only polled for sources in flight.
func (s RuntimeStatus) InFlight() bool {
	return s == StatusRunning || s == StatusStopping
}

// Source represents one crawl target tracked by the backend.
// It is the canonical shape produced by the normalizer; the backend itself
// may spell every field differently.
//
// Options and Stats are raw mappings. Stats is overwritten wholesale on each
// poll and never merged field-by-field.
type Source struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	URL           string        `json:"url" yaml:"url"`
	RuntimeStatus RuntimeStatus `json:"runtime_status" yaml:"runtime_status"`
	KeywordFilter KeywordFilter `json:"keyword_filter" yaml:"keyword_filter"`
	Options       Options       `json:"options" yaml:"options"`
	Stats         Stats         `json:"stats" yaml:"stats"`

	SourceType  string `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Status is the enablement flag ("active" / "inactive"), unrelated to RuntimeStatus.
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
	LastRun *Run   `json:"last_run,omitempty" yaml:"last_run,omitempty"`
}

// IsRunning reports whether the backend currently reports the crawl as running.
func (s Source) IsRunning() bool {
	return s.RuntimeStatus == StatusRunning
}

// CanEditOptions reports whether run options may be edited.
// Editing is refused while the crawl is running; the backend remains the
// authority and may reject the update on its own.
func (s Source) CanEditOptions() bool {
	return !s.IsRunning()
}

// Matches reports whether the source matches a search query.
// The match is a case-insensitive substring test against name and url.
// An empty or blank query matches everything.
func (s Source) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.URL), q)
}

// Record returns the source as a raw backend record using canonical key names.
// Normalizing the result yields an equal Source.
func (s Source) Record() map[string]any {
	rec := map[string]any{
		"id":             s.ID,
		"name":           s.Name,
		"url":            s.URL,
		"runtime_status": string(s.RuntimeStatus),
		"keyword_filter": string(s.KeywordFilter),
		"options":        map[string]any(s.Options.Clone()),
		"stats":          map[string]any(s.Stats.Clone()),
	}
	if s.SourceType != "" {
		rec["source_type"] = s.SourceType
	}
	if s.Description != "" {
		rec["description"] = s.Description
	}
	if s.Status != "" {
		rec["status"] = s.Status
	}
	if s.LastRun != nil {
		rec["last_run"] = s.LastRun.Record()
	}
	return rec
}

// Run describes one crawl run as reported by the backend.
type Run struct {
	ID           string     `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID     string     `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Status       string     `json:"status,omitempty" yaml:"status,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	CrawledCount int64      `json:"crawled_count" yaml:"crawled_count"`
}

// Duration returns the elapsed time of the run.
// Unfinished runs are measured up to now. ok is false when the start is unknown.
func (r Run) Duration(now time.Time) (time.Duration, bool) {
	if r.StartedAt == nil {
		return 0, false
	}
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(*r.StartedAt), true
}

// Record returns the run as a raw backend record.
func (r Run) Record() map[string]any {
	rec := map[string]any{
		"crawled_count": r.CrawledCount,
	}
	if r.ID != "" {
		rec["id"] = r.ID
	}
	if r.SourceID != "" {
		rec["source_id"] = r.SourceID
	}
	if r.Status != "" {
		rec["status"] = r.Status
	}
	if r.StartedAt != nil {
		rec["started_at"] = r.StartedAt.Format(time.RFC3339Nano)
	}
	if r.FinishedAt != nil {
		rec["finished_at"] = r.FinishedAt.Format(time.RFC3339Nano)
	}
	return rec
}
