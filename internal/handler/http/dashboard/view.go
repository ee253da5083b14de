package dashboard

import (
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/usecase/poll"
	srcUC "crawl-dashboard/internal/usecase/source"
)

// Row is one source as the page and the live feed show it.
type Row struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	SourceType  string            `json:"source_type,omitempty"`
	Description string            `json:"description,omitempty"`
	Filter      string            `json:"filter"`
	FilterLabel string            `json:"filter_label"`
	Status      string            `json:"status"`
	Running     bool              `json:"running"`
	CanEdit     bool              `json:"can_edit"`
	Stats       StatsView         `json:"stats"`
	Options     entity.RunOptions `json:"options"`
}

// State is the dashboard state pushed to live clients and served by
// /api/state.
type State struct {
	Sources   []Row  `json:"sources"`
	Total     int    `json:"total"`
	Running   int    `json:"running"`
	Loading   bool   `json:"loading"`
	Version   uint64 `json:"version"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Query     string `json:"query,omitempty"`
}

// NewRow builds the display row of a source.
func NewRow(s entity.Source) Row {
	filter := s.KeywordFilter
	if filter == "" {
		filter = entity.FilterNone
	}
	status := string(s.RuntimeStatus)
	if status == "" {
		status = string(entity.StatusIdle)
	}
	return Row{
		ID:          s.ID,
		Name:        s.Name,
		URL:         s.URL,
		SourceType:  s.SourceType,
		Description: s.Description,
		Filter:      string(filter),
		FilterLabel: filter.Label(),
		Status:      status,
		Running:     s.IsRunning(),
		CanEdit:     s.CanEditOptions(),
		Stats:       FormatStats(s.Stats),
		Options:     s.Options.Run(),
	}
}

// NewState builds the state for a snapshot, keeping the sources that match
// query. Total and Running count the whole snapshot.
func NewState(snap poll.Snapshot, loading bool, query string) State {
	matched := srcUC.Filter(snap.Sources, query)
	st := State{
		Sources: make([]Row, 0, len(matched)),
		Total:   len(snap.Sources),
		Loading: loading,
		Version: snap.Version,
		Query:   query,
	}
	for _, s := range snap.Sources {
		if s.IsRunning() {
			st.Running++
		}
	}
	for _, s := range matched {
		st.Sources = append(st.Sources, NewRow(s))
	}
	if !snap.UpdatedAt.IsZero() {
		st.UpdatedAt = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return st
}

// RunRow is one entry of the recent-runs panel.
type RunRow struct {
	ID         string
	SourceName string
	Status     string
	StartedAt  string
	Duration   string
	Crawled    int64
}

func newRunRows(runs []entity.Run, sources []entity.Source, now time.Time, loc *time.Location) []RunRow {
	names := make(map[string]string, len(sources))
	for _, s := range sources {
		names[s.ID] = s.Name
	}
	rows := make([]RunRow, 0, len(runs))
	for _, r := range runs {
		name := names[r.SourceID]
		if name == "" {
			name = r.SourceID
		}
		d, ok := r.Duration(now)
		rows = append(rows, RunRow{
			ID:         r.ID,
			SourceName: name,
			Status:     r.Status,
			StartedAt:  formatTime(r.StartedAt, loc),
			Duration:   FormatUptime(d.Seconds(), ok),
			Crawled:    r.CrawledCount,
		})
	}
	return rows
}
