package crawlapi

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
	"time"

	"crawl-dashboard/internal/domain/entity"
)

// Canonical fields and the backend keys they may arrive under, in priority order.
// Different backend versions spell the same field differently; the first
// present, non-null and well-typed candidate wins.
var sourceFields = map[string][]string{
	"id":             {"id", "_id", "source_id"},
	"name":           {"name", "title"},
	"url":            {"url", "start_url", "seed_url"},
	"runtime_status": {"runtime_status", "status", "state"},
	"options":        {"options", "config", "params", "settings"},
	"stats":          {"stats", "metrics", "live_stats"},
	"keyword_filter": {"keyword_filter"},
	"source_type":    {"source_type", "type"},
	"description":    {"description"},
	"status":         {"status"},
	"last_run":       {"last_run"},
}

var runFields = map[string][]string{
	"id":            {"id", "_id", "run_id"},
	"source_id":     {"source_id"},
	"status":        {"status"},
	"started_at":    {"started_at"},
	"finished_at":   {"finished_at"},
	"crawled_count": {"crawled_count", "current_run_crawled"},
}

const unnamedSource = "Unnamed"

// lookup returns the first candidate key whose value is accepted.
// Missing keys, nulls and values accept rejects are skipped.
func lookup[T any](raw map[string]any, keys []string, accept func(any) (T, bool)) (T, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if out, ok := accept(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

func lookupOr[T any](raw map[string]any, keys []string, accept func(any) (T, bool), def T) T {
	if v, ok := lookup(raw, keys, accept); ok {
		return v
	}
	return def
}

// NormalizeSource maps a raw backend record onto the canonical Source.
// It never fails: missing or malformed fields take their defaults.
// Naive timestamps are read in local time.
func NormalizeSource(raw map[string]any) entity.Source {
	return normalizeSource(raw, time.Local)
}

// NormalizeSources normalizes every record, preserving order.
func NormalizeSources(raws []map[string]any) []entity.Source {
	out := make([]entity.Source, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeSource(raw))
	}
	return out
}

func normalizeSource(raw map[string]any, loc *time.Location) entity.Source {
	opts := lookupOr(raw, sourceFields["options"], asMap, map[string]any{})
	src := entity.Source{
		ID:            lookupOr(raw, sourceFields["id"], asID, ""),
		Name:          lookupOr(raw, sourceFields["name"], asText, unnamedSource),
		URL:           lookupOr(raw, sourceFields["url"], asText, ""),
		RuntimeStatus: entity.RuntimeStatus(lookupOr(raw, sourceFields["runtime_status"], asText, string(entity.StatusIdle))),
		Options:       entity.Options(opts),
		Stats:         entity.Stats(lookupOr(raw, sourceFields["stats"], asMap, map[string]any{})),
		SourceType:    lookupOr(raw, sourceFields["source_type"], asText, ""),
		Description:   lookupOr(raw, sourceFields["description"], asText, ""),
		Status:        lookupOr(raw, sourceFields["status"], asEnablement, ""),
	}

	filter, ok := lookup(raw, sourceFields["keyword_filter"], asText)
	if !ok {
		filter, ok = lookup(opts, sourceFields["keyword_filter"], asText)
	}
	if !ok {
		filter = string(entity.FilterNone)
	}
	src.KeywordFilter = entity.KeywordFilter(filter)

	if run, ok := lookup(raw, sourceFields["last_run"], asMap); ok {
		r := normalizeRun(run, loc)
		src.LastRun = &r
	}
	return src
}

// NormalizeRun maps a raw run record onto entity.Run.
func NormalizeRun(raw map[string]any) entity.Run {
	return normalizeRun(raw, time.Local)
}

func normalizeRun(raw map[string]any, loc *time.Location) entity.Run {
	run := entity.Run{
		ID:       lookupOr(raw, runFields["id"], asID, ""),
		SourceID: lookupOr(raw, runFields["source_id"], asID, ""),
		Status:   lookupOr(raw, runFields["status"], asText, ""),
	}
	if t, ok := lookup(raw, runFields["started_at"], asTime(loc)); ok {
		run.StartedAt = &t
	}
	if t, ok := lookup(raw, runFields["finished_at"], asTime(loc)); ok {
		run.FinishedAt = &t
	}
	if n, ok := lookup(raw, runFields["crawled_count"], asCount); ok {
		run.CrawledCount = n
	}
	return run
}

func asText(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func asEnablement(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && (s == entity.SourceActive || s == entity.SourceInactive)
}

// asID accepts strings and numbers. Numbers are formatted without an exponent.
func asID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
	}
	f, ok := entity.Number(v)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return maps.Clone(m), true
	case entity.Options:
		return maps.Clone(map[string]any(m)), true
	case entity.Stats:
		return maps.Clone(map[string]any(m)), true
	default:
		return nil, false
	}
}

func asNumber(v any) (float64, bool) {
	return entity.Number(v)
}

func asCount(v any) (int64, bool) {
	f, ok := entity.Number(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// asTime parses RFC 3339 timestamps, and zone-less ISO 8601 timestamps in loc.
func asTime(loc *time.Location) func(any) (time.Time, bool) {
	return func(v any) (time.Time, bool) {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, false
		}
		return parseTimestamp(strings.TrimSpace(s), loc)
	}
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
