package entity

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Stat keys written by the stats derivation. Readers should go through the
// accessors below, which also accept the alternative spellings some backend
// versions use.
const (
	StatPages          = "pages"
	StatPagesCrawled   = "pages_crawled"
	StatDocuments      = "documents"
	StatQueued         = "queued"
	StatErrors         = "errors"
	StatRate           = "rate"
	StatPagesPerMin    = "pages_per_min"
	StatThroughput     = "throughput"
	StatUptime         = "uptime"
	StatRuntimeSeconds = "runtime_seconds"
)

var (
	pagesKeys  = []string{StatPages, StatPagesCrawled, StatDocuments}
	queuedKeys = []string{StatQueued, "queue_size", "pending"}
	errorKeys  = []string{StatErrors, "error_count"}
	rateKeys   = []string{StatRate, StatPagesPerMin, StatThroughput}
	uptimeKeys = []string{StatUptime, StatRuntimeSeconds}
)

// Stats is a best-effort snapshot of live crawl metrics.
// A missing key means "unknown", which is different from zero.
type Stats map[string]any

// Pages returns the crawled page count.
func (s Stats) Pages() (int64, bool) { return s.count(pagesKeys) }

// Queued returns the number of queued URLs.
func (s Stats) Queued() (int64, bool) { return s.count(queuedKeys) }

// Errors returns the number of fetch errors.
func (s Stats) Errors() (int64, bool) { return s.count(errorKeys) }

// Rate returns the crawl rate in pages per second.
func (s Stats) Rate() (float64, bool) { return s.first(rateKeys) }

// Uptime returns the elapsed run time in seconds.
func (s Stats) Uptime() (float64, bool) { return s.first(uptimeKeys) }

// Clone returns a shallow copy. Cloning nil yields an empty, non-nil map.
func (s Stats) Clone() Stats {
	if s == nil {
		return Stats{}
	}
	return maps.Clone(s)
}

func (s Stats) first(keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := s[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := Number(v); ok {
			return f, true
		}
	}
	return 0, false
}

func (s Stats) count(keys []string) (int64, bool) {
	f, ok := s.first(keys)
	if !ok {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// Number converts a decoded JSON value to float64.
// It accepts native numeric types, json.Number, and numeric strings.
// NaN and infinities are rejected.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
