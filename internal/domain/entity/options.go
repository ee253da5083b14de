package entity

import (
	"maps"
	"math"
	"strings"
)

// DefaultUserAgent is the crawler user agent suggested for new sources.
const DefaultUserAgent = "CrawlerDashboardBot/1.0"

// Options is the raw run configuration mapping of a source.
type Options map[string]any

// Clone returns a shallow copy. Cloning nil yields an empty, non-nil map.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// RunOptions is the typed view of the tunables a user can edit.
type RunOptions struct {
	MaxHits           int     `json:"max_hits" yaml:"max_hits"`
	MaxDepth          int     `json:"max_depth" yaml:"max_depth"`
	Concurrency       int     `json:"concurrency" yaml:"concurrency"`
	RespectRobots     bool    `json:"respect_robots" yaml:"respect_robots"`
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
	IncludeSubdomains bool    `json:"include_subdomains" yaml:"include_subdomains"`
	RequestDelay      float64 `json:"request_delay" yaml:"request_delay"`
}

// DefaultRunOptions returns the values a new source starts with.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxHits:           50,
		MaxDepth:          2,
		Concurrency:       3,
		RespectRobots:     true,
		UserAgent:         DefaultUserAgent,
		IncludeSubdomains: true,
		RequestDelay:      0,
	}
}

// Run resolves the typed run options, falling back to defaults for anything
// missing or malformed. Both snake_case and camelCase spellings are accepted.
func (o Options) Run() RunOptions {
	out := DefaultRunOptions()
	if n, ok := o.number("max_hits", "maxHits"); ok {
		out.MaxHits = int(math.Round(n))
	}
	if n, ok := o.number("max_depth", "maxDepth"); ok {
		out.MaxDepth = int(math.Round(n))
	}
	if n, ok := o.number("concurrency", "workers"); ok {
		out.Concurrency = int(math.Round(n))
	}
	if b, ok := o.boolean("respect_robots", "robots"); ok {
		out.RespectRobots = b
	}
	if s, ok := o.text("user_agent", "userAgent"); ok {
		out.UserAgent = s
	}
	if b, ok := o.boolean("include_subdomains", "subdomains"); ok {
		out.IncludeSubdomains = b
	}
	if n, ok := o.number("request_delay", "requestDelay"); ok {
		out.RequestDelay = n
	}
	return out
}

// Validate checks the tunables for values the backend could not act on.
func (r RunOptions) Validate() error {
	if r.MaxHits < 1 {
		return &ValidationError{Field: "max_hits", Message: "must be at least 1"}
	}
	if r.MaxDepth < 0 {
		return &ValidationError{Field: "max_depth", Message: "must be zero or positive"}
	}
	if r.Concurrency < 1 {
		return &ValidationError{Field: "concurrency", Message: "must be at least 1"}
	}
	if r.RequestDelay < 0 {
		return &ValidationError{Field: "request_delay", Message: "must be zero or positive"}
	}
	if strings.TrimSpace(r.UserAgent) == "" {
		return &ValidationError{Field: "user_agent", Message: "is required"}
	}
	return nil
}

// Map returns the tunables with the wire key names.
func (r RunOptions) Map() map[string]any {
	return map[string]any{
		"max_hits":           r.MaxHits,
		"max_depth":          r.MaxDepth,
		"concurrency":        r.Concurrency,
		"respect_robots":     r.RespectRobots,
		"user_agent":         r.UserAgent,
		"include_subdomains": r.IncludeSubdomains,
		"request_delay":      r.RequestDelay,
	}
}

// UpdatePayload builds the body sent to the options update routes.
// The tunables are sent both flattened and nested under "options" so that
// either backend convention picks them up.
func UpdatePayload(filter KeywordFilter, opts RunOptions) map[string]any {
	if filter == "" {
		filter = FilterNone
	}
	nested := opts.Map()
	nested["keyword_filter"] = string(filter)

	payload := opts.Map()
	payload["keyword_filter"] = string(filter)
	payload["options"] = nested
	return payload
}

func (o Options) number(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := Number(v); ok {
			return n, true
		}
	}
	return 0, false
}

func (o Options) boolean(keys ...string) (bool, bool) {
	for _, k := range keys {
		switch v := o[k].(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes", "on":
				return true, true
			case "false", "0", "no", "off":
				return false, true
			}
		}
	}
	return false, false
}

func (o Options) text(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := o[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
