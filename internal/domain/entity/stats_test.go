package entity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_Accessors(t *testing.T) {
	tests := []struct {
		name       string
		stats      Stats
		wantPages  int64
		pagesOK    bool
		wantRate   float64
		rateOK     bool
		wantUptime float64
		uptimeOK   bool
	}{
		{
			name:  "empty stats are unknown",
			stats: Stats{},
		},
		{
			name:       "canonical keys",
			stats:      Stats{"pages": 12.0, "rate": 0.5, "uptime": 24.0},
			wantPages:  12,
			pagesOK:    true,
			wantRate:   0.5,
			rateOK:     true,
			wantUptime: 24,
			uptimeOK:   true,
		},
		{
			name:       "alternative spellings",
			stats:      Stats{"documents": json.Number("7"), "throughput": "1.5", "runtime_seconds": 3},
			wantPages:  7,
			pagesOK:    true,
			wantRate:   1.5,
			rateOK:     true,
			wantUptime: 3,
			uptimeOK:   true,
		},
		{
			name:      "nil value falls through to next key",
			stats:     Stats{"pages": nil, "pages_crawled": 4},
			wantPages: 4,
			pagesOK:   true,
		},
		{
			name:      "zero is known",
			stats:     Stats{"pages": 0},
			wantPages: 0,
			pagesOK:   true,
		},
		{
			name:  "malformed values are unknown",
			stats: Stats{"pages": "lots", "rate": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, ok := tt.stats.Pages()
			assert.Equal(t, tt.pagesOK, ok)
			assert.Equal(t, tt.wantPages, pages)

			rate, ok := tt.stats.Rate()
			assert.Equal(t, tt.rateOK, ok)
			assert.InDelta(t, tt.wantRate, rate, 1e-9)

			uptime, ok := tt.stats.Uptime()
			assert.Equal(t, tt.uptimeOK, ok)
			assert.InDelta(t, tt.wantUptime, uptime, 1e-9)
		})
	}
}

func TestStats_QueuedAndErrors(t *testing.T) {
	s := Stats{"queue_size": 5, "error_count": 2}

	q, ok := s.Queued()
	assert.True(t, ok)
	assert.Equal(t, int64(5), q)

	e, ok := s.Errors()
	assert.True(t, ok)
	assert.Equal(t, int64(2), e)

	_, ok = Stats{}.Queued()
	assert.False(t, ok)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", 1.5, 1.5, true},
		{"int", 3, 3, true},
		{"int64", int64(4), 4, true},
		{"json number", json.Number("2.25"), 2.25, true},
		{"numeric string", " 8 ", 8, true},
		{"bad string", "x", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStats_CloneNil(t *testing.T) {
	var s Stats
	c := s.Clone()
	assert.NotNil(t, c)
	assert.Empty(t, c)
}
