package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"crawl-dashboard/internal/domain/entity"
)

// Placeholder is shown for any stat the backend did not report.
const Placeholder = "—"

// FormatCount renders a counter, or the placeholder when unknown.
func FormatCount(n int64, ok bool) string {
	if !ok {
		return Placeholder
	}
	return strconv.FormatInt(n, 10)
}

// FormatRate renders pages per second. Rates too small to show per second
// are shown per minute.
func FormatRate(rate float64, ok bool) string {
	switch {
	case !ok:
		return Placeholder
	case rate <= 0:
		return "0/s"
	case rate < 0.01:
		return fmt.Sprintf("%.2f/min", rate*60)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// FormatUptime renders seconds rounded to a whole number.
func FormatUptime(seconds float64, ok bool) string {
	if !ok {
		return Placeholder
	}
	return strconv.FormatInt(int64(math.Round(seconds)), 10) + "s"
}

// StatsView is the display form of entity.Stats.
type StatsView struct {
	Pages  string `json:"pages"`
	Queued string `json:"queued"`
	Errors string `json:"errors"`
	Rate   string `json:"rate"`
	Uptime string `json:"uptime"`
}

// FormatStats renders every stat of s.
func FormatStats(s entity.Stats) StatsView {
	return StatsView{
		Pages:  FormatCount(s.Pages()),
		Queued: FormatCount(s.Queued()),
		Errors: FormatCount(s.Errors()),
		Rate:   FormatRate(s.Rate()),
		Uptime: FormatUptime(s.Uptime()),
	}
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
