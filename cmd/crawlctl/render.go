package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/handler/http/dashboard"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// render writes v as JSON or YAML, or calls table for the table format.
func (a *app) render(v any, tbl func(io.Writer)) error {
	switch a.output {
	case outputJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tbl(a.out)
		return nil
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func sourcesTable(sources []entity.Source) func(io.Writer) {
	return func(w io.Writer) {
		t := newTable(w)
		t.AppendHeader(table.Row{"ID", "Name", "URL", "Filter", "Status", "Pages", "Rate", "Uptime"})
		for _, s := range sources {
			row := dashboard.NewRow(s)
			t.AppendRow(table.Row{row.ID, row.Name, row.URL, row.FilterLabel, row.Status, row.Stats.Pages, row.Stats.Rate, row.Stats.Uptime})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d sources", len(sources))})
		t.Render()
	}
}

func sourceTable(s entity.Source) func(io.Writer) {
	return func(w io.Writer) {
		row := dashboard.NewRow(s)
		t := newTable(w)
		t.AppendRows([]table.Row{
			{"ID", row.ID},
			{"Name", row.Name},
			{"URL", row.URL},
			{"Type", row.SourceType},
			{"Filter", row.FilterLabel},
			{"Status", row.Status},
			{"Max hits", row.Options.MaxHits},
			{"Max depth", row.Options.MaxDepth},
			{"Concurrency", row.Options.Concurrency},
			{"Respect robots", row.Options.RespectRobots},
			{"User agent", row.Options.UserAgent},
			{"Include subdomains", row.Options.IncludeSubdomains},
			{"Request delay", row.Options.RequestDelay},
		})
		t.Render()
	}
}

func statsTable(id string, stats entity.Stats) func(io.Writer) {
	return func(w io.Writer) {
		v := dashboard.FormatStats(stats)
		t := newTable(w)
		t.AppendHeader(table.Row{"Source", "Pages", "Queued", "Errors", "Rate", "Uptime"})
		t.AppendRow(table.Row{id, v.Pages, v.Queued, v.Errors, v.Rate, v.Uptime})
		t.Render()
	}
}

func runsTable(runs []entity.Run, now time.Time) func(io.Writer) {
	return func(w io.Writer) {
		t := newTable(w)
		t.AppendHeader(table.Row{"Run", "Source", "Status", "Started", "Duration", "Crawled"})
		for _, r := range runs {
			started := dashboard.Placeholder
			if r.StartedAt != nil {
				started = r.StartedAt.Format(time.DateTime)
			}
			d, ok := r.Duration(now)
			t.AppendRow(table.Row{r.ID, r.SourceID, r.Status, started, dashboard.FormatUptime(d.Seconds(), ok), r.CrawledCount})
		}
		t.Render()
	}
}

func probeTable(p entity.Probe) func(io.Writer) {
	return func(w io.Writer) {
		t := newTable(w)
		t.AppendRows([]table.Row{
			{"URL", p.URL},
			{"Final URL", p.FinalURL},
			{"Content type", p.ContentType},
			{"Detected type", p.DetectedType},
			{"Title", p.Title},
			{"Description", p.Description},
			{"Feed URL", p.FeedURL},
			{"Items", p.ItemCount},
		})
		t.Render()
	}
}

// message prints a one-line confirmation in table mode, or v otherwise.
func (a *app) message(v any, format string, args ...any) error {
	return a.render(v, func(w io.Writer) {
		fmt.Fprintf(w, format+"\n", args...)
	})
}
