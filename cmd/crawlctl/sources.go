package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"crawl-dashboard/internal/domain/entity"
	srcUC "crawl-dashboard/internal/usecase/source"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Long:  `List every source with its runtime status and live stats. --search keeps sources whose name or URL contains the query.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := a.svc.Search(cmd.Context(), search)
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			return a.render(sources, sourcesTable(sources))
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive name or URL filter")
	return cmd
}

func newCreateCommand(a *app) *cobra.Command {
	req := entity.NewCreateRequest("", "")
	var inactive bool
	var runFlags runOptionFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inactive {
				req.Status = entity.SourceInactive
			}
			req.KeywordFilter, req.Options = runFlags.apply(cmd, req.KeywordFilter, req.Options)
			created, err := a.svc.Create(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to create source: %w", err)
			}
			return a.render(created, sourceTable(created))
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "source name (required)")
	f.StringVar(&req.URL, "url", "", "seed URL (required)")
	f.StringVar(&req.SourceType, "type", req.SourceType, "source type: auto, html, rss, xml, pdf or txt")
	f.StringVar(&req.Description, "description", "", "free-text description")
	f.StringVar(&req.Frequency, "frequency", "", "5-field cron schedule")
	f.BoolVar(&inactive, "inactive", false, "create the source disabled")
	runFlags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// importReport is the printable outcome of an import.
type importReport struct {
	Created []entity.Source `json:"created" yaml:"created"`
	Failed  []importFailure `json:"failed" yaml:"failed"`
}

type importFailure struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Error string `json:"error" yaml:"error"`
}

func newImportCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create sources from a YAML or JSON file",
		Long: `Create every source listed in a YAML or JSON document. The document is a
list of sources or a mapping with a "sources" list. Every entry is validated
before anything is sent; use -f - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				fh, err := os.Open(file)
				if err != nil {
					return err
				}
				defer fh.Close()
				r = fh
			}
			reqs, err := srcUC.ParseImport(r)
			if err != nil {
				return err
			}
			res, err := a.svc.Import(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			report := importReport{Created: res.Created, Failed: make([]importFailure, 0, len(res.Failed))}
			for _, f := range res.Failed {
				report.Failed = append(report.Failed, importFailure{Index: f.Index, Name: f.Name, Error: f.Err.Error()})
			}
			if err := a.render(report, importTable(report, len(reqs))); err != nil {
				return err
			}
			if len(res.Created) == 0 {
				return fmt.Errorf("no sources were created")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "import file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func importTable(r importReport, total int) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "imported %d of %d sources\n", len(r.Created), total)
		if len(r.Failed) == 0 {
			return
		}
		t := newTable(w)
		t.AppendHeader(table.Row{"Entry", "Name", "Error"})
		for _, f := range r.Failed {
			t.AppendRow(table.Row{f.Index, f.Name, f.Error})
		}
		t.Render()
	}
}

func newStartCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start ID",
		Short: "Start a crawl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := a.svc.Start(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to start crawler: %w", err)
			}
			out := map[string]string{"source_id": args[0], "run_id": runID}
			if runID == "" {
				return a.message(out, "crawl started for source %s", args[0])
			}
			return a.message(out, "crawl started for source %s (run %s)", args[0], runID)
		},
	}
}

func newStopCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a running crawl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Stop(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to stop crawler: %w", err)
			}
			return a.message(map[string]string{"source_id": args[0]}, "stop requested for source %s", args[0])
		},
	}
}

type savedOptions struct {
	KeywordFilter entity.KeywordFilter `json:"keyword_filter" yaml:"keyword_filter"`
	Options       entity.RunOptions    `json:"options" yaml:"options"`
}

func newOptionsCommand(a *app) *cobra.Command {
	var runFlags runOptionFlags
	cmd := &cobra.Command{
		Use:   "options ID",
		Short: "Change the keyword filter and run options of a source",
		Long: `Change the keyword filter and run options of a source. Only the flags given
are changed; everything else keeps its current value. Options cannot be
changed while the crawl is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			filter, opts := runFlags.apply(cmd, src.KeywordFilter, src.Options.Run())
			if err := a.svc.SaveOptions(cmd.Context(), src.ID, filter, opts); err != nil {
				return fmt.Errorf("failed to save options: %w", err)
			}
			out := savedOptions{KeywordFilter: filter, Options: opts}
			return a.message(out, "options saved for source %s", src.ID)
		},
	}
	runFlags.register(cmd)
	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats ID",
		Short: "Show the live stats of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.svc.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"source_id": args[0], "stats": stats}
			return a.render(out, statsTable(args[0], stats))
		},
	}
}

func newRunsCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent crawl runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > 200 {
				return fmt.Errorf("--limit must be between 1 and 200")
			}
			runs, err := a.svc.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.render(runs, runsTable(runs, time.Now()))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs, 1-200")
	return cmd
}

// runOptionFlags are the keyword filter and run option flags shared by
// create and options.
type runOptionFlags struct {
	filter string
	opts   entity.RunOptions
}

func (f *runOptionFlags) register(cmd *cobra.Command) {
	def := entity.DefaultRunOptions()
	fs := cmd.Flags()
	fs.StringVar(&f.filter, "filter", string(entity.FilterNone), "keyword filter")
	fs.IntVar(&f.opts.MaxHits, "max-hits", def.MaxHits, "maximum pages per run")
	fs.IntVar(&f.opts.MaxDepth, "max-depth", def.MaxDepth, "maximum link depth")
	fs.IntVar(&f.opts.Concurrency, "concurrency", def.Concurrency, "parallel fetches")
	fs.BoolVar(&f.opts.RespectRobots, "respect-robots", def.RespectRobots, "obey robots.txt")
	fs.StringVar(&f.opts.UserAgent, "user-agent", def.UserAgent, "crawler user agent")
	fs.BoolVar(&f.opts.IncludeSubdomains, "include-subdomains", def.IncludeSubdomains, "follow links to subdomains")
	fs.Float64Var(&f.opts.RequestDelay, "request-delay", def.RequestDelay, "seconds between requests")
}

// apply overrides base with the flags set on the command line.
func (f *runOptionFlags) apply(cmd *cobra.Command, filter entity.KeywordFilter, base entity.RunOptions) (entity.KeywordFilter, entity.RunOptions) {
	changed := cmd.Flags().Changed
	if changed("filter") {
		filter = entity.KeywordFilter(f.filter)
	}
	if changed("max-hits") {
		base.MaxHits = f.opts.MaxHits
	}
	if changed("max-depth") {
		base.MaxDepth = f.opts.MaxDepth
	}
	if changed("concurrency") {
		base.Concurrency = f.opts.Concurrency
	}
	if changed("respect-robots") {
		base.RespectRobots = f.opts.RespectRobots
	}
	if changed("user-agent") {
		base.UserAgent = f.opts.UserAgent
	}
	if changed("include-subdomains") {
		base.IncludeSubdomains = f.opts.IncludeSubdomains
	}
	if changed("request-delay") {
		base.RequestDelay = f.opts.RequestDelay
	}
	return filter, base
}
