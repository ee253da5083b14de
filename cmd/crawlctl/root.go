package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"crawl-dashboard/internal/infra/crawlapi"
	"crawl-dashboard/internal/observability/logging"
	"crawl-dashboard/internal/pkg/config"
	srcUC "crawl-dashboard/internal/usecase/source"

	"github.com/spf13/cobra"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// app carries the global flags and the clients built from them.
type app struct {
	backendURL string
	output     string
	timeout    time.Duration
	timezone   string
	logLevel   string

	out    io.Writer
	logger *slog.Logger
	client *crawlapi.Client
	svc    *srcUC.Service
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "crawlctl",
		Short:         "Manage crawl sources",
		Long:          `crawlctl lists, creates, starts, stops and configures crawl sources on the crawl backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.backendURL, "backend", config.LoadEnvString("BACKEND_URL", crawlapi.DefaultBaseURL), "crawl backend API base URL")
	flags.StringVarP(&a.output, "output", "o", outputTable, "output format: table, json or yaml")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "per-request timeout, 0 for none")
	flags.StringVar(&a.timezone, "timezone", config.LoadEnvString("BACKEND_TIMEZONE", ""), "zone of backend timestamps without offset")
	flags.StringVar(&a.logLevel, "log-level", config.LoadEnvString("LOG_LEVEL", "warn"), "log level: debug, info, warn or error")

	root.AddCommand(
		newListCommand(a),
		newCreateCommand(a),
		newImportCommand(a),
		newStartCommand(a),
		newStopCommand(a),
		newOptionsCommand(a),
		newStatsCommand(a),
		newRunsCommand(a),
		newProbeCommand(a),
		newWatchCommand(a),
	)
	return root
}

// setup validates the global flags and builds the backend client.
func (a *app) setup(errOut io.Writer) error {
	switch a.output {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	if err := config.ValidateLogLevel(a.logLevel); err != nil {
		return err
	}

	cfg := crawlapi.DefaultConfig()
	cfg.BaseURL = a.backendURL
	cfg.Timeout = a.timeout
	cfg.Timezone = a.timezone
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid backend settings: %w", err)
	}

	a.logger = logging.New(logging.Options{Level: a.logLevel, Format: logging.FormatText, Output: errOut})
	a.client = crawlapi.New(append(cfg.Options(), crawlapi.WithLogger(a.logger))...)
	a.svc = &srcUC.Service{Backend: a.client, Logger: a.logger}
	return nil
}
