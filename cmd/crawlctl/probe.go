package main

import (
	"fmt"

	"crawl-dashboard/internal/infra/probe"

	"github.com/spf13/cobra"
)

func newProbeCommand(a *app) *cobra.Command {
	cfg := probe.DefaultConfig()
	var allowPrivate bool

	cmd := &cobra.Command{
		Use:   "probe URL",
		Short: "Detect the source type of a seed URL",
		Long: `Fetch a seed URL and report the source type the backend would detect,
with the title, description and feed details found on the page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.DenyPrivateIPs = !allowPrivate
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid probe settings: %w", err)
			}
			p, err := probe.New(cfg, probe.WithLogger(a.logger)).Probe(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("probe failed: %w", err)
			}
			return a.render(p, probeTable(p))
		},
	}
	cmd.Flags().DurationVar(&cfg.Timeout, "probe-timeout", cfg.Timeout, "probe request timeout")
	cmd.Flags().BoolVar(&allowPrivate, "allow-private", false, "allow URLs resolving to private addresses")
	return cmd
}
