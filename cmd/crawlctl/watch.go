package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"crawl-dashboard/internal/usecase/poll"
	srcUC "crawl-dashboard/internal/usecase/source"

	"github.com/spf13/cobra"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

func newWatchCommand(a *app) *cobra.Command {
	cfg := poll.DefaultConfig()
	var search string
	var count int
	var redraw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the backend and redraw the source table on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			controller := poll.NewController(a.client, cfg, poll.WithLogger(a.logger))
			updates, unsubscribe := controller.Subscribe()
			defer unsubscribe()

			done := make(chan error, 1)
			go func() { done <- controller.Run(ctx) }()

			seen := 0
			for {
				select {
				case <-ctx.Done():
					<-done
					return nil
				case snap := <-updates:
					if err := a.drawSnapshot(snap, search, redraw); err != nil {
						return err
					}
					seen++
					if count > 0 && seen >= count {
						cancel()
						<-done
						return nil
					}
				}
			}
		},
	}
	f := cmd.Flags()
	f.DurationVar(&cfg.Interval, "interval", cfg.Interval, "poll tick")
	f.DurationVar(&cfg.IdleInterval, "idle-interval", cfg.IdleInterval, "list refresh period while nothing runs")
	f.StringVarP(&search, "search", "s", "", "case-insensitive name or URL filter")
	f.IntVar(&count, "count", 0, "exit after this many updates, 0 for no limit")
	f.BoolVar(&redraw, "clear", true, "clear the screen before each redraw in table mode")
	return cmd
}

func (a *app) drawSnapshot(snap poll.Snapshot, search string, redraw bool) error {
	sources := srcUC.Filter(snap.Sources, search)
	return a.render(sources, func(w io.Writer) {
		if redraw {
			fmt.Fprint(w, clearScreen)
		}
		fmt.Fprintf(w, "version %d, updated %s\n", snap.Version, snap.UpdatedAt.Format(time.TimeOnly))
		sourcesTable(sources)(w)
	})
}
