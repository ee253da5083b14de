// Command crawlctl manages crawl sources from the terminal through the same
// backend API the dashboard uses.
//
// Usage:
//
//	crawlctl list --search news
//	crawlctl create --name "Example" --url https://example.com --max-hits 200
//	crawlctl import -f sources.yaml
//	crawlctl start 42
//	crawlctl options 42 --filter technology --max-depth 3
//	crawlctl watch
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
