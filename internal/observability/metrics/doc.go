// Package metrics defines dashboard-wide Prometheus metrics: operator
// commands, live-update clients and seed probes.
//
// HTTP server metrics live with the middleware in internal/handler/http,
// backend client metrics in internal/infra/crawlapi and refresh metrics in
// internal/usecase/poll.
//
//	err := svc.Start(ctx, id)
//	metrics.RecordCommand("start", err)
package metrics
