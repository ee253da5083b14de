// Package observability groups the dashboard's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog construction and request-scoped loggers
//   - metrics: dashboard Prometheus metrics
//   - tracing: OpenTelemetry provider setup and HTTP middleware
package observability
