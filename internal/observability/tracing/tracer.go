package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is shared by the dashboard server, the backend client and the probe.
var tracer = otel.Tracer("crawl-dashboard")

// GetTracer returns the global tracer for creating spans.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "crawlapi.fetch_sources")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
