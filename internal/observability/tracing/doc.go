// Package tracing wires OpenTelemetry into the dashboard.
//
// Setup installs the tracer provider and propagators, Middleware opens a
// server span per dashboard request, and GetTracer is used by the backend
// client and the seed probe for their client spans. Trace context travels to
// the crawl backend in the traceparent header.
//
//	shutdown := tracing.Setup(1.0)
//	defer func() { _ = shutdown(context.Background()) }()
//	handler := tracing.Middleware(mux)
package tracing
