// Package telemetry provides Prometheus metrics and OpenTelemetry spans for
// the lens client.
//
// Metrics are grouped in a *Metrics value created by NewMetrics. Every
// recording method is safe to call on a nil *Metrics, so packages accept an
// optional collector without nil checks at call sites.
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	c := conn.Open(ctx, &conn.Config{URL: u, Metrics: m}, handler)
//
// Tracing uses the global OpenTelemetry tracer provider. Configure it in
// main() before opening the connection:
//
//	otel.SetTracerProvider(tp)
package telemetry
