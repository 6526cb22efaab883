// Package metric provides Prometheus metrics for the service registry.
//
// MetricsRegistry owns a private prometheus.Registry (never the global
// default) holding three groups of collectors:
//
//  1. Core registry metrics (Metrics type): registered and healthy service
//     gauges, registration/unregistration/heartbeat counters, HTTP request
//     durations, active probe results and dropped events.
//  2. Go runtime and process collectors.
//  3. Component metrics registered through MetricsRegistrar, for example the
//     event publisher's worker pool.
//
// Basic usage:
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordRegistration(store.Count())
//	mux.Handle("GET /metrics", registry.Handler())
//
// All metric names use the "medreg" namespace.
//
// Registering the same component/metric pair twice returns an invalid-class
// error from the errors package rather than panicking, so components can be
// rebuilt in tests against a shared registry.
package metric
