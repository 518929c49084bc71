// Package middleware provides production-grade extensions for cell runtimes.
//
// This package includes:
//   - Prometheus metrics for writes, notifications and recomputations
//   - OpenTelemetry tracing of computation runs
//   - Dependency graph dumps when a formula panics
//
// Extensions are registered on a runtime and apply to every owner created
// from it:
//
//	rt := cell.NewRuntime(
//	    cell.WithExtensions(
//	        middleware.NewTracing(),
//	        middleware.NewMetrics(middleware.WithNamespace("myapp")),
//	    ),
//	)
//	obj := rt.NewObject("motor")
//
// # Prometheus Metrics
//
// The metrics extension collects:
//   - cells_writes_total: Writes by owner label and result (changed, suppressed)
//   - cells_notifications_total: Observer callbacks by owner label
//   - cells_runs_total: Computation runs by owner label and kind (initial, recompute)
//   - cells_run_duration_seconds: Computation run duration histogram
//   - cells_pruned_total: Expired registrations dropped, by kind (observer, edge)
//   - cells_panics_total: Runs aborted by a panic
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry Tracing
//
// The tracing extension starts one span per computation run. Runs triggered
// by a write inside another run are nested under it, so a trace shows the
// whole cascade. Attach a cascade to an incoming request with
// cell.WithContext:
//
//	cell.WithContext(r.Context(), func() {
//	    obj.Set("speed", 10)
//	})
package middleware
