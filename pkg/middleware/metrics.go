package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/cells/pkg/cell"
)

// MetricsConfig configures the Prometheus metrics extension.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "cells").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for run duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics extension.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "cells",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is an extension that records propagation activity in Prometheus.
//
// Owner labels are used as label values, so keep labels to a bounded set
// (a class name, not a per-instance identifier).
type Metrics struct {
	cell.BaseExtension

	writesTotal        *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	prunedTotal        *prometheus.CounterVec
	panicsTotal        *prometheus.CounterVec
}

// NewMetrics creates the metrics extension and registers its collectors.
// Registering twice on the same registry panics, as with promauto.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	rt := cell.NewRuntime(cell.WithExtensions(
//	    middleware.NewMetrics(middleware.WithRegistry(reg)),
//	))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		BaseExtension: cell.NewBaseExtension("metrics"),

		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of cell writes by result",
			ConstLabels: config.ConstLabels,
		}, []string{"owner", "result"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of observer callbacks invoked",
			ConstLabels: config.ConstLabels,
		}, []string{"owner"}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "runs_total",
			Help:        "Total number of computation runs",
			ConstLabels: config.ConstLabels,
		}, []string{"owner", "kind"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "run_duration_seconds",
			Help:        "Computation run duration in seconds, including nested cascades",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"owner"}),

		prunedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pruned_total",
			Help:        "Total number of expired registrations dropped",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		panicsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "panics_total",
			Help:        "Total number of computation runs aborted by a panic",
			ConstLabels: config.ConstLabels,
		}, []string{"owner"}),
	}
}

// Order runs metrics inside tracing so durations exclude span bookkeeping.
func (m *Metrics) Order() int { return 20 }

// OnWrite implements cell.Extension.
func (m *Metrics) OnWrite(w *cell.Write) {
	result := "changed"
	if !w.Changed {
		result = "suppressed"
	}
	m.writesTotal.WithLabelValues(ownerLabel(w.Owner), result).Inc()
}

// OnNotify implements cell.Extension.
func (m *Metrics) OnNotify(n *cell.Notify) {
	m.notificationsTotal.WithLabelValues(ownerLabel(n.Owner)).Inc()
}

// WrapRun implements cell.Extension.
func (m *Metrics) WrapRun(ctx context.Context, r *cell.Run, next func(ctx context.Context)) {
	owner := ownerLabel(r.Owner)
	kind := "recompute"
	if r.Initial {
		kind = "initial"
	}
	m.runsTotal.WithLabelValues(owner, kind).Inc()

	start := time.Now()
	defer func() {
		m.runDuration.WithLabelValues(owner).Observe(time.Since(start).Seconds())
	}()
	next(ctx)
}

// OnPrune implements cell.Extension.
func (m *Metrics) OnPrune(p *cell.Prune) {
	if p.Observers > 0 {
		m.prunedTotal.WithLabelValues("observer").Add(float64(p.Observers))
	}
	if p.Edges > 0 {
		m.prunedTotal.WithLabelValues("edge").Add(float64(p.Edges))
	}
}

// OnPanic implements cell.Extension.
func (m *Metrics) OnPanic(r *cell.Run, recovered any) {
	m.panicsTotal.WithLabelValues(ownerLabel(r.Owner)).Inc()
}

func ownerLabel(o cell.Owner) string {
	if o == nil {
		return "unknown"
	}
	return o.Label()
}
