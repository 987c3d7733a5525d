package reactive

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus instruments of a graph.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ripple").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for async computation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
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
		Namespace: "ripple",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics counts what a reactive graph does. Nodes find it through the
// context of the scope they are created in (see ContextWithMetrics).
// A nil *Metrics records nothing.
type Metrics struct {
	signalWrites  *prometheus.CounterVec
	recomputes    *prometheus.CounterVec
	asyncRuns     *prometheus.CounterVec
	asyncDuration *prometheus.HistogramVec
	reactionRuns  *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewMetrics registers the graph instruments.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := reactive.NewMetrics(reactive.WithRegistry(reg))
//	sc := scope.New(reactive.ContextWithMetrics(ctx, m))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		signalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Signal writes that changed the stored value",
			ConstLabels: config.ConstLabels,
		}, []string{"node"}),

		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derived_recomputes_total",
			Help:        "Derived recomputations by result (changed, unchanged, error)",
			ConstLabels: config.ConstLabels,
		}, []string{"node", "result"}),

		asyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_computations_total",
			Help:        "Async computations by outcome (resolved, failed, superseded)",
			ConstLabels: config.ConstLabels,
		}, []string{"node", "outcome"}),

		asyncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_computation_duration_seconds",
			Help:        "Async computation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"node"}),

		reactionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reaction_runs_total",
			Help:        "Reaction effect runs by result (ok, error)",
			ConstLabels: config.ConstLabels,
		}, []string{"node", "result"}),

		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscriptions",
			Help:        "Live subscriptions across all readables",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) signalWrite(node string) {
	if m == nil {
		return
	}
	m.signalWrites.WithLabelValues(node).Inc()
}

func (m *Metrics) recompute(node, result string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(node, result).Inc()
}

func (m *Metrics) asyncRun(node, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.asyncRuns.WithLabelValues(node, outcome).Inc()
	m.asyncDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (m *Metrics) reactionRun(node, result string) {
	if m == nil {
		return
	}
	m.reactionRuns.WithLabelValues(node, result).Inc()
}

func (m *Metrics) subscribed(delta float64) {
	if m == nil {
		return
	}
	m.subscriptions.Add(delta)
}

type metricsKey struct{}

// ContextWithMetrics returns a context carrying m. Scopes created from it
// (and their children) report to m.
func ContextWithMetrics(ctx context.Context, m *Metrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, m)
}

func metricsFrom(ctx context.Context) *Metrics {
	m, _ := ctx.Value(metricsKey{}).(*Metrics)
	return m
}
