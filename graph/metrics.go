package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects relocation and dispatch metrics.
//
// Metrics exposed (all namespaced with "itergraph_"):
//
//  1. relocations_total (counter): blocks moved to the next iteration.
//  2. boundary_values (gauge): values carried between consecutive iterations.
//  3. dispatch_total (counter): iterations dispatched. Labels: graph, status.
//  4. dispatch_latency_ms (histogram): execution time of one iteration.
//     Labels: graph.
//  5. engine_errors_total (counter): errors returned by the engine and the
//     dispatcher. Labels: code.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	mod, err := graph.NewModule(g, fx.NewInterpreter(fx.Builtins()), graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	relocations    prometheus.Counter
	boundaryValues prometheus.Gauge

	dispatches      *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all metrics with registry.
// A nil registry selects prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.relocations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "itergraph",
		Name:      "relocations_total",
		Help:      "Blocks moved into the next iteration",
	})

	pm.boundaryValues = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "itergraph",
		Name:      "boundary_values",
		Help:      "Values carried from one iteration into the next",
	})

	pm.dispatches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "itergraph",
		Name:      "dispatch_total",
		Help:      "Iterations dispatched, by graph and outcome",
	}, []string{"graph", "status"}) // status: success, error

	pm.dispatchLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "itergraph",
		Name:      "dispatch_latency_ms",
		Help:      "Execution time of one iteration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"graph"})

	pm.errors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "itergraph",
		Name:      "engine_errors_total",
		Help:      "Errors returned by the engine and dispatcher, by code",
	}, []string{"code"})

	return pm
}

func (pm *PrometheusMetrics) active() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// IncrementRelocations counts one completed relocation.
func (pm *PrometheusMetrics) IncrementRelocations() {
	if !pm.active() {
		return
	}
	pm.relocations.Inc()
}

// SetBoundaryValues records the number of values carried between iterations.
func (pm *PrometheusMetrics) SetBoundaryValues(n int) {
	if !pm.active() {
		return
	}
	pm.boundaryValues.Set(float64(n))
}

// RecordDispatch counts one dispatched iteration and observes its latency.
func (pm *PrometheusMetrics) RecordDispatch(graph string, latency time.Duration, status string) {
	if !pm.active() {
		return
	}
	pm.dispatches.WithLabelValues(graph, status).Inc()
	pm.dispatchLatency.WithLabelValues(graph).Observe(float64(latency.Milliseconds()))
}

// IncrementErrors counts one error by code. Errors without a code are
// counted as "unknown".
func (pm *PrometheusMetrics) IncrementErrors(code string) {
	if !pm.active() {
		return
	}
	if code == "" {
		code = "unknown"
	}
	pm.errors.WithLabelValues(code).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset clears the gauge. Counters and histograms are cumulative and keep
// their values.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.boundaryValues.Set(0)
}
