package graph

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(registry)

	pm.IncrementRelocations()
	pm.SetBoundaryValues(3)
	pm.RecordDispatch("steady", 12*time.Millisecond, "success")
	pm.IncrementErrors(CodeInvalidBlock)
	pm.IncrementErrors("")

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.relocations))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.boundaryValues))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.dispatches.WithLabelValues("steady", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.errors.WithLabelValues(CodeInvalidBlock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.errors.WithLabelValues("unknown")))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "itergraph_relocations_total")
	assert.Contains(t, names, "itergraph_dispatch_latency_ms")
}

func TestPrometheusMetrics_DisableAndReset(t *testing.T) {
	pm := NewPrometheusMetrics(prometheus.NewRegistry())

	pm.Disable()
	pm.IncrementRelocations()
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.relocations))

	pm.Enable()
	pm.SetBoundaryValues(2)
	pm.Reset()
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.boundaryValues))
}

func TestPrometheusMetrics_Nil(t *testing.T) {
	var pm *PrometheusMetrics
	assert.NotPanics(t, func() {
		pm.IncrementRelocations()
		pm.SetBoundaryValues(1)
		pm.RecordDispatch("setup", time.Millisecond, "success")
		pm.IncrementErrors(CodeFrozen)
	})
}
