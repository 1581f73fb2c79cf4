package emit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*OTelEmitter, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelEmitter(tp.Tracer("test")), exporter
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{}, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter_Emit(t *testing.T) {
	e, exporter := newRecorder(t)

	e.Emit(Event{
		RunID:  "run-001",
		Step:   2,
		NodeID: "output",
		Msg:    "relocation_completed",
		Meta: map[string]interface{}{
			"boundary_values": 3,
			"block":           []string{"g", "h"},
			"elapsed":         1500 * time.Millisecond,
		},
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "relocation_completed", span.Name)

	attrs := attributeMap(span.Attributes)
	assert.Equal(t, "run-001", attrs["itergraph.run_id"])
	assert.Equal(t, int64(2), attrs["itergraph.step"])
	assert.Equal(t, "output", attrs["itergraph.node_id"])
	assert.Equal(t, int64(3), attrs["itergraph.boundary_values"])
	assert.Equal(t, []string{"g", "h"}, attrs["itergraph.block"])
	assert.Equal(t, int64(1500), attrs["itergraph.elapsed"])
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestOTelEmitter_ErrorStatus(t *testing.T) {
	e, exporter := newRecorder(t)

	e.Emit(Event{RunID: "run", Step: 3, NodeID: "steady", Msg: "dispatch_failed",
		Meta: map[string]interface{}{"error": "division by zero"}})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "division by zero", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestOTelEmitter_EmitBatch(t *testing.T) {
	e, exporter := newRecorder(t)

	events := []Event{
		{RunID: "run", Step: 1, Msg: "dispatch_setup"},
		{RunID: "run", Step: 2, Msg: "dispatch_cleanup"},
	}
	require.NoError(t, e.EmitBatch(context.Background(), events))
	require.NoError(t, e.EmitBatch(context.Background(), nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "dispatch_setup", spans[0].Name)
	assert.Equal(t, "dispatch_cleanup", spans[1].Name)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.EmitBatch(ctx, events), context.Canceled)
}

func TestOTelEmitter_Flush(t *testing.T) {
	e, _ := newRecorder(t)
	assert.NoError(t, e.Flush(context.Background()))
}
