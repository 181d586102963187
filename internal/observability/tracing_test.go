package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := useRecorder(t)

	_, span := StartSpan(context.Background(), "media.delete", attribute.String("public_id", "image/a.png"))
	EndSpan(span, errors.New("bucket gone"))
	_, ok := StartSpan(context.Background(), "maintenance.sweep_orphans")
	EndSpan(ok, nil)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "media.delete", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("public_id", "image/a.png"))
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	prev := Tracer
	t.Cleanup(func() { Tracer = prev })

	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown exporter")
}

func TestSamplerFor(t *testing.T) {
	assert.True(t, strings.HasPrefix(samplerFor(1).Description(), "ParentBased{root:AlwaysOnSampler,"))
	assert.True(t, strings.HasPrefix(samplerFor(0).Description(), "ParentBased{root:AlwaysOffSampler,"))
	assert.True(t, strings.HasPrefix(samplerFor(0.25).Description(), "ParentBased{root:TraceIDRatioBased{0.25},"))
}
