package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wyfcoding/geodist/config"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "geodist.distance")
	AddTag(ctx, "geodist.method", "vincenty")
	AddTag(ctx, "geodist.rows", 3)
	AddTag(ctx, "geodist.converged", false)
	AddTag(ctx, "geodist.threshold", 12.5)
	AddTag(ctx, "geodist.other", []int{1})
	SetError(ctx, errors.New("boom"))
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "geodist.distance", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Contains(t, got.Attributes(), attribute.String("geodist.method", "vincenty"))
	assert.Contains(t, got.Attributes(), attribute.Int("geodist.rows", 3))
	assert.Contains(t, got.Attributes(), attribute.Bool("geodist.converged", false))
	assert.Contains(t, got.Attributes(), attribute.Float64("geodist.threshold", 12.5))
	assert.Contains(t, got.Attributes(), attribute.String("geodist.other", "[1]"))
}

func TestHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	AddTag(ctx, "k", "v")
	SetError(ctx, nil)
	assert.Empty(t, GetTraceID(ctx))
}
