package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "engine.complete", attribute.String(TaskIDKey, "task-1"))
	SetError(span, errors.New("boom"), attribute.String(TaskIDKey, "task-1"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "engine.complete", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String(TaskIDKey, "task-1"))
}

func TestNoopTracer(t *testing.T) {
	_, span := StartSpan(context.Background(), NoopTracer(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}
