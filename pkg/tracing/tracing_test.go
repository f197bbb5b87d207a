package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	require.Empty(t, TraceIDFromContext(context.Background()))
}

func TestTraceIDFromContext_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	id := TraceIDFromContext(ctx)
	require.Len(t, id, 32)
	require.Equal(t, span.SpanContext().TraceID().String(), id)
}
