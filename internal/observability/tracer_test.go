package observability_test

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/challengehub/web/internal/observability"
)

func testProviderConfig() observability.ProviderConfig {
	return observability.ProviderConfig{
		ServiceName:    "test-service",
		ServiceVersion: "0.0.1",
		Environment:    "test",
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	tp, err := observability.InitTracer(context.Background(), testProviderConfig())
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProvider_ShutdownNilProvider(t *testing.T) {
	tp := &observability.TracerProvider{}
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, observability.TraceIDFromContext(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	traceID := observability.TraceIDFromContext(ctx)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), traceID)
}

func TestInjectTraceContext(t *testing.T) {
	tp, err := observability.InitTracer(context.Background(), testProviderConfig())
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	sdk := sdktrace.NewTracerProvider()
	defer func() { _ = sdk.Shutdown(context.Background()) }()
	ctx, span := sdk.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	header := http.Header{}
	observability.InjectTraceContext(ctx, propagation.HeaderCarrier(header))

	assert.Contains(t, header.Get("Traceparent"), span.SpanContext().TraceID().String())
}
