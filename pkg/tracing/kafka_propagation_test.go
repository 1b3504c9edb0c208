package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func startSpan(t *testing.T) (context.Context, trace.Span) {
	t.Helper()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	t.Cleanup(func() { span.End() })
	return ctx, span
}

func traceHeaders(headers []kafka.Header) []string {
	var values []string
	for _, h := range headers {
		if h.Key == TraceparentHeader {
			values = append(values, string(h.Value))
		}
	}
	return values
}

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	ctx, span := startSpan(t)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("item_updated")}})
	require.Len(t, headers, 2)
	assert.NotEmpty(t, Traceparent(ctx))

	out := ExtractKafkaHeaders(context.Background(), headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(out).TraceID())
}

func TestInjectKafkaHeaders_ReplacesStaleTraceparent(t *testing.T) {
	ctx, _ := startSpan(t)
	stale := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	in := []kafka.Header{{Key: TraceparentHeader, Value: []byte(stale)}}

	headers := InjectKafkaHeaders(ctx, in)

	assert.Equal(t, []string{Traceparent(ctx)}, traceHeaders(headers))
	assert.Equal(t, stale, string(in[0].Value), "input slice is not modified")
}

func TestInjectTraceparent(t *testing.T) {
	tp := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
	headers := []kafka.Header{
		{Key: "source", Value: []byte("order-service")},
		{Key: "Traceparent", Value: []byte("00-stale")},
	}

	out := InjectTraceparent(headers, tp)
	require.Len(t, out, 2)
	assert.Equal(t, tp, string(out[1].Value))

	assert.Equal(t, headers, InjectTraceparent(headers, ""))
}
