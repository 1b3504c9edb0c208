package tracing

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const TraceparentHeader = "traceparent"

// headerCarrier exposes kafka headers to otel propagators. Header keys
// compare case-insensitively and Set overwrites instead of appending.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if strings.EqualFold(h.Key, key) {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// SetKafkaHeader returns a copy of headers with key set to value.
func SetKafkaHeader(headers []kafka.Header, key, value string) []kafka.Header {
	out := append([]kafka.Header(nil), headers...)
	headerCarrier{&out}.Set(key, value)
	return out
}

// InjectKafkaHeaders returns a copy of headers carrying the trace context of
// ctx. Trace headers already present are replaced.
func InjectKafkaHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	out := append([]kafka.Header(nil), headers...)
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&out})
	return out
}

// InjectTraceparent is InjectKafkaHeaders for a trace context captured
// earlier as a traceparent value, such as one stored with an outbox row.
// An empty traceparent leaves headers as they are.
func InjectTraceparent(headers []kafka.Header, traceparent string) []kafka.Header {
	if traceparent == "" {
		return headers
	}
	return SetKafkaHeader(headers, TraceparentHeader, traceparent)
}

func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{&headers})
}
