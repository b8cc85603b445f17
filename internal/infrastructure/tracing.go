package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDFromContext returns the active span's trace id, or "".
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// AddSpanEvent records a named event on the active span.
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
	}
}

// RecordError marks the active span failed.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(toAttributes(attributes)...)
	}
}

// toAttributes keeps the common scalar kinds and formats anything else with %v.
func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		var kv attribute.KeyValue
		switch val := v.(type) {
		case string:
			kv = attribute.String(k, val)
		case bool:
			kv = attribute.Bool(k, val)
		case int:
			kv = attribute.Int(k, val)
		case int64:
			kv = attribute.Int64(k, val)
		case float64:
			kv = attribute.Float64(k, val)
		default:
			kv = attribute.String(k, fmt.Sprint(val))
		}
		attrs = append(attrs, kv)
	}
	return attrs
}
