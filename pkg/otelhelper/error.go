package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records an operation_failed event
// tagged with kind, the caller's classification of err.
func SetError(span trace.Span, err error, kind string, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(ErrorKindKey, kind))
	span.AddEvent("operation_failed", trace.WithAttributes(attrs...))
}
