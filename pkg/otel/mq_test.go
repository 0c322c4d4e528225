package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMQHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	prop := propagation.TraceContext{}
	headers := map[string]interface{}{}
	prop.Inject(ctx, NewMQHeaderCarrier(headers))

	if headers["traceparent"] == nil {
		t.Fatal("expected traceparent header to be injected")
	}

	extracted := prop.Extract(context.Background(), NewMQHeaderCarrier(headers))
	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace id mismatch: got %s want %s", got.TraceID(), span.SpanContext().TraceID())
	}
}

func TestMQHeaderCarrier_NilHeaders(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	if c.Get("traceparent") != "" {
		t.Error("expected empty value from nil headers")
	}
	c.Set("k", "v")
	if c.Get("k") != "v" {
		t.Error("expected Set to be readable")
	}
}
