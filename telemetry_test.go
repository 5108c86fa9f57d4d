package modkit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder, provider
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestCreateRecordsSpans(t *testing.T) {
	recorder, provider := newRecorder(t)
	tracer := provider.Tracer("test")

	child := New[any, any](WithTracer(tracer), WithName("child")).
		Mutation("set", func(any, any, any) {})
	parent := New[any, any](WithTracer(tracer), WithName("parent")).
		Module("child", child).
		Getter("a", func(any, map[string]any, any, map[string]any, any) any { return nil })

	if _, err := parent.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	// The child ends first and is parented to the outer span.
	inner, outer := spans[0], spans[1]
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Fatalf("expected nested span to be a child of the parent create")
	}

	outerAttrs := spanAttrs(outer)
	if outerAttrs["modkit.builder.name"].AsString() != "parent" {
		t.Fatalf("unexpected outer attributes %v", outerAttrs)
	}
	if outerAttrs["modkit.getters"].AsInt64() != 1 || outerAttrs["modkit.modules"].AsInt64() != 1 {
		t.Fatalf("unexpected outer counts %v", outerAttrs)
	}
	innerAttrs := spanAttrs(inner)
	if innerAttrs["modkit.depth"].AsInt64() != 1 || innerAttrs["modkit.mutations"].AsInt64() != 1 {
		t.Fatalf("unexpected inner attributes %v", innerAttrs)
	}
}

func TestCreateSpanRecordsFailure(t *testing.T) {
	recorder, provider := newRecorder(t)
	b := New[any, any](WithTracer(provider.Tracer("test")))
	b.Mixin(Partial[any, any]{Modules: map[string]Module{"self": b}})

	if _, err := b.Create(); err == nil {
		t.Fatalf("expected create to fail")
	}
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatalf("expected recorded error event")
	}
}

func TestNoTracerUsesNoop(t *testing.T) {
	cfg := builderConfig{}
	_, span := startCreateSpan(context.Background(), cfg, "id", 0, 0)
	if span.SpanContext().IsValid() {
		t.Fatalf("expected noop span")
	}
	endCreateSpan(span, (*Descriptor[any])(nil), nil)
}
