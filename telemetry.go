package modkit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/goliatone/go-modkit"

// WithTracer records a span for every Create call using tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *builderConfig) {
		cfg.tracer = tracer
	}
}

func (cfg builderConfig) spanTracer() trace.Tracer {
	if cfg.tracer != nil {
		return cfg.tracer
	}
	if cfg.trace {
		return otel.Tracer(instrumentationName)
	}
	return noop.NewTracerProvider().Tracer(instrumentationName)
}

func startCreateSpan(ctx context.Context, cfg builderConfig, id string, entries int, depth int) (context.Context, trace.Span) {
	return cfg.spanTracer().Start(ctx, "modkit.create", trace.WithAttributes(
		attribute.String("modkit.builder.id", id),
		attribute.String("modkit.builder.name", cfg.name),
		attribute.Int("modkit.entries", entries),
		attribute.Int("modkit.depth", depth),
	))
}

func endCreateSpan(span trace.Span, desc fieldCounter, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if desc != nil {
		span.SetAttributes(
			attribute.Int("modkit.actions", desc.count(FieldActions)),
			attribute.Int("modkit.mutations", desc.count(FieldMutations)),
			attribute.Int("modkit.getters", desc.count(FieldGetters)),
			attribute.Int("modkit.modules", desc.count(FieldModules)),
		)
	}
	span.End()
}

type fieldCounter interface {
	count(Field) int
}

func (d *Descriptor[S]) count(field Field) int {
	if d == nil {
		return 0
	}
	switch field {
	case FieldActions:
		return len(d.Actions)
	case FieldMutations:
		return len(d.Mutations)
	case FieldGetters:
		return len(d.Getters)
	case FieldModules:
		return len(d.Modules)
	default:
		return 0
	}
}
