package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/logger"
	"github.com/Strob0t/ReviewForge/internal/port/generation"
)

const tracerName = "reviewforge"

// StartRunSpan starts a span for a review run.
func StartRunSpan(ctx context.Context, runID, document string, maxIterations int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "review.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("document.name", document),
			attribute.Int("run.max_iterations", maxIterations),
		),
	)
}

// StartGenerationSpan starts a span for one role call.
func StartGenerationSpan(ctx context.Context, role revision.Role) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("generation.role", string(role))}
	if id := logger.RunID(ctx); id != "" {
		attrs = append(attrs, attribute.String("run.id", id))
	}
	return otel.Tracer(tracerName).Start(ctx, "generation."+string(role), trace.WithAttributes(attrs...))
}

// InstrumentRole returns a wrapper for service.Roles.Wrap that traces and
// times every generation call. A nil m records spans only.
func InstrumentRole(m *Metrics) func(revision.Role, generation.Generator) generation.Generator {
	return func(role revision.Role, g generation.Generator) generation.Generator {
		roleAttr := metric.WithAttributes(attribute.String("role", string(role)))
		return generation.GeneratorFunc(func(ctx context.Context, instructions, input string) (string, error) {
			ctx, span := StartGenerationSpan(ctx, role)
			defer span.End()

			start := time.Now()
			out, err := g.Generate(ctx, instructions, input)
			if m != nil {
				m.GenerationCalls.Add(ctx, 1, roleAttr)
				m.GenerationDuration.Record(ctx, time.Since(start).Seconds(), roleAttr)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				if m != nil {
					m.GenerationFailures.Add(ctx, 1, roleAttr)
				}
				return "", err
			}
			span.SetAttributes(attribute.Int("generation.output_chars", len([]rune(out))))
			return out, nil
		})
	}
}
