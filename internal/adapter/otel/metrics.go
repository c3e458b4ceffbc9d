package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

const meterName = "reviewforge"

// Metrics holds all ReviewForge metric instruments.
type Metrics struct {
	RunsStarted        metric.Int64Counter
	RunsCompleted      metric.Int64Counter
	RunsFailed         metric.Int64Counter
	RunIterations      metric.Int64Histogram
	Warnings           metric.Int64Counter
	GenerationCalls    metric.Int64Counter
	GenerationFailures metric.Int64Counter
	GenerationDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on meter. Pass
// otel.Meter(MeterName()) to use the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("reviewforge.runs.started",
		metric.WithDescription("Number of review runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("reviewforge.runs.completed",
		metric.WithDescription("Number of review runs that produced a result, by status"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("reviewforge.runs.failed",
		metric.WithDescription("Number of review runs that ended without a result"))
	if err != nil {
		return nil, err
	}

	m.RunIterations, err = meter.Int64Histogram("reviewforge.run.iterations",
		metric.WithDescription("Iterations consumed per completed run"))
	if err != nil {
		return nil, err
	}

	m.Warnings, err = meter.Int64Counter("reviewforge.runs.warnings",
		metric.WithDescription("Number of degraded-role warnings"))
	if err != nil {
		return nil, err
	}

	m.GenerationCalls, err = meter.Int64Counter("reviewforge.generation.calls",
		metric.WithDescription("Number of content generation calls, by role"))
	if err != nil {
		return nil, err
	}

	m.GenerationFailures, err = meter.Int64Counter("reviewforge.generation.failures",
		metric.WithDescription("Number of failed content generation calls, by role"))
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram("reviewforge.generation.duration_seconds",
		metric.WithDescription("Content generation call duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// MeterName is the instrumentation scope of ReviewForge metrics.
func MeterName() string { return meterName }

// Emit implements progress.Sink by counting run lifecycle events.
func (m *Metrics) Emit(ctx context.Context, ev revision.Event) {
	switch ev.Step {
	case revision.StepIterationStart:
		if ev.Iteration == 1 {
			m.RunsStarted.Add(ctx, 1)
		}
	case revision.StepWarning:
		m.Warnings.Add(ctx, 1)
	case revision.StepComplete:
		m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(ev.Status))))
		if ev.Result != nil {
			m.RunIterations.Record(ctx, int64(ev.Result.Iterations))
		}
	case revision.StepError:
		m.RunsFailed.Add(ctx, 1)
	}
}

var _ progress.Sink = (*Metrics)(nil)
