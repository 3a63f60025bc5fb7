package operations

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/141286/SWG-introduction-to-R/internal/infrastructure"
)

// Runner executes the steps of a registry in order against one State.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics

	broadcaster Broadcaster
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithTracer records a span per step.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithMetrics records step durations.
func WithMetrics(metrics *infrastructure.PipelineMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// WithBroadcaster publishes run and step progress to b.
func WithBroadcaster(b Broadcaster) RunnerOption {
	return func(r *Runner) {
		if b != nil {
			r.broadcaster = b
		}
	}
}

// NewRunner creates a runner over registry
func NewRunner(registry *Registry, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		registry: registry,
		logger:   logger.With(slog.String("component", "runner")),
		tracer:   noop.NewTracerProvider().Tracer(infrastructure.MeterName),

		broadcaster: noopBroadcaster{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the steps this runner executes
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes every step sequentially. The first failing step aborts the
// run; the steps after it are marked skipped. A cancelled context stops
// the run before the next step starts.
func (r *Runner) Run(ctx context.Context, state *State) error {
	steps := r.registry.List()
	for _, step := range steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	state.Start()
	r.logger.InfoContext(ctx, "run started",
		slog.String("run_id", state.ID),
		slog.Int("step_count", len(steps)))
	r.broadcaster.BroadcastUpdate(EventRunStarted, "", string(RunStatusRunning), map[string]interface{}{
		"run_id": state.ID,
		"steps":  r.registry.ListIDs(),
	})
	defer r.broadcastFinished(state)

	for i, step := range steps {
		stepState := state.GetStep(step.ID())

		if err := ctx.Err(); err != nil {
			runErr := NewCancellationError(step.ID(), err)
			r.skipRemaining(state, steps[i:], "run cancelled")
			state.Cancel(runErr)
			r.logger.WarnContext(ctx, "run cancelled",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()))
			return runErr
		}

		if skipper, ok := step.(Skipper); ok {
			if reason, skip := skipper.Skip(state); skip {
				stepState.Skip(reason)
				r.broadcastStep(state, stepState)
				r.logger.DebugContext(ctx, "step skipped",
					slog.String("run_id", state.ID),
					slog.String("step", step.ID()),
					slog.String("reason", reason))
				continue
			}
		}

		if err := r.executeStep(ctx, state, step, stepState); err != nil {
			r.skipRemaining(state, steps[i+1:], "previous step failed")
			runErr := NewExecutionError(step.ID(), err)
			state.Fail(runErr)
			return runErr
		}
	}

	state.Complete()
	r.logger.InfoContext(ctx, "run completed",
		slog.String("run_id", state.ID),
		slog.Int("rows", state.Table.Len()),
		slog.Duration("duration", state.Duration()))
	return nil
}

func (r *Runner) executeStep(ctx context.Context, state *State, step Step, stepState *StepState) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", step.ID()),
		))
	defer span.End()

	stepState.Start()
	start := time.Now()
	err := step.Execute(ctx, state)
	r.metrics.RecordStep(ctx, step.ID(), time.Since(start), err)

	if err != nil {
		stepState.Fail(err)
		r.broadcastStep(state, stepState)
		infrastructure.RecordError(ctx, err)
		r.logger.ErrorContext(ctx, "step failed",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("error", err.Error()))
		return err
	}

	stepState.Complete()
	r.broadcastStep(state, stepState)
	span.SetAttributes(attribute.Int("step.rows", state.Table.Len()))
	r.logger.InfoContext(ctx, "step completed",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
		slog.Int("rows", state.Table.Len()),
		slog.Duration("duration", stepState.Duration()))
	return nil
}

func (r *Runner) skipRemaining(state *State, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStep(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
			r.broadcastStep(state, s)
		}
	}
}

func (r *Runner) broadcastFinished(state *State) {
	metadata := map[string]interface{}{
		"run_id":      state.ID,
		"rows":        state.Table.Len(),
		"duration_ms": state.Duration().Milliseconds(),
	}
	if state.Error != nil {
		metadata["error"] = state.Error.Error()
	}
	r.broadcaster.BroadcastUpdate(EventRunFinished, "", string(state.GetStatus()), metadata)
}
