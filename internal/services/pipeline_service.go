package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/exporter"
	"github.com/141286/SWG-introduction-to-R/internal/infrastructure"
	"github.com/141286/SWG-introduction-to-R/internal/operations"
	"github.com/141286/SWG-introduction-to-R/internal/validation"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// RunResult is the outcome of one pipeline run. On failure it still
// carries the step reports up to the failing step.
type RunResult struct {
	RunID     string                  `json:"run_id"`
	Pipeline  string                  `json:"pipeline"`
	Status    operations.RunStatus    `json:"status"`
	Table     domain.Table            `json:"table"`
	Summaries []domain.SummaryRecord  `json:"summaries,omitempty"`
	Outputs   []string                `json:"outputs,omitempty"`
	Steps     []operations.StepReport `json:"steps"`
	Duration  time.Duration           `json:"duration_ns"`
}

// PipelineService compiles pipeline definitions and runs them with
// tracing, metrics and structured logs.
type PipelineService struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *infrastructure.PipelineMetrics
	runTimeout time.Duration
	deps       operations.Dependencies

	broadcaster operations.Broadcaster
}

// Option configures a PipelineService
type Option func(*PipelineService)

// WithTelemetry traces runs with tracer and records metrics.
func WithTelemetry(tracer trace.Tracer, metrics *infrastructure.PipelineMetrics) Option {
	return func(s *PipelineService) {
		if tracer != nil {
			s.tracer = tracer
		}
		s.metrics = metrics
	}
}

// WithScraper enables pipelines with HTML input.
func WithScraper(scraper operations.TableScraper) Option {
	return func(s *PipelineService) {
		s.deps.Scraper = scraper
	}
}

// WithBroadcaster publishes run progress to b.
func WithBroadcaster(b operations.Broadcaster) Option {
	return func(s *PipelineService) {
		s.broadcaster = b
	}
}

// WithRunTimeout bounds every run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *PipelineService) {
		s.runTimeout = d
	}
}

// NewPipelineService creates a pipeline service. A nil logger falls back to
// slog.Default().
func NewPipelineService(logger *slog.Logger, opts ...Option) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PipelineService{
		logger: logger.With(slog.String("component", "pipeline_service")),
		tracer: noop.NewTracerProvider().Tracer(infrastructure.MeterName),
		deps: operations.Dependencies{
			Logger:     logger,
			Exporter:   exporter.New(logger),
			Enricher:   dataprocessing.NewEnricher(logger),
			Summarizer: dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{}),
			Files:      validation.NewFileValidator(logger),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes def against its configured input source.
func (s *PipelineService) Run(ctx context.Context, def *config.PipelineDefinition) (*RunResult, error) {
	return s.run(ctx, def, nil)
}

// RunWithInput executes def against an in-memory table instead of the
// definition's input source.
func (s *PipelineService) RunWithInput(ctx context.Context, def *config.PipelineDefinition, input domain.Table) (*RunResult, error) {
	return s.run(ctx, def, &input)
}

func (s *PipelineService) run(ctx context.Context, def *config.PipelineDefinition, input *domain.Table) (*RunResult, error) {
	if def == nil {
		return nil, errors.NewAppValidationError("pipeline definition is required")
	}

	registry, err := operations.NewPipelineRegistry(def, s.deps)
	if err != nil {
		return nil, err
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	ctx, span := s.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("pipeline.name", def.Name),
		))
	defer span.End()
	ctx = infrastructure.EnsureTraceID(ctx)

	logger := s.logger.With(slog.String("run_id", runID), slog.String("pipeline", def.Name))
	logger.InfoContext(ctx, "pipeline run started")

	state := operations.NewState(runID)
	state.Input = input

	runLogger := s.deps.Logger.With(slog.String("run_id", runID), slog.String("pipeline", def.Name))
	runner := operations.NewRunner(registry, runLogger,
		operations.WithTracer(s.tracer),
		operations.WithMetrics(s.metrics),
		operations.WithBroadcaster(s.broadcaster))
	runErr := runner.Run(ctx, state)

	result := &RunResult{
		RunID:     runID,
		Pipeline:  def.Name,
		Status:    state.GetStatus(),
		Table:     state.Table,
		Summaries: state.Summaries,
		Outputs:   state.Outputs,
		Steps:     state.Reports(),
		Duration:  state.Duration(),
	}
	s.metrics.RecordRun(ctx, def.Name, state.InputRows, result.Duration, runErr)

	if runErr != nil {
		infrastructure.RecordError(ctx, runErr)
		logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("step", operations.FailedStep(runErr)),
			slog.String("error", runErr.Error()),
			slog.Duration("duration", result.Duration))
		return result, runErr
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"pipeline.rows":    result.Table.Len(),
		"pipeline.groups":  len(result.Summaries),
		"pipeline.outputs": len(result.Outputs),
	})
	logger.InfoContext(ctx, "pipeline run completed",
		slog.Int("rows", result.Table.Len()),
		slog.Int("groups", len(result.Summaries)),
		slog.Int("outputs", len(result.Outputs)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// Enrich compiles specs and applies them to table.
func (s *PipelineService) Enrich(ctx context.Context, table domain.Table, specs []dataprocessing.RuleSpec) (domain.Table, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.enrich",
		trace.WithAttributes(attribute.Int("rules", len(specs))))
	defer span.End()

	rules, err := dataprocessing.CompileRules(specs)
	if err != nil {
		return domain.Table{}, err
	}
	out, err := s.deps.Enricher.Apply(ctx, table, rules)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.Table{}, err
	}
	return out, nil
}

// Aggregate summarizes table per spec and also returns the summaries in
// table form.
func (s *PipelineService) Aggregate(ctx context.Context, table domain.Table, spec dataprocessing.AggregateSpec) ([]domain.SummaryRecord, domain.Table, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.aggregate",
		trace.WithAttributes(attribute.String("measure", spec.Measure)))
	defer span.End()

	summaries, err := s.deps.Summarizer.Summarize(ctx, table, spec)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, domain.Table{}, err
	}
	return summaries, dataprocessing.SummaryTable(spec, summaries), nil
}

// Inspect reads a CSV or XLSX file and returns its inferred schema.
func (s *PipelineService) Inspect(ctx context.Context, path string, opts dataprocessing.ReadOptions) (domain.Table, domain.Schema, error) {
	if err := s.deps.Files.ValidateInputFile(path, ".csv", ".txt", ".tsv", ".xlsx", ".xlsm"); err != nil {
		return domain.Table{}, domain.Schema{}, err
	}

	def := &config.PipelineDefinition{Input: config.InputSpec{Path: path}}
	var (
		table domain.Table
		err   error
	)
	if def.InputFormat() == config.InputXLSX {
		table, err = dataprocessing.ReadXLSX(path, opts)
	} else {
		table, err = dataprocessing.ReadCSVFile(path, opts)
	}
	if err != nil {
		return domain.Table{}, domain.Schema{}, err
	}

	schema := dataprocessing.InspectSchema(table)
	s.logger.DebugContext(ctx, "inspected input",
		slog.String("path", path),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(schema.Columns)))
	return table, schema, nil
}
