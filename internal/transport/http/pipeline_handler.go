package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	apierrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/middleware"
	"github.com/141286/SWG-introduction-to-R/internal/services"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// PipelineService is the part of services.PipelineService the API needs.
type PipelineService interface {
	Run(ctx context.Context, def *config.PipelineDefinition) (*services.RunResult, error)
	RunWithInput(ctx context.Context, def *config.PipelineDefinition, input domain.Table) (*services.RunResult, error)
	Enrich(ctx context.Context, table domain.Table, specs []dataprocessing.RuleSpec) (domain.Table, error)
	Aggregate(ctx context.Context, table domain.Table, spec dataprocessing.AggregateSpec) ([]domain.SummaryRecord, domain.Table, error)
}

// Response wraps every successful payload.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func success(data interface{}) Response {
	return Response{Status: "success", Data: data}
}

// EnrichRequest is the body of POST /api/v1/enrich.
type EnrichRequest struct {
	Table domain.Table               `json:"table"`
	Rules []dataprocessing.RuleSpec `json:"rules" validate:"required,min=1,dive"`
}

// EnrichResponse carries the enriched table.
type EnrichResponse struct {
	Table domain.Table `json:"table"`
}

// AggregateRequest is the body of POST /api/v1/aggregate.
type AggregateRequest struct {
	Table     domain.Table                  `json:"table"`
	Aggregate dataprocessing.AggregateSpec `json:"aggregate"`
}

// AggregateResponse carries the summaries both as records and as the
// table that would be exported.
type AggregateResponse struct {
	Summaries []domain.SummaryRecord `json:"summaries"`
	Table     domain.Table           `json:"table"`
}

// RunRequest is the body of POST /api/v1/run. When Table is set it replaces
// the pipeline's input source.
type RunRequest struct {
	Pipeline config.PipelineDefinition `json:"pipeline"`
	Table    *domain.Table             `json:"table,omitempty"`
}

// PipelineHandler serves the enrichment, aggregation and run endpoints.
type PipelineHandler struct {
	service PipelineService
	decoder *middleware.RequestDecoder
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger

	dataDir          string
	allowRemoteInput bool
}

// PipelineHandlerOption configures a PipelineHandler
type PipelineHandlerOption func(*PipelineHandler)

// WithDataDir confines run definitions to dir. allowRemoteInput also lets
// them name an input.url for the scraper.
func WithDataDir(dir string, allowRemoteInput bool) PipelineHandlerOption {
	return func(h *PipelineHandler) {
		if dir != "" {
			h.dataDir = dir
		}
		h.allowRemoteInput = allowRemoteInput
	}
}

// NewPipelineHandler creates a pipeline handler. Runs are confined to the
// working directory and may not fetch remote inputs unless WithDataDir says
// otherwise.
func NewPipelineHandler(service PipelineService, decoder *middleware.RequestDecoder, errorHandler *apierrors.ErrorHandler, logger *slog.Logger, opts ...PipelineHandlerOption) *PipelineHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if decoder == nil {
		decoder = middleware.NewRequestDecoder(logger, 0)
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	h := &PipelineHandler{
		service: service,
		decoder: decoder,
		errors:  errorHandler,
		logger:  logger.With(slog.String("handler", "pipeline")),
		dataDir: ".",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns a chi router for the pipeline endpoints
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator("application/json"))
	r.Post("/enrich", h.Enrich)
	r.Post("/aggregate", h.Aggregate)
	r.Post("/run", h.Run)
	return r
}

// Enrich handles POST /api/v1/enrich
func (h *PipelineHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := h.decoder.Decode(w, r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	table, err := h.service.Enrich(r.Context(), req.Table, req.Rules)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "table enriched",
		slog.Int("rows", table.Len()),
		slog.Int("rules", len(req.Rules)))
	render.JSON(w, r, success(EnrichResponse{Table: table}))
}

// Aggregate handles POST /api/v1/aggregate
func (h *PipelineHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := h.decoder.Decode(w, r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	summaries, table, err := h.service.Aggregate(r.Context(), req.Table, req.Aggregate)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "table aggregated",
		slog.Int("rows", req.Table.Len()),
		slog.Int("groups", len(summaries)))
	render.JSON(w, r, success(AggregateResponse{Summaries: summaries, Table: table}))
}

// Run handles POST /api/v1/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := h.decoder.Decode(w, r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	if err := req.Pipeline.Confine(h.dataDir, h.allowRemoteInput); err != nil {
		h.logger.WarnContext(r.Context(), "run definition rejected",
			slog.String("pipeline", req.Pipeline.Name),
			slog.String("error", err.Error()))
		h.errors.HandleError(w, r, err)
		return
	}

	var (
		result *services.RunResult
		err    error
	)
	if req.Table != nil {
		result, err = h.service.RunWithInput(r.Context(), &req.Pipeline, *req.Table)
	} else {
		result, err = h.service.Run(r.Context(), &req.Pipeline)
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pipeline run served",
		slog.String("run_id", result.RunID),
		slog.String("pipeline", result.Pipeline))
	render.JSON(w, r, success(result))
}
