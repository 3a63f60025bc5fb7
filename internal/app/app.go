package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	apierrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/infrastructure"
	customMiddleware "github.com/141286/SWG-introduction-to-R/internal/middleware"
	"github.com/141286/SWG-introduction-to-R/internal/scraper"
	"github.com/141286/SWG-introduction-to-R/internal/services"
	handlers "github.com/141286/SWG-introduction-to-R/internal/transport/http"
	"github.com/141286/SWG-introduction-to-R/internal/websocket"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts"
)

// Application wires configuration, telemetry, services and the HTTP server.
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.PipelineMetrics
	PipelineService *services.PipelineService
	HealthService   *services.HealthService
	ErrorHandler    *apierrors.ErrorHandler
	Hub             *websocket.Hub
}

// NewApplication builds the application from an already loaded config,
// logger and telemetry providers. Nil providers disable telemetry.
func NewApplication(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices creates the progress hub and the pipeline and health
// services
func (a *Application) initializeServices() error {
	a.Hub = websocket.NewHub(a.Logger)
	a.Hub.Start()

	opts := []services.Option{
		services.WithScraper(scraper.New(scraper.ConfigFrom(a.Config.Scraper), a.Logger)),
		services.WithBroadcaster(a.Hub),
	}

	if a.OTelProviders != nil {
		metrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
		if err != nil {
			return err
		}
		a.Metrics = metrics
		opts = append(opts, services.WithTelemetry(a.OTelProviders.Tracer, metrics))
	}

	a.PipelineService = services.NewPipelineService(a.Logger, opts...)
	a.HealthService = services.NewHealthService(a.Logger)
	return nil
}

// setupRouter builds the middleware chain and mounts the handlers. Order:
// RequestID → RealIP → OTel → Logger → Recoverer → headers → rate limit.
// /ws sits outside /api/v1 so the run timeout does not apply to it.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	var tracerMiddleware *customMiddleware.OTelMiddleware
	if a.OTelProviders != nil {
		tracerMiddleware = customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger)
	} else {
		tracerMiddleware = customMiddleware.NewOTelMiddleware(nil, nil, a.Logger)
	}
	r.Use(tracerMiddleware.Handler)

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{}))

	if a.Config.Server.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Server.RateLimit.RPS,
			a.Config.Server.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/version", healthHandler.Version)
	r.Handle("/ws", websocket.NewHandler(a.Hub, nil, a.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxBodyBytes))
		r.Use(customMiddleware.Timeout(a.Config.Server.RunTimeout))

		pipelineHandler := handlers.NewPipelineHandler(
			a.PipelineService,
			customMiddleware.NewRequestDecoder(a.Logger, a.Config.Server.MaxBodyBytes),
			a.ErrorHandler,
			a.Logger,
			handlers.WithDataDir(a.Config.Server.DataDir, a.Config.Server.AllowRemoteInput),
		)
		r.Mount("/", pipelineHandler.Routes())
	})

	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "server listening",
			slog.String("address", listener.Addr().String()),
			slog.String("version", contracts.Version))
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down server")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	// Shutdown leaves hijacked connections open.
	a.Hub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
