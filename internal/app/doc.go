// Package app assembles the HTTP service: it builds the pipeline and health
// services from a loaded configuration, wires the middleware chain and the
// chi router, and runs the server until its context is cancelled.
//
// The middleware order is fixed:
//
//	RequestID → RealIP → OTel → StructuredLogger → Recoverer →
//	SecurityHeaders → CORS → RateLimiter
//
// Routes under /api/v1 additionally get a body size cap and the run
// timeout. /metrics is served from the dedicated Prometheus registry when
// the prometheus metric exporter is enabled. /ws upgrades to a WebSocket
// that receives progress frames for every run the service executes.
//
// Usage:
//
//	application, err := app.NewApplication(cfg, logger, providers)
//	if err != nil {
//		return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return application.Run(ctx)
package app
