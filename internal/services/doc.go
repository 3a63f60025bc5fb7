// Package services implements the business logic layer shared by the CLI
// and the HTTP API.
//
// PipelineService is the single entry point for running pipelines. It
// compiles a definition into the step sequence of package operations,
// assigns each run a UUID, wraps it in an OpenTelemetry span, records the
// pipeline metrics and logs the outcome. Enrich and Aggregate expose the
// two core transformations on their own for callers that already hold a
// table.
//
// Services take their collaborators through the constructor and never
// reach for package-level state:
//
//	svc := services.NewPipelineService(logger,
//		services.WithTelemetry(providers.Tracer, metrics),
//		services.WithRunTimeout(cfg.Server.RunTimeout))
//	result, err := svc.Run(ctx, def)
package services
