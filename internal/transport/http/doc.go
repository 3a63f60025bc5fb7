// Package http implements the JSON API over the pipeline service.
//
// Handlers stay thin: decode and validate the request body, call the
// service, render the result. Every failure goes through
// errors.ErrorHandler, which answers with RFC 7807 problem details. Missing
// columns and type mismatches map to 422 and carry "column" and, when a
// rule raised them, "rule_index" extensions:
//
//	{
//	    "type": "/errors/pipeline/missing-column",
//	    "title": "Missing Column",
//	    "status": 422,
//	    "detail": "rule 1 (membership): [MISSING_COLUMN] column \"country\" not found",
//	    "column": "country",
//	    "rule_index": 1,
//	    "trace_id": "5c0e..."
//	}
//
// Successful responses are wrapped as {"status":"success","data":...}.
//
// Routes:
//
//	POST /api/v1/enrich     table + rules        → enriched table
//	POST /api/v1/aggregate  table + aggregate    → summaries and summary table
//	POST /api/v1/run        pipeline [+ table]   → run result with step reports
//	GET  /healthz                                → liveness
//	GET  /version                                → build information
//
// GET /ws, mounted by the app package, streams run progress as WebSocket
// frames.
package http
