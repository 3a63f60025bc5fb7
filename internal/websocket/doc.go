// Package websocket streams pipeline run progress to connected clients.
//
// A Hub owns the set of clients and fans out every update it receives. It
// implements operations.Broadcaster, so the runner publishes one frame when
// a run starts, one per step as it completes, fails or is skipped, and one
// when the run finishes:
//
//	{"type":"step:update","step":"enrich","status":"completed",
//	 "data":{"run_id":"...","duration_ms":3},"timestamp":"..."}
//
// Clients only listen. Each connection runs a read pump, which detects the
// peer going away, and a write pump, which also keeps the connection alive
// with pings. A client whose buffer fills up is disconnected rather than
// slowing the hub down.
package websocket
