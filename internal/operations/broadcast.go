package operations

// Event types sent to a Broadcaster while a run progresses.
const (
	EventRunStarted  = "run:started"
	EventStepUpdate  = "step:update"
	EventRunFinished = "run:finished"
)

// Broadcaster receives run progress, typically a WebSocket hub. step is
// empty for run-level events and status is a RunStatus or StepStatus.
type Broadcaster interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastUpdate(string, string, string, interface{}) {}

func (r *Runner) broadcastStep(state *State, stepState *StepState) {
	report := stepState.Report()
	metadata := map[string]interface{}{
		"run_id":      state.ID,
		"duration_ms": report.Duration.Milliseconds(),
	}
	if report.Message != "" {
		metadata["message"] = report.Message
	}
	if report.Error != "" {
		metadata["error"] = report.Error
	}
	r.broadcaster.BroadcastUpdate(EventStepUpdate, report.ID, string(report.Status), metadata)
}
