// Package operations runs a pipeline definition as an ordered sequence of
// steps over one shared State.
//
// The fixed sequence built by NewPipelineRegistry is:
//
//	load → filter → enrich → finite → aggregate → layout → export
//
// Steps a definition does not configure implement Skipper and are recorded
// as skipped. The Runner executes steps one at a time, records a StepState
// per step (pending, active, completed, failed, skipped) and stops at the
// first failure; there is no retry. Errors returned by Run are *StepError
// values naming the step, wrapping the original error so callers can still
// extract the column and rule index with errors.AsAppError.
//
// Example usage:
//
//	registry, err := operations.NewPipelineRegistry(def, operations.Dependencies{Logger: logger})
//	if err != nil {
//		return err
//	}
//	state := operations.NewState(runID)
//	err = operations.NewRunner(registry, logger).Run(ctx, state)
package operations
