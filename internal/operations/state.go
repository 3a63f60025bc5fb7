package operations

import (
	"sync"
	"time"

	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// State is the working state of one pipeline run. Steps run one at a time
// and own the data fields while they execute; the status fields are safe
// for concurrent readers.
type State struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps []*StepState
	index map[string]*StepState

	// Input, when set, is used by the load step instead of reading the
	// pipeline's input source.
	Input *domain.Table

	Table     domain.Table
	Schema    domain.Schema
	Summaries []domain.SummaryRecord
	Outputs   []string

	// InputRows is the row count right after loading.
	InputRows int
}

// NewState creates a new run state
func NewState(id string) *State {
	return &State{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		index:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (s *State) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *State) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (s *State) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusFailed
	s.Error = err
}

// Cancel marks the run as cancelled
func (s *State) Cancel(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCancelled
	s.Error = err
}

// GetStatus returns the run status
func (s *State) GetStatus() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// AddStep registers the runtime state of a step, keeping insertion order.
func (s *State) AddStep(step *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	s.index[step.ID] = step
}

// GetStep returns the state of a specific Step
func (s *State) GetStep(id string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id]
}

// Reports returns a copy of every step state in run order.
func (s *State) Reports() []StepReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StepReport, len(s.steps))
	for i, step := range s.steps {
		out[i] = step.Report()
	}
	return out
}

// Duration returns the duration of the run
func (s *State) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// SetTable replaces the working table.
func (s *State) SetTable(table domain.Table, schema domain.Schema) {
	s.Table = table
	s.Schema = schema
}
