package status

import (
	"time"

	"github.com/google/uuid"
)

// RunPhase represents the current phase of a store test run
type RunPhase string

const (
	// RunPhaseRunning means the run is in progress
	RunPhaseRunning RunPhase = "Running"

	// RunPhaseComplete means the run wrote its snapshot
	RunPhaseComplete RunPhase = "Complete"

	// RunPhaseFailed means the run stopped before writing its snapshot
	RunPhaseFailed RunPhase = "Failed"
)

// Window describes which candidates a run considered
type Window struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Force  bool   `json:"force"`
	Key    string `json:"key,omitempty"`
}

// Counts summarizes the candidates of a run
type Counts struct {
	Candidates int `json:"candidates"`
	Tested     int `json:"tested"`
	Passed     int `json:"passed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	// Rejected is the number of malformed listing entries dropped at load
	Rejected int `json:"rejected"`
}

// SourceStatus records one input document of a run
type SourceStatus struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Hash     string `json:"hash,omitempty"`
	Entries  int    `json:"entries"`
	Rejected int    `json:"rejected,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

// RunStatus represents the state of the latest store test run
type RunStatus struct {
	// RunID uniquely identifies the run
	RunID string `json:"runId"`

	// Phase represents the current run phase
	Phase RunPhase `json:"phase"`

	// Message provides additional information about the run status
	Message string `json:"message,omitempty"`

	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// AttemptCount is the number of failed runs since the last complete one
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastCompleteTime is the finish time of the last complete run
	LastCompleteTime *time.Time `json:"lastCompleteTime,omitempty"`

	Window  Window         `json:"window"`
	Counts  Counts         `json:"counts"`
	Sources []SourceStatus `json:"sources,omitempty"`

	// Duration is the wall time of the run, as a Go duration string
	Duration string `json:"duration,omitempty"`
}

// NewRunStatus starts a run status carrying the history of previous
func NewRunStatus(previous *RunStatus, window Window, now time.Time) *RunStatus {
	status := &RunStatus{
		RunID:     uuid.NewString(),
		Phase:     RunPhaseRunning,
		StartedAt: &now,
		Window:    window,
	}
	if previous != nil {
		status.AttemptCount = previous.AttemptCount
		status.LastCompleteTime = previous.LastCompleteTime
	}
	return status
}

// Complete marks the run as complete
func (s *RunStatus) Complete(counts Counts, now time.Time) {
	s.Phase = RunPhaseComplete
	s.Message = "Store test completed"
	s.Counts = counts
	s.AttemptCount = 0
	s.finish(now)
	s.LastCompleteTime = s.FinishedAt
}

// Fail marks the run as failed with err
func (s *RunStatus) Fail(err error, now time.Time) {
	s.Phase = RunPhaseFailed
	s.Message = err.Error()
	s.AttemptCount++
	s.finish(now)
}

func (s *RunStatus) finish(now time.Time) {
	s.FinishedAt = &now
	if s.StartedAt != nil {
		s.Duration = now.Sub(*s.StartedAt).String()
	}
}
