package workflow

import (
	"errors"
	"fmt"
	"time"

	"lsadf-backend/core/apperror"
)

// Status is the state of a run.
type Status string

const (
	StatusStarted       Status = "started"
	StatusCheckpointing Status = "checkpointing"
	StatusIdle          Status = "idle"
	StatusFinalizing    Status = "finalizing"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Signal is an external request to end a run.
type Signal string

const (
	SignalNone     Signal = ""
	SignalComplete Signal = "complete"
	SignalCancel   Signal = "cancel"
)

// Run is the persisted state of one workflow run.
type Run struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Status Status `json:"status"`
	Signal Signal `json:"signal,omitempty"`

	Checkpoints    int            `json:"checkpoints"`
	Attempts       map[string]int `json:"attempts,omitempty"`
	Failures       []StepFailure  `json:"failures,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	FinalFlushDone bool           `json:"final_flush_done"`

	Data map[string]string `json:"data,omitempty"`

	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	NextCheckpoint time.Time `json:"next_checkpoint"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
}

func (r Run) clone() Run {
	c := r
	c.Attempts = make(map[string]int, len(r.Attempts))
	for k, v := range r.Attempts {
		c.Attempts[k] = v
	}
	c.Failures = append([]StepFailure(nil), r.Failures...)
	c.Data = make(map[string]string, len(r.Data))
	for k, v := range r.Data {
		c.Data[k] = v
	}
	return c
}

// StepFailure records a step that exhausted its retries.
type StepFailure struct {
	Step       string    `json:"step"`
	Checkpoint int       `json:"checkpoint"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

// StepFailedError is returned when a step exhausted its retries or failed permanently.
// It matches apperror.ErrWorkflowStepFailed.
type StepFailedError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

func (e *StepFailedError) Unwrap() error {
	return e.Err
}

func (e *StepFailedError) Is(target error) bool {
	return target == apperror.ErrWorkflowStepFailed
}

// AsStepFailed extracts a StepFailedError from err.
func AsStepFailed(err error) (*StepFailedError, bool) {
	var sf *StepFailedError
	ok := errors.As(err, &sf)
	return sf, ok
}
