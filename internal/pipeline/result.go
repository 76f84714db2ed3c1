package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/vk/blueetlcore/internal/fingerprint"
	"github.com/vk/blueetlcore/internal/frame"
)

// Status is the state of a pipeline run.
type Status int

const (
	NotStarted Status = iota
	Running
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StepStatus is the state of a single step.
type StepStatus int

const (
	// StepPending means the step has not been reached yet.
	StepPending StepStatus = iota
	StepRunning
	StepDone
	StepFailed
	// StepSkipped means an earlier step failed.
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	}
	return "unknown"
}

// MarshalText renders the status by name.
func (s StepStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StepResult records what happened to one step.
type StepResult struct {
	Index       int
	Name        string
	Status      StepStatus
	Output      *frame.Frame
	Fingerprint fingerprint.Fingerprint
	// FromCache is true when the output was not computed by this run.
	FromCache bool
	Duration  time.Duration
}

// Result is the outcome of Run.
type Result struct {
	RunID   uuid.UUID
	Status  Status
	Steps   []StepResult
	Failure *StepFailure
}

// Err returns the failure as an error, or nil.
func (r *Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Output returns the output of the last step that completed, or nil.
func (r *Result) Output() *frame.Frame {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].Status == StepDone {
			return r.Steps[i].Output
		}
	}
	return nil
}
