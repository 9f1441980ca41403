package journal

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a recorded build run.
type RunStatus string

const (
	// RunStatusRunning indicates the build is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every action completed successfully.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the build stopped on a failure.
	RunStatusFailed RunStatus = "failed"

	// RunStatusDenied indicates admission policy rejected the build before
	// anything ran.
	RunStatusDenied RunStatus = "denied"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusDenied
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusDenied:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements strict JSON marshaling: unknown statuses do not
// serialize.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements strict JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// StepStatus represents the status of a single recorded action.
type StepStatus string

const (
	// StepStatusRunning indicates the action is currently executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusSucceeded indicates the action completed successfully.
	StepStatusSucceeded StepStatus = "succeeded"

	// StepStatusFailed indicates the action returned an error.
	StepStatusFailed StepStatus = "failed"
)

// IsTerminal returns true if the step status represents a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed
}

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusRunning, StepStatusSucceeded, StepStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// MarshalJSON implements strict JSON marshaling for step statuses.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON implements strict JSON unmarshaling with validation.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = StepStatus(str)
	return s.Validate()
}

// EventType represents the type of an entry in the build audit trail.
type EventType string

const (
	// EventTypeBuildStarted indicates a build run has started.
	EventTypeBuildStarted EventType = "build.started"

	// EventTypeBuildCompleted indicates a build run finished successfully.
	EventTypeBuildCompleted EventType = "build.completed"

	// EventTypeBuildFailed indicates a build run stopped on a failure.
	EventTypeBuildFailed EventType = "build.failed"

	// EventTypeBuildDenied indicates admission policy rejected the build.
	EventTypeBuildDenied EventType = "build.denied"

	// EventTypeGateFailed indicates binary validation blocked the build.
	EventTypeGateFailed EventType = "gate.failed"

	// EventTypeActionStarted indicates an action has started executing.
	EventTypeActionStarted EventType = "action.started"

	// EventTypeActionCompleted indicates an action completed successfully.
	EventTypeActionCompleted EventType = "action.completed"

	// EventTypeActionFailed indicates an action returned an error.
	EventTypeActionFailed EventType = "action.failed"

	// EventTypePolicyWarning indicates admission produced a non-blocking
	// finding.
	EventTypePolicyWarning EventType = "policy.warning"
)

// Severity returns the severity level of the event type.
func (e EventType) Severity() string {
	switch e {
	case EventTypeBuildFailed, EventTypeBuildDenied, EventTypeGateFailed, EventTypeActionFailed:
		return "error"
	case EventTypePolicyWarning:
		return "warning"
	default:
		return "info"
	}
}
