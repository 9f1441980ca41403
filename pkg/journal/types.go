package journal

import (
	"context"
	"time"
)

// Run is the persisted record of one build run.
type Run struct {
	ID           string     `json:"id"`
	Workflow     string     `json:"workflow"`
	Capability   string     `json:"capability"`
	Status       RunStatus  `json:"status"`
	SourceDir    string     `json:"source_dir"`
	ArtifactsDir string     `json:"artifacts_dir"`
	ScratchDir   string     `json:"scratch_dir"`
	Runtime      string     `json:"runtime,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorClass   string     `json:"error_class,omitempty"`
	ErrorAction  string     `json:"error_action,omitempty"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Duration returns how long the run took, or how long it has been running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	if r.Status == RunStatusRunning {
		return time.Since(r.StartedAt)
	}
	return 0
}

// Step is the persisted record of one action within a run.
type Step struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	Purpose     string     `json:"purpose"`
	Status      StepStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Event is one entry in the append-only build audit trail.
type Event struct {
	ID        int64     `json:"id"`
	RunID     *string   `json:"run_id,omitempty"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Outcome carries the terminal state written when a run finishes.
type Outcome struct {
	Status      RunStatus
	ErrorClass  string
	ErrorAction string
	Error       *string
}

// RunFilter narrows ListRuns results. Zero values match everything; a
// non-positive limit returns all matching runs.
type RunFilter struct {
	Workflow string
	Status   RunStatus
	Limit    int
}

// Store defines the interface for the run journal.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id string, outcome Outcome) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Step operations
	StartStep(ctx context.Context, step *Step) error
	FinishStep(ctx context.Context, id int64, status StepStatus, errMsg *string) error
	ListSteps(ctx context.Context, runID string) ([]*Step, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, runID string, limit int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
