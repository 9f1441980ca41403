package policy

import (
	"time"

	"github.com/polybuild/polybuild/pkg/workflow"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block a build.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that deny a build.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that deny a build and must be
	// addressed immediately.
	SeverityCritical Severity = "critical"
)

// Denies reports whether a violation of this severity blocks the build.
func (s Severity) Denies() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents an admission policy with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Workflow is the workflow the build request named, when known.
	Workflow string `json:"workflow,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`

	// Remediation provides suggested fixes.
	Remediation string `json:"remediation,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of admitting one build request.
type Result struct {
	// Allowed indicates if the build may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists findings that denied the build.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists findings that do not block the build.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of the policies consulted.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Denials returns the violations as one message per line, for error text.
func (r *Result) Denials() []string {
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// Input is the document policies evaluate for one build request.
type Input struct {
	// Workflow is the name of the workflow that will run.
	Workflow string `json:"workflow"`

	// Capability is the capability the request named.
	Capability workflow.Capability `json:"capability"`

	// Config is the per-build configuration.
	Config workflow.Config `json:"config"`

	// Context provides information about who asked and when.
	Context *Context `json:"context"`
}

// Context provides request information for policy evaluation.
type Context struct {
	// User is the user requesting the build.
	User string `json:"user,omitempty"`

	// Environment is the environment the build runs in.
	Environment string `json:"environment,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// DryRun indicates a validation pass that will not build.
	DryRun bool `json:"dry_run"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Bundle represents a collection of related policies shipped together.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
