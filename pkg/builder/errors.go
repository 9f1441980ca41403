package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/polybuild/polybuild/pkg/policy"
)

// ErrorClassPolicyDenied is journaled as the error class of a run that
// admission policy rejected. It extends the workflow error classes, which
// only cover failures past admission.
const ErrorClassPolicyDenied = "policy_denied"

// DeniedError reports a build rejected by admission policy. No binary was
// resolved and no action ran.
type DeniedError struct {
	// RunID is the journaled run recording the denial.
	RunID string

	// Workflow is the workflow the request selected.
	Workflow string

	// Violations are the findings that denied the build.
	Violations []policy.Violation
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("build of workflow %s denied by policy: %s",
		e.Workflow, strings.Join(e.policies(), ", "))
}

// policies returns the denying policy names in first-seen order.
func (e *DeniedError) policies() []string {
	seen := make(map[string]bool, len(e.Violations))
	names := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if !seen[v.Policy] {
			seen[v.Policy] = true
			names = append(names, v.Policy)
		}
	}
	return names
}

// IsDenied returns true if the error reports a policy denial.
func IsDenied(err error) bool {
	var e *DeniedError
	return errors.As(err, &e)
}
