package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/polybuild/polybuild/pkg/telemetry"
)

// CleanUpAction removes a directory tree, typically stale dependency output
// in the scratch area from a previous build.
type CleanUpAction struct {
	// Dir is the directory to remove. A missing directory is not an error.
	Dir string
}

// NewCleanUpAction creates an action that removes dir and everything under it.
func NewCleanUpAction(dir string) *CleanUpAction {
	return &CleanUpAction{Dir: dir}
}

// Name returns the action name.
func (a *CleanUpAction) Name() string {
	return "clean-up"
}

// Purpose returns the action purpose.
func (a *CleanUpAction) Purpose() Purpose {
	return PurposeCleanUp
}

// Description returns a human-readable summary.
func (a *CleanUpAction) Description() string {
	return fmt.Sprintf("remove %s", a.Dir)
}

// Execute removes the directory tree.
func (a *CleanUpAction) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(a.Dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", a.Dir, err)
	}

	telemetry.FromContext(ctx).WithAction(a.Name()).Debugf("Removed %s", a.Dir)
	return nil
}
