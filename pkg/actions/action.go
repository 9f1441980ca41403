// Package actions defines the executable steps that make up a build workflow.
//
// An Action is a named, single-purpose unit of work such as copying a source
// tree or invoking a dependency manager. Workflows execute their actions
// strictly in order and stop at the first failure. Actions report expected
// failures with FailedError so callers can distinguish a broken build from a
// broken tool.
package actions

import (
	"context"
	"errors"
	"fmt"
)

// Purpose describes the intent of an action within a build pipeline.
type Purpose string

// Purpose values cover the standard phases of a build.
const (
	// PurposeCopySource copies the project source tree into a working area.
	PurposeCopySource Purpose = "COPY_SOURCE"

	// PurposeResolveDependencies downloads or installs project dependencies.
	PurposeResolveDependencies Purpose = "RESOLVE_DEPENDENCIES"

	// PurposeCompileSource compiles source files into build outputs.
	PurposeCompileSource Purpose = "COMPILE_SOURCE"

	// PurposeCopyDependencies copies resolved dependencies into the artifact tree.
	PurposeCopyDependencies Purpose = "COPY_DEPENDENCIES"

	// PurposeCleanUp removes intermediate files from the artifact tree.
	PurposeCleanUp Purpose = "CLEAN_UP"
)

// String returns the string representation of the purpose.
func (p Purpose) String() string {
	return string(p)
}

// Validate returns an error if the purpose is not a known value.
func (p Purpose) Validate() error {
	switch p {
	case PurposeCopySource, PurposeResolveDependencies, PurposeCompileSource,
		PurposeCopyDependencies, PurposeCleanUp:
		return nil
	}
	return fmt.Errorf("invalid action purpose: %s", p)
}

// Action is a single executable step in a build workflow.
type Action interface {
	// Name returns the action's name, used in logs, events, and journal steps.
	Name() string

	// Purpose returns the phase of the build this action implements.
	Purpose() Purpose

	// Description returns a human-readable summary of what the action does.
	Description() string

	// Execute runs the action. An expected build failure is reported as a
	// FailedError; any other error indicates a bug or environment problem.
	Execute(ctx context.Context) error
}

// Binary exposes a resolved executable to actions that shell out.
// The workflow's binary validation gate records the path before any
// action runs.
type Binary interface {
	// BinaryName returns the name the binary is registered under.
	BinaryName() string

	// ResolvedPath returns the validated executable path.
	ResolvedPath() string
}

// FailedError reports an expected action failure, such as a compiler or
// dependency manager exiting non-zero on bad input.
type FailedError struct {
	// Action is the name of the action that failed.
	Action string

	// Err is the underlying cause.
	Err error
}

// NewFailedError creates a FailedError for the named action.
func NewFailedError(action string, err error) *FailedError {
	return &FailedError{Action: action, Err: err}
}

// Failf creates a FailedError with a formatted message.
func Failf(action, format string, args ...interface{}) *FailedError {
	return &FailedError{Action: action, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *FailedError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FailedError) Unwrap() error {
	return e.Err
}

// IsFailed reports whether err is an expected action failure.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}
