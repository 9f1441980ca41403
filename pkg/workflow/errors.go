package workflow

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a workflow failure for
// reporting and exit codes.
type ErrorClass string

const (
	// ErrorClassRegistration indicates a capability has no registered workflow
	// or a definition could not be registered.
	ErrorClassRegistration ErrorClass = "registration"

	// ErrorClassBinaryValidation indicates the pre-flight binary gate could not
	// satisfy every requirement. No action has run when this is reported.
	ErrorClassBinaryValidation ErrorClass = "binary_validation"

	// ErrorClassNoActions indicates a workflow reached Run with an empty
	// action list.
	ErrorClassNoActions ErrorClass = "no_actions"

	// ErrorClassActionFailed indicates an action reported an expected build
	// failure, such as a compiler rejecting bad source.
	ErrorClassActionFailed ErrorClass = "action_failed"

	// ErrorClassUnknown indicates an unexpected failure inside an action or
	// the engine itself.
	ErrorClassUnknown ErrorClass = "unknown"
)

// WorkflowError represents a classified workflow failure with context.
// nolint:revive // WorkflowError is intentionally named to distinguish from standard errors
type WorkflowError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Workflow is the workflow name, when known.
	Workflow string `json:"workflow,omitempty"`

	// Action is the action being executed when the error occurred, if any.
	Action string `json:"action,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	if e.Workflow != "" && e.Action != "" {
		return fmt.Sprintf("[%s] %s (workflow=%s, action=%s): %s",
			e.Class, e.Message, e.Workflow, e.Action, e.unwrapMessage())
	}
	if e.Workflow != "" {
		return fmt.Sprintf("[%s] %s (workflow=%s): %s",
			e.Class, e.Message, e.Workflow, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *WorkflowError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewRegistrationError creates a new registration error.
func NewRegistrationError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassRegistration,
		Message: message,
		Err:     err,
	}
}

// NewBinaryValidationError creates a new binary validation error.
func NewBinaryValidationError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassBinaryValidation,
		Message: message,
		Err:     err,
	}
}

// NewNoActionsError creates a new no-actions error.
func NewNoActionsError(message string) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassNoActions,
		Message: message,
	}
}

// NewActionFailedError creates a new action-failed error.
func NewActionFailedError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassActionFailed,
		Message: message,
		Err:     err,
	}
}

// NewUnknownError creates a new unknown error.
func NewUnknownError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassUnknown,
		Message: message,
		Err:     err,
	}
}

// WithWorkflow adds workflow context to an error.
func (e *WorkflowError) WithWorkflow(name string) *WorkflowError {
	e.Workflow = name
	return e
}

// WithAction adds action context to an error.
func (e *WorkflowError) WithAction(name string) *WorkflowError {
	e.Action = name
	return e
}

// IsRegistration returns true if the error is classified as a registration error.
func IsRegistration(err error) bool {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRegistration
	}
	return false
}

// IsBinaryValidation returns true if the error is classified as a binary validation error.
func IsBinaryValidation(err error) bool {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Class == ErrorClassBinaryValidation
	}
	return false
}

// IsNoActions returns true if the error is classified as a no-actions error.
func IsNoActions(err error) bool {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNoActions
	}
	return false
}

// IsActionFailed returns true if the error is classified as an action failure.
func IsActionFailed(err error) bool {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Class == ErrorClassActionFailed
	}
	return false
}

// ClassOf returns the classification of err. Unclassified errors report
// ErrorClassUnknown; a nil error reports an empty class.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassUnknown
}
