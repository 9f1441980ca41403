package workflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestWorkflowError_Message_Full(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewActionFailedError("action failed", cause).
		WithWorkflow("python-pip").
		WithAction("resolve-dependencies")

	want := "[action_failed] action failed (workflow=python-pip, action=resolve-dependencies): exit status 1"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestWorkflowError_Message_NoAction(t *testing.T) {
	err := NewBinaryValidationError("binary validation failed for python", nil).
		WithWorkflow("python-pip")

	want := "[binary_validation] binary validation failed for python (workflow=python-pip)"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestWorkflowError_Message_Bare(t *testing.T) {
	err := NewRegistrationError("cannot register workflow", errors.New("name is required"))

	want := "[registration] cannot register workflow: name is required"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestWorkflowError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewUnknownError("unexpected error during action", cause).
		WithWorkflow("go-mod").
		WithAction("compile-source")

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable through errors.Is")
	}
}

func TestWorkflowError_Is_MatchesByClass(t *testing.T) {
	target := NewActionFailedError("", nil)
	err := fmt.Errorf("build run: %w",
		NewActionFailedError("action failed", errors.New("exit status 2")).WithWorkflow("node-npm"))

	if !errors.Is(err, target) {
		t.Error("Expected errors with the same class to match")
	}

	other := NewNoActionsError("")
	if errors.Is(err, other) {
		t.Error("Expected errors with different classes not to match")
	}
}

func TestWorkflowError_ClassHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{
			name:  "registration matches",
			err:   NewRegistrationError("cannot register workflow", nil),
			check: IsRegistration,
			want:  true,
		},
		{
			name:  "binary validation matches",
			err:   NewBinaryValidationError("binary validation failed", nil),
			check: IsBinaryValidation,
			want:  true,
		},
		{
			name:  "no actions matches",
			err:   NewNoActionsError("workflow has no actions registered"),
			check: IsNoActions,
			want:  true,
		},
		{
			name:  "action failed matches",
			err:   NewActionFailedError("action failed", nil),
			check: IsActionFailed,
			want:  true,
		},
		{
			name:  "wrapped action failed matches",
			err:   fmt.Errorf("run: %w", NewActionFailedError("action failed", nil)),
			check: IsActionFailed,
			want:  true,
		},
		{
			name:  "class mismatch does not match",
			err:   NewNoActionsError("workflow has no actions registered"),
			check: IsActionFailed,
			want:  false,
		},
		{
			name:  "plain error does not match",
			err:   errors.New("boom"),
			check: IsActionFailed,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "nil error has no class",
			err:  nil,
			want: "",
		},
		{
			name: "classified error reports its class",
			err:  NewBinaryValidationError("binary validation failed", nil),
			want: ErrorClassBinaryValidation,
		},
		{
			name: "wrapped classified error reports its class",
			err:  fmt.Errorf("run: %w", NewNoActionsError("workflow has no actions registered")),
			want: ErrorClassNoActions,
		},
		{
			name: "unclassified error reports unknown",
			err:  errors.New("disk full"),
			want: ErrorClassUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("Expected class %q, got %q", tt.want, got)
			}
		})
	}
}
