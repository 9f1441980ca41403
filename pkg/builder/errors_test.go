package builder

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/polybuild/polybuild/pkg/policy"
)

func TestDeniedError_Error(t *testing.T) {
	err := &DeniedError{
		RunID:    "run-001",
		Workflow: "python-pip",
		Violations: []policy.Violation{
			{Policy: "scratch-isolation", Message: "scratch directory is inside the source tree"},
			{Policy: "scratch-isolation", Message: "scratch directory equals the source tree"},
			{Policy: "distinct-artifacts", Message: "artifacts directory equals the source tree"},
		},
	}

	msg := err.Error()
	if !strings.Contains(msg, "python-pip") {
		t.Errorf("Expected message to name the workflow, got: %s", msg)
	}
	if !strings.Contains(msg, "scratch-isolation, distinct-artifacts") {
		t.Errorf("Expected policies in first-seen order, got: %s", msg)
	}
	if strings.Count(msg, "scratch-isolation") != 1 {
		t.Errorf("Expected duplicate policies collapsed, got: %s", msg)
	}
}

func TestIsDenied(t *testing.T) {
	denied := &DeniedError{RunID: "run-001", Workflow: "python-pip"}

	if !IsDenied(denied) {
		t.Error("Expected IsDenied for a DeniedError")
	}
	if !IsDenied(fmt.Errorf("build: %w", denied)) {
		t.Error("Expected IsDenied for a wrapped DeniedError")
	}
	if IsDenied(errors.New("boom")) {
		t.Error("Expected IsDenied false for an unrelated error")
	}
	if IsDenied(nil) {
		t.Error("Expected IsDenied false for nil")
	}
}
