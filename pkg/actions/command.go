package actions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/polybuild/polybuild/pkg/telemetry"
)

// maxOutputTail bounds how much subprocess output is attached to errors.
const maxOutputTail = 2048

// CommandAction runs a validated binary as a subprocess. A non-zero exit is
// reported as a FailedError carrying the tail of the combined output.
type CommandAction struct {
	// ActionName identifies this action in logs and journal steps.
	ActionName string

	// ActionPurpose is the build phase this command implements.
	ActionPurpose Purpose

	// Binary is the validated executable to run.
	Binary Binary

	// Args are the command arguments, not including the binary itself.
	Args []string

	// Dir is the working directory for the command. Empty means inherit.
	Dir string

	// Env is extra environment in KEY=VALUE form, appended to the parent
	// environment.
	Env []string
}

// NewCommandAction creates a command action that runs binary with args.
func NewCommandAction(name string, purpose Purpose, binary Binary, args []string) *CommandAction {
	return &CommandAction{
		ActionName:    name,
		ActionPurpose: purpose,
		Binary:        binary,
		Args:          args,
	}
}

// Name returns the action name.
func (a *CommandAction) Name() string {
	return a.ActionName
}

// Purpose returns the action purpose.
func (a *CommandAction) Purpose() Purpose {
	return a.ActionPurpose
}

// Description returns a human-readable summary.
func (a *CommandAction) Description() string {
	name := "<unresolved>"
	if a.Binary != nil {
		name = a.Binary.BinaryName()
	}
	return fmt.Sprintf("run %s %s", name, strings.Join(a.Args, " "))
}

// Execute runs the command and waits for it to finish. Cancelling the context
// kills the subprocess.
func (a *CommandAction) Execute(ctx context.Context) error {
	logger := telemetry.FromContext(ctx).WithAction(a.Name())

	if a.Binary == nil {
		return fmt.Errorf("action %s has no binary configured", a.Name())
	}
	binPath := a.Binary.ResolvedPath()
	if binPath == "" {
		return fmt.Errorf("binary %s has not been resolved", a.Binary.BinaryName())
	}

	cmd := exec.CommandContext(ctx, binPath, a.Args...)
	if a.Dir != "" {
		cmd.Dir = a.Dir
	}
	if len(a.Env) > 0 {
		cmd.Env = append(os.Environ(), a.Env...)
	}

	logger.Debugf("Running %s %s", binPath, strings.Join(a.Args, " "))

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithField("output", tailOutput(output)).
			Errorf("Command %s failed after %s", a.Binary.BinaryName(), duration)
		return NewFailedError(a.Name(), fmt.Errorf("%s %s: %w: %s",
			binPath, strings.Join(a.Args, " "), err, tailOutput(output)))
	}

	logger.WithField("duration", duration.String()).
		Debugf("Command %s completed", a.Binary.BinaryName())
	return nil
}

// tailOutput returns the trailing portion of subprocess output for error
// messages.
func tailOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > maxOutputTail {
		s = "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
