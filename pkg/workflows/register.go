package workflows

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/polybuild/polybuild/pkg/workflow"
)

// RegisterBuiltins registers every built-in workflow definition on the
// registry. Registration is explicit; importing this package alone registers
// nothing.
func RegisterBuiltins(registry *workflow.Registry) error {
	for _, def := range []*workflow.Definition{
		PythonPip(),
		NodejsNpm(),
		GoMod(),
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// probeOutput runs a candidate binary and returns its trimmed stdout. A probe
// failure reads as a runtime mismatch: a binary that cannot report its
// version cannot satisfy a requirement.
func probeOutput(path string, args ...string) (string, error) {
	out, err := exec.Command(path, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, workflow.ErrMismatch)
	}
	return strings.TrimSpace(string(out)), nil
}
