package workflow

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrMismatch marks a candidate binary that exists but does not satisfy a
// requirement, such as a runtime with the wrong major version. The validation
// gate moves on to the next candidate; any other validator error aborts the
// gate immediately.
var ErrMismatch = errors.New("binary does not satisfy requirement")

// IsMismatch reports whether err indicates a candidate mismatch.
func IsMismatch(err error) bool {
	return errors.Is(err, ErrMismatch)
}

// Resolver discovers candidate executable paths for a named binary.
type Resolver interface {
	// BinaryName returns the name of the binary this resolver locates.
	BinaryName() string

	// ExecPaths returns candidate executable paths in preference order.
	// An error or an empty result means the binary could not be located.
	ExecPaths() ([]string, error)
}

// Validator checks a candidate executable and returns the path to record.
// The returned path may differ from the input when the validator normalizes
// it, for example resolving a version-specific interpreter.
type Validator interface {
	Validate(path string) (string, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(path string) (string, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(path string) (string, error) {
	return f(path)
}

// NopValidator returns a validator that accepts any path unchanged.
func NopValidator() Validator {
	return ValidatorFunc(func(path string) (string, error) {
		return path, nil
	})
}

// RequirementProvider supplies the resolvers and validators a workflow needs.
// Resolvers and validators are paired positionally; extra entries in the
// longer list are ignored.
type RequirementProvider interface {
	// Resolvers returns one resolver per required binary.
	Resolvers() []Resolver

	// Validators returns the validator paired with each resolver.
	Validators() []Validator
}

// BinaryRequirement describes one executable a workflow needs before any
// action may run. The validation gate records the resolved path, which
// actions read through the ResolvedPath method.
type BinaryRequirement struct {
	// Name is the binary name the requirement is keyed by, e.g. "python".
	Name string

	// Resolver locates candidate paths when no overrides are set.
	Resolver Resolver

	// Validator checks candidates and normalizes the recorded path.
	Validator Validator

	// OverridePaths, when non-empty, replaces the resolver's candidates
	// entirely. The resolver is not consulted.
	OverridePaths []string

	resolvedPath string
}

// BinaryName returns the name the requirement is keyed by.
func (r *BinaryRequirement) BinaryName() string {
	return r.Name
}

// ResolvedPath returns the path recorded by the validation gate, or an empty
// string before the gate has run.
func (r *BinaryRequirement) ResolvedPath() string {
	return r.resolvedPath
}

// SetResolvedPath records a validated path. The validation gate calls this;
// tests may call it to simulate a passed gate.
func (r *BinaryRequirement) SetResolvedPath(path string) {
	r.resolvedPath = path
}

// candidates returns the paths the gate should try: the overrides when set,
// otherwise whatever the resolver finds.
func (r *BinaryRequirement) candidates() ([]string, error) {
	if len(r.OverridePaths) > 0 {
		return r.OverridePaths, nil
	}
	if r.Resolver == nil {
		return nil, fmt.Errorf("binary %s has no resolver and no override paths", r.Name)
	}
	return r.Resolver.ExecPaths()
}

// PathResolver locates binaries on the system PATH and in additional search
// directories. The runtime name is tried before the bare binary name, so
// "python3.11" wins over "python" when both exist.
type PathResolver struct {
	// Binary is the name to search for.
	Binary string

	// Runtime is a more specific executable name tried first, e.g.
	// "python3.11". Empty means only the binary name is searched.
	Runtime string

	// SearchPaths are directories checked before the system PATH.
	SearchPaths []string
}

// NewPathResolver creates a resolver for the named binary.
func NewPathResolver(binary, runtime string, searchPaths ...string) *PathResolver {
	return &PathResolver{
		Binary:      binary,
		Runtime:     runtime,
		SearchPaths: searchPaths,
	}
}

// BinaryName returns the binary this resolver locates.
func (r *PathResolver) BinaryName() string {
	return r.Binary
}

// ExecPaths returns candidate executable paths in preference order.
func (r *PathResolver) ExecPaths() ([]string, error) {
	names := make([]string, 0, 2)
	if r.Runtime != "" && r.Runtime != r.Binary {
		names = append(names, r.Runtime)
	}
	names = append(names, r.Binary)

	var paths []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, name := range names {
		// Explicit search directories win over the system PATH
		for _, dir := range r.SearchPaths {
			candidate := filepath.Join(dir, name)
			if isExecutable(candidate) {
				add(candidate)
			}
		}

		if found, err := exec.LookPath(name); err == nil {
			if abs, err := filepath.Abs(found); err == nil {
				found = abs
			}
			add(found)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no executable found for binary %s", r.Binary)
	}
	return paths, nil
}

// isExecutable reports whether path is an existing executable file.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
