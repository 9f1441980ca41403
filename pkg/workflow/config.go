package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Build modes accepted by Config.Mode.
const (
	ModeRelease = "release"
	ModeDebug   = "debug"
)

var validate = validator.New()

// Config carries the per-build inputs a workflow operates on. A fresh Config
// and Workflow are constructed for every build; instances are not reused.
type Config struct {
	// SourceDir is the project source tree to build.
	SourceDir string `json:"source_dir" validate:"required"`

	// ArtifactsDir receives the build outputs.
	ArtifactsDir string `json:"artifacts_dir" validate:"required"`

	// ScratchDir is a working area the workflow may use freely.
	ScratchDir string `json:"scratch_dir" validate:"required"`

	// ManifestPath points at the dependency manifest, e.g. requirements.txt.
	ManifestPath string `json:"manifest_path" validate:"required"`

	// Runtime optionally narrows the language runtime, e.g. "python3.11".
	// Resolvers try it before the bare language binary.
	Runtime string `json:"runtime,omitempty"`

	// Architecture optionally selects the target architecture.
	Architecture string `json:"architecture,omitempty" validate:"omitempty,oneof=x86_64 arm64"`

	// Mode selects release or debug builds. Empty means release.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=release debug"`

	// ExecutableSearchPaths are extra directories resolvers consult before
	// the system PATH.
	ExecutableSearchPaths []string `json:"executable_search_paths,omitempty"`

	// Optimizations carries optimization settings. The engine passes them
	// through to actions uninterpreted.
	Optimizations map[string]string `json:"optimizations,omitempty"`

	// Options carries workflow-specific settings, passed through to actions
	// uninterpreted.
	Options map[string]string `json:"options,omitempty"`
}

// Validate returns an error if required fields are missing or enum fields
// carry unknown values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid workflow config: %w", err)
	}
	return nil
}

// BuildMode returns the effective build mode, defaulting to release.
func (c Config) BuildMode() string {
	if c.Mode == "" {
		return ModeRelease
	}
	return c.Mode
}

// Option returns a named option value, or the fallback when unset.
func (c Config) Option(name, fallback string) string {
	if v, ok := c.Options[name]; ok {
		return v
	}
	return fallback
}
