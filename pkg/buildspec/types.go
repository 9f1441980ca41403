package buildspec

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/polybuild/polybuild/pkg/workflow"
)

// DefaultFileName is the build request file Polybuild looks for in a project.
const DefaultFileName = "polybuild.yaml"

var validate = validator.New()

// Spec is a declarative build request, usually loaded from a polybuild.yaml
// file at the project root.
type Spec struct {
	// Version is the build request format version. Only version 1 exists.
	Version int `yaml:"version,omitempty" validate:"omitempty,eq=1"`

	// Capability identifies the workflow to run.
	Capability CapabilitySpec `yaml:"capability" validate:"required"`

	// Runtime is the expected runtime identifier, for example python3.12.
	// Empty accepts any runtime version.
	Runtime string `yaml:"runtime,omitempty"`

	// SourceDir is the project source directory.
	SourceDir string `yaml:"source_dir" validate:"required"`

	// ArtifactsDir receives the build output.
	ArtifactsDir string `yaml:"artifacts_dir" validate:"required"`

	// ScratchDir is the intermediate work area. Defaults to
	// .polybuild/scratch under the source directory.
	ScratchDir string `yaml:"scratch_dir,omitempty"`

	// Manifest is the dependency manifest path. Relative paths are resolved
	// against the source directory.
	Manifest string `yaml:"manifest" validate:"required"`

	// ExecutableSearchPaths are directories searched for binaries before
	// the PATH.
	ExecutableSearchPaths []string `yaml:"executable_search_paths,omitempty"`

	// Architecture selects the target architecture.
	Architecture string `yaml:"architecture,omitempty" validate:"omitempty,oneof=x86_64 arm64"`

	// Mode selects release or debug output.
	Mode string `yaml:"mode,omitempty" validate:"omitempty,oneof=release debug"`

	// Optimizations are workflow-specific tuning flags, passed through
	// uninterpreted.
	Optimizations map[string]string `yaml:"optimizations,omitempty"`

	// Options are workflow-specific settings, passed through uninterpreted.
	Options map[string]string `yaml:"options,omitempty"`

	// Binaries pins logical binary names to explicit candidate paths,
	// bypassing path resolution for those requirements.
	Binaries map[string][]string `yaml:"binaries,omitempty" validate:"omitempty,dive,min=1"`
}

// CapabilitySpec identifies the workflow to run by its capability triple.
type CapabilitySpec struct {
	Language             string `yaml:"language" validate:"required"`
	DependencyManager    string `yaml:"dependency_manager" validate:"required"`
	ApplicationFramework string `yaml:"application_framework,omitempty"`
}

// Normalize applies defaults and resolves relative paths. Directory fields
// resolve against baseDir (usually the directory holding the spec file); the
// manifest resolves against the resolved source directory. An empty baseDir
// leaves relative directories as given.
func (s *Spec) Normalize(baseDir string) {
	if s.Version == 0 {
		s.Version = 1
	}

	if baseDir != "" {
		s.SourceDir = resolveAgainst(baseDir, s.SourceDir)
		s.ArtifactsDir = resolveAgainst(baseDir, s.ArtifactsDir)
		s.ScratchDir = resolveAgainst(baseDir, s.ScratchDir)
	}

	if s.ScratchDir == "" && s.SourceDir != "" {
		s.ScratchDir = filepath.Join(s.SourceDir, ".polybuild", "scratch")
	}

	if s.Manifest != "" && !filepath.IsAbs(s.Manifest) && s.SourceDir != "" {
		s.Manifest = filepath.Join(s.SourceDir, s.Manifest)
	}
}

func resolveAgainst(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate checks the build request for structural problems.
func (s *Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid build spec: %w", err)
	}
	if err := s.WorkflowCapability().Validate(); err != nil {
		return fmt.Errorf("invalid build spec: %w", err)
	}
	return nil
}

// WorkflowCapability converts the capability section, normalizing an empty
// framework to the none sentinel.
func (s *Spec) WorkflowCapability() workflow.Capability {
	return workflow.NewCapability(
		s.Capability.Language,
		s.Capability.DependencyManager,
		s.Capability.ApplicationFramework,
	)
}

// WorkflowConfig converts the request into the per-build configuration the
// workflow core consumes.
func (s *Spec) WorkflowConfig() workflow.Config {
	return workflow.Config{
		SourceDir:             s.SourceDir,
		ArtifactsDir:          s.ArtifactsDir,
		ScratchDir:            s.ScratchDir,
		ManifestPath:          s.Manifest,
		Runtime:               s.Runtime,
		Architecture:          s.Architecture,
		Mode:                  s.Mode,
		ExecutableSearchPaths: s.ExecutableSearchPaths,
		Optimizations:         s.Optimizations,
		Options:               s.Options,
	}
}

// ApplyOverrides copies pinned binary paths onto the matching requirements.
// A pin for a logical name the workflow does not declare is an error; the
// message lists the names the workflow knows.
func (s *Spec) ApplyOverrides(binaries map[string]*workflow.BinaryRequirement) error {
	for name, paths := range s.Binaries {
		req, ok := binaries[name]
		if !ok {
			known := make([]string, 0, len(binaries))
			for n := range binaries {
				known = append(known, n)
			}
			sort.Strings(known)
			return fmt.Errorf("build spec pins unknown binary %q (workflow binaries: %s)",
				name, strings.Join(known, ", "))
		}
		req.OverridePaths = append([]string(nil), paths...)
	}
	return nil
}
