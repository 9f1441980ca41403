package workflow

import (
	"fmt"
)

// NoFramework is the sentinel framework value for capabilities that do not
// involve an application framework. An empty framework string is normalized
// to NoFramework on construction and registry access.
const NoFramework = "none"

// Capability identifies the build variant a workflow serves: a language, a
// dependency manager, and an optional application framework. Two workflows
// with the same capability serve the same builds.
type Capability struct {
	// Language is the source language, e.g. "python".
	Language string `json:"language" yaml:"language" validate:"required"`

	// DependencyManager is the dependency tool, e.g. "pip".
	DependencyManager string `json:"dependency_manager" yaml:"dependency_manager" validate:"required"`

	// ApplicationFramework is the framework the build targets, or NoFramework.
	ApplicationFramework string `json:"application_framework" yaml:"application_framework" validate:"required"`
}

// NewCapability creates a capability, normalizing an empty framework to
// NoFramework.
func NewCapability(language, dependencyManager, applicationFramework string) Capability {
	if applicationFramework == "" {
		applicationFramework = NoFramework
	}
	return Capability{
		Language:             language,
		DependencyManager:    dependencyManager,
		ApplicationFramework: applicationFramework,
	}
}

// String returns the capability in language/manager/framework form.
func (c Capability) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Language, c.DependencyManager, c.ApplicationFramework)
}

// Validate returns an error if the capability is incomplete.
func (c Capability) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("capability requires a language")
	}
	if c.DependencyManager == "" {
		return fmt.Errorf("capability requires a dependency manager")
	}
	if c.ApplicationFramework == "" {
		return fmt.Errorf("capability requires a framework (use %q when there is none)", NoFramework)
	}
	return nil
}

// normalized returns the capability with an empty framework replaced by
// NoFramework, so registry keys compare consistently.
func (c Capability) normalized() Capability {
	if c.ApplicationFramework == "" {
		c.ApplicationFramework = NoFramework
	}
	return c
}
