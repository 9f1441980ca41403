package policy

import (
	"time"
)

// BuiltinPolicies returns all built-in admission policies.
func BuiltinPolicies() []Policy {
	return []Policy{
		scratchIsolationPolicy(),
		distinctArtifactsPolicy(),
		runtimePinnedPolicy(),
	}
}

// scratchIsolationPolicy keeps intermediate files out of the source tree.
func scratchIsolationPolicy() Policy {
	return Policy{
		Name:        "scratch-isolation",
		Description: "Keeps the scratch directory out of the source tree so intermediate files never pollute user code",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"directories", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package polybuild.policies.scratch

import rego.v1

deny contains violation if {
	scratch := input.config.scratch_dir
	source := input.config.source_dir

	# Scratch must never be the source directory itself
	scratch == source
	violation := {
		"message": sprintf("Scratch directory must not be the source directory %s", [source]),
		"severity": "error",
		"remediation": "Set scratch_dir to a directory outside the source tree",
	}
}

deny contains violation if {
	scratch := input.config.scratch_dir
	source := input.config.source_dir

	# Scratch nested inside the source tree pollutes user code. The
	# .polybuild subdirectory is the sanctioned exception and is excluded
	# from source copies.
	startswith(scratch, sprintf("%s/", [source]))
	not startswith(scratch, sprintf("%s/.polybuild/", [source]))
	violation := {
		"message": sprintf("Scratch directory %s is inside the source tree %s", [scratch, source]),
		"severity": "error",
		"remediation": "Move scratch_dir outside the source tree or under <source>/.polybuild/",
	}
}`,
	}
}

// distinctArtifactsPolicy prevents builds from writing over their own input.
func distinctArtifactsPolicy() Policy {
	return Policy{
		Name:        "distinct-artifacts",
		Description: "Requires the artifacts directory to be distinct from the source directory",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"directories", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package polybuild.policies.artifacts

import rego.v1

deny contains violation if {
	artifacts := input.config.artifacts_dir
	source := input.config.source_dir

	# Building into the source directory overwrites user code
	artifacts == source
	violation := {
		"message": sprintf("Artifacts directory must not be the source directory %s", [source]),
		"severity": "error",
		"remediation": "Set artifacts_dir to a directory outside the source tree",
	}
}

deny contains violation if {
	artifacts := input.config.artifacts_dir
	source := input.config.source_dir

	# Artifacts nested inside the source tree get copied into themselves
	# on the next build
	startswith(artifacts, sprintf("%s/", [source]))
	violation := {
		"message": sprintf("Artifacts directory %s is inside the source tree %s", [artifacts, source]),
		"severity": "warning",
		"remediation": "Move artifacts_dir outside the source tree",
	}
}`,
	}
}

// runtimePinnedPolicy nudges builds toward an explicit runtime version.
func runtimePinnedPolicy() Policy {
	return Policy{
		Name:        "runtime-pinned",
		Description: "Warns when a build does not pin a runtime version, leaving binary validation toothless",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"runtime", "reproducibility"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package polybuild.policies.runtime

import rego.v1

deny contains violation if {
	# Runtime is omitted from the input entirely when unset
	runtime := object.get(input.config, "runtime", "")
	runtime == ""
	violation := {
		"message": sprintf("Build for workflow %s does not pin a runtime version", [input.workflow]),
		"severity": "warning",
		"remediation": "Set runtime in the build spec so binary validation can enforce a version",
	}
}`,
	}
}
