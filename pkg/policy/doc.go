// Package policy provides Open Policy Agent (OPA) build admission for
// polybuild.
//
// Every build request passes through this package before any binary is
// resolved or any action runs. Policies are written in the Rego policy
// language and decide whether a build may proceed at all. A small set of
// built-in policies covers the directory layout mistakes that corrupt user
// code; operators add their own policies from files.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles policies and evaluates build requests
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Shipped guardrails for build directory layout
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Evaluating a build request:
//
//	input := &policy.Input{
//	    Workflow:   "python-pip",
//	    Capability: workflow.NewCapability("python", "pip", ""),
//	    Config:     cfg,
//	}
//
//	result, err := engine.Evaluate(ctx, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/polybuild/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. scratch-isolation - Keeps the scratch directory out of the source tree
//  2. distinct-artifacts - Requires artifacts and source to be distinct directories
//  3. runtime-pinned - Warns when a build does not pin a runtime version
//
// # Custom Policies
//
// Custom policies are written in Rego against the build request input. The
// input carries the workflow name, its capability, and the full build
// configuration with snake_case keys:
//
//	# severity: error
//	# Production builds must name an output binary.
//	package custom.policies.output
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.config.mode == "release"
//	    not input.config.options.output
//
//	    violation := {
//	        "message": "Release builds must set the output option",
//	        "severity": "error",
//	    }
//	}
//
// A policy denies a build by adding entries to its deny set. Entries may be
// plain strings or objects with message, severity, remediation, and details
// keys.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational findings, reported but never blocking
//  - warning: Findings that should be reviewed but don't block builds
//  - error: Findings that deny the build
//  - critical: Severe findings that deny the build
//
// Only error and critical findings deny. A policy that fails to evaluate
// denies the build as well; admission never fails open.
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are compiled once and reused across builds. The engine prepares
// each policy's deny query with OPA's PreparedEvalQuery at load time, and the
// loader caches parsed files until they change on disk.
package policy
