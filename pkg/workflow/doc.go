// Package workflow provides the build orchestration core for Polybuild.
//
// A workflow is an ordered list of build actions bound to a capability (a
// language, dependency manager, and application framework triple) together
// with the binary requirements that must be satisfied before any action may
// run. This package owns registration, lookup, binary validation, and
// sequential execution; the concrete build steps live in the actions and
// workflows packages.
//
// # Architecture
//
// The package consists of five main components:
//
//  1. Registry - Maps capabilities to workflow definitions
//  2. Definition - Declares a workflow's capability, manifests, and action plan
//  3. Workflow - A configured, runnable instance built from a definition
//  4. BinaryRequirement - A named binary with its resolver and validator
//  5. WorkflowError - Classified errors for every failure mode
//
// # Usage
//
// Registering and looking up a workflow:
//
//	registry := workflow.NewRegistry(logger)
//	err := registry.Register(&workflow.Definition{
//	    Name:               "python-pip",
//	    Capability:         workflow.NewCapability("python", "pip", ""),
//	    SupportedManifests: []string{"requirements.txt"},
//	    Plan:               planPythonBuild,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	def, err := registry.Lookup(workflow.NewCapability("python", "pip", ""))
//
// Running a build:
//
//	w, err := workflow.New(def, workflow.Config{
//	    SourceDir:    "/work/src",
//	    ArtifactsDir: "/work/out",
//	    ScratchDir:   "/work/tmp",
//	    ManifestPath: "/work/src/requirements.txt",
//	    Runtime:      "python3.12",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := w.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Execution Phases
//
// Run proceeds through three strict phases:
//
//  1. Binary validation - Every requirement must resolve to a validated
//     executable; one unsatisfied requirement fails the whole run before any
//     action executes.
//  2. Plan check - A workflow whose plan produced zero actions fails rather
//     than silently succeeding.
//  3. Action loop - Actions execute sequentially in declared order; the
//     first failure stops the run.
//
// # Binary Resolution
//
// Each binary requirement produces candidate paths from its resolver, or
// from caller-supplied override paths which replace the resolver entirely.
// Candidates are tried in order against the requirement's validator; the
// first accepted candidate has its normalized path recorded on the
// requirement, where actions read it. A validator rejects a candidate by
// returning an error wrapping ErrMismatch; any other validator error aborts
// the gate immediately.
//
// # Error Classification
//
// Every failure surfaces as a WorkflowError carrying one of the classes
// registration, binary_validation, no_actions, action_failed, or unknown,
// with the workflow and action attribution the failure occurred under.
// Helpers such as IsActionFailed and ClassOf let callers branch on class
// without string matching.
package workflow
