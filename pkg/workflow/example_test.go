package workflow_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/polybuild/polybuild/pkg/actions"
	"github.com/polybuild/polybuild/pkg/workflow"
)

// printAction is a minimal action used by the examples.
type printAction struct {
	name    string
	purpose actions.Purpose
}

func (a printAction) Name() string {
	return a.name
}

func (a printAction) Purpose() actions.Purpose {
	return a.purpose
}

func (a printAction) Description() string {
	return "prints its own name"
}

func (a printAction) Execute(context.Context) error {
	fmt.Println("running", a.name)
	return nil
}

// Example_registration demonstrates registering a workflow and finding it by
// capability.
func Example_registration() {
	registry := workflow.NewRegistry(zerolog.Nop())

	err := registry.Register(&workflow.Definition{
		Name:               "python-pip",
		Capability:         workflow.NewCapability("python", "pip", ""),
		SupportedManifests: []string{"requirements.txt"},
	})
	if err != nil {
		fmt.Println("register:", err)
		return
	}

	def, err := registry.Lookup(workflow.NewCapability("python", "pip", ""))
	if err != nil {
		fmt.Println("lookup:", err)
		return
	}

	fmt.Println(def.Name)
	fmt.Println(def.Capability)
	// Output:
	// python-pip
	// python/pip/none
}

// Example_binaryValidation demonstrates the pre-flight gate with an override
// path supplied by the caller.
func Example_binaryValidation() {
	def := &workflow.Definition{
		Name:       "python-pip",
		Capability: workflow.NewCapability("python", "pip", ""),
	}

	w, err := workflow.New(def, workflow.Config{
		SourceDir:    "/work/src",
		ArtifactsDir: "/work/out",
		ScratchDir:   "/work/tmp",
		ManifestPath: "/work/src/requirements.txt",
	}, zerolog.Nop())
	if err != nil {
		fmt.Println("new:", err)
		return
	}

	// Point the default requirement at a known interpreter instead of
	// searching the PATH.
	w.Binaries()["python"].OverridePaths = []string{"/custom/python3.12"}

	if err := w.ValidateBinaries(); err != nil {
		fmt.Println("gate:", err)
		return
	}

	fmt.Println(w.Binaries()["python"].ResolvedPath())
	// Output:
	// /custom/python3.12
}

// Example_run demonstrates a full workflow run with a planned action list.
func Example_run() {
	def := &workflow.Definition{
		Name:       "python-pip",
		Capability: workflow.NewCapability("python", "pip", ""),
		Plan: func(_ workflow.Config, binaries map[string]*workflow.BinaryRequirement) ([]actions.Action, error) {
			binaries["python"].OverridePaths = []string{"/custom/python3.12"}
			return []actions.Action{
				printAction{name: "copy-source", purpose: actions.PurposeCopySource},
				printAction{name: "resolve-dependencies", purpose: actions.PurposeResolveDependencies},
			}, nil
		},
	}

	w, err := workflow.New(def, workflow.Config{
		SourceDir:    "/work/src",
		ArtifactsDir: "/work/out",
		ScratchDir:   "/work/tmp",
		ManifestPath: "/work/src/requirements.txt",
	}, zerolog.Nop())
	if err != nil {
		fmt.Println("new:", err)
		return
	}

	if err := w.Run(context.Background()); err != nil {
		fmt.Println("run:", err)
		return
	}
	// Output:
	// running copy-source
	// running resolve-dependencies
}

// Example_errorClassification demonstrates branching on failure classes
// without string matching.
func Example_errorClassification() {
	err := workflow.NewActionFailedError("action failed", errors.New("exit status 1")).
		WithWorkflow("python-pip").
		WithAction("resolve-dependencies")

	fmt.Println(err)
	fmt.Println(workflow.ClassOf(err))
	fmt.Println(workflow.IsActionFailed(err))
	// Output:
	// [action_failed] action failed (workflow=python-pip, action=resolve-dependencies): exit status 1
	// action_failed
	// true
}
