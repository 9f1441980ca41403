package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polybuild/polybuild/pkg/builder"
	"github.com/polybuild/polybuild/pkg/buildspec"
	"github.com/polybuild/polybuild/pkg/telemetry"
	"github.com/polybuild/polybuild/pkg/workflow"
)

func newBuildCommand() *cobra.Command {
	var (
		specPath     string
		language     string
		depManager   string
		framework    string
		runtimeName  string
		manifest     string
		artifactsDir string
		scratchDir   string
		architecture string
		mode         string
		searchPaths  []string
		pins         []string
		environment  string
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "build [source-dir]",
		Short: "Build a project's deployable artifact",
		Long: `Build a project into a deployable artifact directory.

The workflow is selected from an explicit capability (--language plus
--dep-manager) or detected from the manifest base name. Configuration
comes from a polybuild.yaml build spec when one is present, and
individual flags override it.

Every build is admitted by policy before it runs and recorded in the
run journal with its step timings and audit trail.`,
		Example: `  # Build the project in the current directory (uses ./polybuild.yaml)
  polybuild build

  # Build a Python project without a build spec
  polybuild build ./svc --manifest ./svc/requirements.txt --artifacts ./out

  # Select the workflow explicitly and pin the interpreter
  polybuild build ./svc --language python --dep-manager pip \
    --runtime python3.12 --pin python=/opt/python3.12/bin/python3 --artifacts ./out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source := "."
			if len(args) == 1 {
				source = args[0]
			}

			var spec *buildspec.Spec
			if specPath != "" {
				loaded, err := buildspec.Load(specPath)
				if err != nil {
					return err
				}
				spec = loaded
			} else if candidate := filepath.Join(source, buildspec.DefaultFileName); fileExists(candidate) {
				loaded, err := buildspec.Load(candidate)
				if err != nil {
					return err
				}
				spec = loaded
			}

			var (
				capability workflow.Capability
				cfg        workflow.Config
				overrides  map[string][]string
			)
			if spec != nil {
				capability = spec.WorkflowCapability()
				cfg = spec.WorkflowConfig()
				if len(spec.Binaries) > 0 {
					overrides = make(map[string][]string, len(spec.Binaries))
					for name, paths := range spec.Binaries {
						overrides[name] = paths
					}
				}
			} else {
				abs, err := filepath.Abs(source)
				if err != nil {
					return err
				}
				cfg.SourceDir = abs
			}

			flags := cmd.Flags()
			if flags.Changed("language") {
				capability.Language = language
			}
			if flags.Changed("dep-manager") {
				capability.DependencyManager = depManager
			}
			if flags.Changed("framework") {
				capability.ApplicationFramework = framework
			}
			if flags.Changed("runtime") {
				cfg.Runtime = runtimeName
			}
			if flags.Changed("arch") {
				cfg.Architecture = architecture
			}
			if flags.Changed("mode") {
				cfg.Mode = mode
			}
			if flags.Changed("manifest") {
				abs, err := filepath.Abs(manifest)
				if err != nil {
					return err
				}
				cfg.ManifestPath = abs
			}
			if flags.Changed("artifacts") {
				abs, err := filepath.Abs(artifactsDir)
				if err != nil {
					return err
				}
				cfg.ArtifactsDir = abs
			}
			if flags.Changed("scratch") {
				abs, err := filepath.Abs(scratchDir)
				if err != nil {
					return err
				}
				cfg.ScratchDir = abs
			}
			cfg.ExecutableSearchPaths = append(cfg.ExecutableSearchPaths, searchPaths...)

			if cfg.ScratchDir == "" {
				cfg.ScratchDir = filepath.Join(cfg.SourceDir, ".polybuild", "scratch")
			}
			if cfg.ArtifactsDir == "" {
				return fmt.Errorf("artifacts directory is required: pass --artifacts or provide %s", buildspec.DefaultFileName)
			}
			if cfg.ManifestPath == "" {
				return fmt.Errorf("manifest path is required: pass --manifest or provide %s", buildspec.DefaultFileName)
			}

			for _, pin := range pins {
				name, path, ok := strings.Cut(pin, "=")
				if !ok || name == "" || path == "" {
					return fmt.Errorf("invalid --pin %q, expected name=path", pin)
				}
				if overrides == nil {
					overrides = make(map[string][]string)
				}
				overrides[name] = append(overrides[name], path)
			}

			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			if !quiet {
				cli.telemetry.Events.Subscribe(printProgress, telemetry.FilterByType(
					telemetry.EventTypeActionStarted,
					telemetry.EventTypeActionCompleted,
					telemetry.EventTypeActionFailed,
				))
			}

			b, err := builder.New(builder.Options{
				Registry: cli.registry,
				Journal:  store,
				Policies: cli.policies,
				Metrics:  cli.telemetry.Metrics,
				Tracer:   cli.telemetry.Tracer,
				Events:   cli.telemetry.Events,
				Logger:   cli.logger,
			})
			if err != nil {
				return err
			}

			result, err := b.Build(ctx, builder.Request{
				Capability:  capability,
				Config:      cfg,
				Overrides:   overrides,
				User:        os.Getenv("USER"),
				Environment: environment,
			})
			return reportOutcome(result, err)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "build spec file (default <source-dir>/polybuild.yaml)")
	cmd.Flags().StringVar(&language, "language", "", "workflow language, e.g. python")
	cmd.Flags().StringVar(&depManager, "dep-manager", "", "workflow dependency manager, e.g. pip")
	cmd.Flags().StringVar(&framework, "framework", "", "application framework refinement")
	cmd.Flags().StringVar(&runtimeName, "runtime", "", "language runtime, e.g. python3.12")
	cmd.Flags().StringVar(&manifest, "manifest", "", "dependency manifest path")
	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "artifact output directory")
	cmd.Flags().StringVar(&scratchDir, "scratch", "", "scratch working directory")
	cmd.Flags().StringVar(&architecture, "arch", "", "target architecture (x86_64, arm64)")
	cmd.Flags().StringVar(&mode, "mode", "", "build mode (release, debug)")
	cmd.Flags().StringSliceVar(&searchPaths, "search-path", nil, "extra executable search directories")
	cmd.Flags().StringArrayVar(&pins, "pin", nil, "pin a binary to a path (name=path, repeatable)")
	cmd.Flags().StringVar(&environment, "environment", "", "deployment environment for the policy context")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-action progress output")

	return cmd
}

// printProgress writes one console line per action lifecycle event.
func printProgress(event telemetry.Event) {
	fmt.Println("  " + event.Message)
}

// reportOutcome prints the terminal state of a build run. The returned error
// still carries the failure classification for the exit status.
func reportOutcome(result *builder.Result, err error) error {
	if err == nil {
		fmt.Printf("Build succeeded in %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  run:       %s\n", result.RunID)
		fmt.Printf("  workflow:  %s\n", result.Workflow)
		fmt.Printf("  artifacts: %s\n", result.ArtifactsDir)
		for _, warning := range result.Warnings {
			fmt.Printf("  warning:   %s: %s\n", warning.Policy, warning.Message)
		}
		return nil
	}

	var denied *builder.DeniedError
	if errors.As(err, &denied) {
		fmt.Printf("Build denied by policy (run %s):\n", denied.RunID)
		for _, violation := range denied.Violations {
			fmt.Printf("  %s: %s\n", violation.Policy, violation.Message)
			if violation.Remediation != "" {
				fmt.Printf("    fix: %s\n", violation.Remediation)
			}
		}
		return err
	}

	if result != nil {
		fmt.Printf("Build failed (run %s, class %s)\n", result.RunID, workflow.ClassOf(err))
	}
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
