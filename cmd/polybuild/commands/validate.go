package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polybuild/polybuild/pkg/buildspec"
	"github.com/polybuild/polybuild/pkg/policy"
	"github.com/polybuild/polybuild/pkg/workflow"
)

func newValidateCommand() *cobra.Command {
	var (
		specPath    string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "validate [source-dir]",
		Short: "Validate a build request without building",
		Long: `Validate a build request end to end without executing it.

Checks that the build spec parses and is complete, that a workflow is
registered for its capability, that the manifest is one the workflow
supports, that pinned binaries are names the workflow declares, and
that admission policy would allow the build.`,
		Example: `  # Validate ./polybuild.yaml
  polybuild validate

  # Validate a project elsewhere
  polybuild validate ./svc

  # Validate an explicit spec file against the production policies
  polybuild validate --spec ./deploy/polybuild.yaml --environment production`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source := "."
			if len(args) == 1 {
				source = args[0]
			}
			path := specPath
			if path == "" {
				path = filepath.Join(source, buildspec.DefaultFileName)
			}

			spec, err := buildspec.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("spec:      ok (%s)\n", path)

			def, err := cli.registry.Lookup(spec.WorkflowCapability())
			if err != nil {
				return err
			}
			fmt.Printf("workflow:  %s (%s)\n", def.Name, def.Capability)

			cfg := spec.WorkflowConfig()
			w, err := workflow.New(def, cfg, cli.logger)
			if err != nil {
				return err
			}

			if err := spec.ApplyOverrides(w.Binaries()); err != nil {
				return err
			}
			fmt.Printf("binaries:  %d requirement(s), pins ok\n", len(w.Binaries()))

			manifest := filepath.Base(cfg.ManifestPath)
			if !w.IsSupported() {
				return fmt.Errorf("workflow %s does not support manifest %s (supported: %s)",
					def.Name, manifest, strings.Join(def.SupportedManifests, ", "))
			}
			fmt.Printf("manifest:  %s supported\n", manifest)

			admission, err := cli.policies.Evaluate(ctx, &policy.Input{
				Workflow:   def.Name,
				Capability: def.Capability,
				Config:     cfg,
				Context: &policy.Context{
					User:        os.Getenv("USER"),
					Environment: environment,
					Timestamp:   time.Now(),
					DryRun:      true,
				},
			})
			if err != nil {
				return err
			}
			for _, warning := range admission.Warnings {
				fmt.Printf("policy:    warning: %s: %s\n", warning.Policy, warning.Message)
			}
			if !admission.Allowed {
				for _, violation := range admission.Violations {
					fmt.Printf("policy:    denied: %s: %s\n", violation.Policy, violation.Message)
				}
				return fmt.Errorf("admission policy would deny this build")
			}
			fmt.Printf("policy:    admitted (%d policies evaluated)\n", len(admission.EvaluatedPolicies))

			return nil
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "build spec file (default <source-dir>/polybuild.yaml)")
	cmd.Flags().StringVar(&environment, "environment", "", "deployment environment for the policy context")

	return cmd
}
