package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/polybuild/polybuild/pkg/journal"
	"github.com/polybuild/polybuild/pkg/policy"
	"github.com/polybuild/polybuild/pkg/telemetry"
	"github.com/polybuild/polybuild/pkg/workflow"
	"github.com/polybuild/polybuild/pkg/workflows"
)

var (
	// Global flags
	logLevel    string
	logFormat   string
	journalPath string
	policyDirs  []string
)

// app carries the subsystems every command runs against. The root command
// builds it once per invocation before any subcommand executes.
type app struct {
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	registry  *workflow.Registry
	policies  *policy.Engine
}

var cli *app

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polybuild",
		Short: "Polybuild - multi-ecosystem artifact builder",
		Long: `Polybuild builds deployable artifacts for projects across language
ecosystems through named workflows.

A workflow pairs a language with a dependency manager (python/pip,
nodejs/npm, go/mod), validates the binaries it needs before anything
runs, then executes its build actions strictly in order. Every build is
admitted by policy first and recorded in a local run journal with step
timings and an audit trail.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Context(), version)
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", defaultJournalPath(), "run journal database path (empty disables history)")
	rootCmd.PersistentFlags().StringSliceVar(&policyDirs, "policy-dir", nil, "extra admission policy files or directories")

	// Add subcommands
	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newWorkflowsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}

// initApp wires telemetry, the workflow registry, and the policy engine from
// the persistent flags.
func initApp(ctx context.Context, version string) error {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	registry := workflow.NewRegistry(logger)
	if err := workflows.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("failed to register built-in workflows: %w", err)
	}
	tel.Metrics.SetRegisteredWorkflows(float64(registry.Len()))

	policies, err := policy.NewEngine(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	if len(policyDirs) > 0 {
		if err := policies.LoadPolicies(ctx, policyDirs); err != nil {
			return err
		}
	}

	cli = &app{
		telemetry: tel,
		logger:    logger,
		registry:  registry,
		policies:  policies,
	}
	return nil
}

// openJournal opens the configured run journal, creating its directory and
// schema as needed. An empty journal path disables history and returns nil.
func openJournal(ctx context.Context) (journal.Store, error) {
	if journalPath == "" {
		return nil, nil
	}

	if dir := filepath.Dir(journalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	store, err := journal.NewSQLiteStore(journal.Config{Path: journalPath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".polybuild", "runs.db")
	}
	return filepath.Join(home, ".polybuild", "runs.db")
}
