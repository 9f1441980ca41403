package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/polybuild/polybuild/pkg/journal"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded build runs",
		Long: `Inspect the build journal.

Every build attempt is recorded, including runs denied by admission
policy, together with its step timings and event trail.`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	var (
		workflowName string
		status       string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, most recent first",
		Example: `  # The last 20 runs
  polybuild runs list

  # Failed python-pip runs
  polybuild runs list --workflow python-pip --status failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (set --journal)")
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, journal.RunFilter{
				Workflow: workflowName,
				Status:   journal.RunStatus(status),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tWORKFLOW\tSTATUS\tSTARTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					run.ID,
					run.Workflow,
					run.Status,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Duration().Round(time.Millisecond),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&workflowName, "workflow", "", "only runs of this workflow")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (succeeded, failed, denied, running)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list, non-positive lists all")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its step timings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (set --journal)")
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run %s\n", run.ID)
			fmt.Printf("  workflow:  %s (%s)\n", run.Workflow, run.Capability)
			fmt.Printf("  status:    %s\n", run.Status)
			fmt.Printf("  source:    %s\n", run.SourceDir)
			fmt.Printf("  artifacts: %s\n", run.ArtifactsDir)
			if run.Runtime != "" {
				fmt.Printf("  runtime:   %s\n", run.Runtime)
			}
			fmt.Printf("  started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.CompletedAt != nil {
				fmt.Printf("  completed: %s (%s)\n",
					run.CompletedAt.Local().Format(time.RFC3339),
					run.Duration().Round(time.Millisecond),
				)
			}
			if run.ErrorClass != "" {
				fmt.Printf("  class:     %s\n", run.ErrorClass)
			}
			if run.ErrorAction != "" {
				fmt.Printf("  action:    %s\n", run.ErrorAction)
			}
			if run.Error != nil {
				fmt.Printf("  error:     %s\n", *run.Error)
			}

			steps, err := store.ListSteps(ctx, run.ID)
			if err != nil {
				return err
			}
			if len(steps) > 0 {
				fmt.Println("\nSteps:")
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "  #\tNAME\tPURPOSE\tSTATUS\tDURATION")
				for _, step := range steps {
					duration := "-"
					if step.CompletedAt != nil {
						duration = step.CompletedAt.Sub(step.StartedAt).Round(time.Millisecond).String()
					}
					fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
						step.Index, step.Name, step.Purpose, step.Status, duration)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if showEvents {
				events, err := store.ListEvents(ctx, run.ID, 0)
				if err != nil {
					return err
				}
				if len(events) > 0 {
					fmt.Println("\nEvents:")
					for _, event := range events {
						fmt.Printf("  %s  %-7s %s  %s\n",
							event.Timestamp.Local().Format("15:04:05.000"),
							event.Type.Severity(),
							event.Type,
							event.Message,
						)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showEvents, "events", false, "include the event trail")

	return cmd
}
