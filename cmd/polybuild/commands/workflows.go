package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWorkflowsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows",
		Long: `List the registered workflow definitions.

Each workflow is addressed by its capability: language, dependency
manager, and an optional application framework. Workflows also declare
the manifest base names they support, which drives workflow detection
when a build request names no capability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCAPABILITY\tMANIFESTS")
			for _, def := range cli.registry.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					def.Name, def.Capability, strings.Join(def.SupportedManifests, ", "))
			}
			return w.Flush()
		},
	}

	return cmd
}
