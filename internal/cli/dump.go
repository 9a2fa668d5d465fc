package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDumpCommand creates the dump command, which prints a graph file's
// textual form without rewriting it. Useful to check a graph file
// parses the way one expects.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <graph.yaml>",
		Short: "Print the textual form of a graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := LoadGraph(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), g.String())
			return nil
		},
	}
}
