package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/itergraph-go/graph"
	"github.com/dshills/itergraph-go/internal/presentation"
)

func newInspectCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <graph.yaml>",
		Short: "Print the setup, steady and cleanup graphs after relocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			which, _ := cmd.Flags().GetString("graph")
			roles, err := selectRoles(which)
			if err != nil {
				return err
			}
			if format != "text" && format != "mermaid" {
				return fmt.Errorf("unknown format %q (want text or mermaid)", format)
			}

			f, g, ids, err := load(args[0])
			if err != nil {
				return err
			}
			e, err := graph.New(g, graph.WithLogger(c.logger))
			if err != nil {
				return err
			}
			if err := f.Apply(e, ids); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, r := range roles {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if format == "mermaid" {
					fmt.Fprintf(out, "%%%% %s\n%s", r, presentation.Mermaid(e.Graph(r)))
					continue
				}
				fmt.Fprintf(out, "# %s\n%s", r, e.Graph(r).String())
			}
			fmt.Fprintf(out, "\n# boundary values: %d\n", e.NumExtraOutput())
			return nil
		},
	}
	cmd.Flags().String("format", "text", "Output format: text or mermaid")
	cmd.Flags().String("graph", "all", "Graph to print: all, setup, steady or cleanup")
	return cmd
}
