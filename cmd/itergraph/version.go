package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridden at build time with
// -ldflags "-X main.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of itergraph",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "itergraph version %s\n", Version)
		},
	}
}
