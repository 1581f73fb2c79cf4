package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/itergraph-go/graph"
	"github.com/dshills/itergraph-go/graph/fx"
	"github.com/dshills/itergraph-go/internal/graphfile"
	"github.com/dshills/itergraph-go/internal/logging"
)

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries state shared by subcommands.
type cli struct {
	logger *slog.Logger
	logOut io.Writer
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	c := &cli{logger: logging.NewNop(), logOut: logOut}

	root := &cobra.Command{
		Use:   "itergraph",
		Short: "Move blocks of a dataflow graph into the next loop iteration",
		Long: `itergraph loads a graph file, relocates the listed blocks so their work
overlaps the next iteration, and prints or runs the resulting setup, steady
and cleanup graphs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("log-level")
			level, err := logging.ParseLevel(name)
			if err != nil {
				return err
			}
			jsonLogs, _ := cmd.Flags().GetBool("log-json")
			c.logger = logging.NewWriter(c.logOut, level, jsonLogs)
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	root.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	root.AddCommand(newInspectCmd(c), newRunCmd(c), newVersionCmd())
	return root
}

// load parses path and builds its graph.
func load(path string) (*graphfile.File, *fx.Graph, map[string]fx.NodeID, error) {
	f, err := graphfile.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	g, ids, err := f.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return f, g, ids, nil
}

// selectRoles maps the --graph flag to roles in display order.
func selectRoles(name string) ([]graph.Role, error) {
	switch name {
	case "", "all":
		return []graph.Role{graph.RoleSetup, graph.RoleSteady, graph.RoleCleanup}, nil
	case "setup":
		return []graph.Role{graph.RoleSetup}, nil
	case "steady":
		return []graph.Role{graph.RoleSteady}, nil
	case "cleanup":
		return []graph.Role{graph.RoleCleanup}, nil
	default:
		return nil, fmt.Errorf("unknown graph %q (want all, setup, steady or cleanup)", name)
	}
}
