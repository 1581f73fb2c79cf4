package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/dshills/itergraph-go/graph"
	"github.com/dshills/itergraph-go/graph/emit"
	"github.com/dshills/itergraph-go/graph/fx"
	"github.com/dshills/itergraph-go/graph/store"
	"github.com/dshills/itergraph-go/internal/graphfile"
)

// journal is a store the run command can close.
type journal interface {
	store.Store[graph.Snapshot]
	Close() error
}

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <graph.yaml>",
		Short: "Run the graph file for N iterations with the builtin functions",
		Long: `run relocates the blocks listed in the graph file and then calls the
resulting module once per iteration. Each --args flag supplies the inputs of
one call as comma-separated values; without flags the file's feed is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args[0])
		},
	}
	cmd.Flags().Int("iterations", 0, "Number of iterations (default: the file's iterations)")
	cmd.Flags().StringArray("args", nil, "Inputs of one call, e.g. --args 1,2 (repeat per call; a single flag is reused)")
	cmd.Flags().String("run-id", "", "Run identifier (default: random UUID)")
	cmd.Flags().String("events", "none", "Print engine events to stderr: none, text or json")
	cmd.Flags().String("sqlite", "", "Journal iterations to this SQLite database file")
	cmd.Flags().String("mysql-dsn", os.Getenv("ITERGRAPH_MYSQL_DSN"), "Journal iterations to MySQL (default: $ITERGRAPH_MYSQL_DSN)")
	cmd.Flags().String("redis", os.Getenv("ITERGRAPH_REDIS_ADDR"), "Journal iterations to the Redis server at host:port (default: $ITERGRAPH_REDIS_ADDR)")
	cmd.Flags().String("checkpoint", "", "Store a checkpoint with this ID after the last iteration")
	cmd.Flags().Bool("metrics", false, "Print Prometheus metrics after the run")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	f, g, ids, err := load(path)
	if err != nil {
		return err
	}

	opts := []graph.Option{graph.WithLogger(c.logger)}
	if id, _ := flags.GetString("run-id"); id != "" {
		opts = append(opts, graph.WithRunID(id))
	}

	events, _ := flags.GetString("events")
	switch events {
	case "none":
	case "text", "json":
		opts = append(opts, graph.WithEmitter(emit.NewLogEmitter(cmd.ErrOrStderr(), events == "json")))
	default:
		return fmt.Errorf("unknown events mode %q (want none, text or json)", events)
	}

	registry := prometheus.NewRegistry()
	opts = append(opts, graph.WithMetrics(graph.NewPrometheusMetrics(registry)))

	sqlitePath, _ := flags.GetString("sqlite")
	mysqlDSN, _ := flags.GetString("mysql-dsn")
	redisAddr, _ := flags.GetString("redis")
	j, err := openJournal(ctx, sqlitePath, mysqlDSN, redisAddr)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		opts = append(opts, graph.WithStore(j))
	}

	mod, err := graph.NewModule(g, fx.NewInterpreter(fx.Builtins()), opts...)
	if err != nil {
		return err
	}
	if err := f.Apply(mod.Engine(), ids); err != nil {
		return err
	}

	n, _ := flags.GetInt("iterations")
	if n == 0 {
		n = f.Iterations
	}
	if n == 0 {
		n = len(f.Feed)
	}
	if err := mod.Setup(n); err != nil {
		return err
	}

	feed, _ := flags.GetStringArray("args")
	for i := 0; i < n; i++ {
		callArgs, err := callArgs(f, feed, i)
		if err != nil {
			return err
		}
		result, err := mod.Forward(ctx, callArgs...)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "iteration %d (%s): %v\n", i+1, graph.RoleFor(i+1, n), result)
	}

	if cp, _ := flags.GetString("checkpoint"); cp != "" {
		if err := mod.Checkpoint(ctx, cp); err != nil {
			return err
		}
		fmt.Fprintf(out, "checkpoint %s saved\n", cp)
	}
	if show, _ := flags.GetBool("metrics"); show {
		return writeMetrics(out, registry)
	}
	return nil
}

func callArgs(f *graphfile.File, feed []string, i int) ([]any, error) {
	switch {
	case len(feed) == 1:
		return graphfile.ParseValues(feed[0])
	case i < len(feed):
		return graphfile.ParseValues(feed[i])
	case len(feed) > 0:
		return nil, fmt.Errorf("got %d --args flags, need one per iteration or a single one", len(feed))
	default:
		return f.Args(i)
	}
}

func openJournal(ctx context.Context, sqlitePath, mysqlDSN, redisAddr string) (journal, error) {
	set := 0
	for _, v := range []string{sqlitePath, mysqlDSN, redisAddr} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("--sqlite, --mysql-dsn and --redis are mutually exclusive")
	}

	switch {
	case sqlitePath != "":
		st, err := store.NewSQLiteStore[graph.Snapshot](sqlitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case mysqlDSN != "":
		st, err := store.NewMySQLStore[graph.Snapshot](mysqlDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case redisAddr != "":
		st := store.NewRedisStore[graph.Snapshot](redisAddr, os.Getenv("ITERGRAPH_REDIS_PASSWORD"), 0)
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("redis %s: %w", redisAddr, err)
		}
		return st, nil
	default:
		return nil, nil
	}
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
