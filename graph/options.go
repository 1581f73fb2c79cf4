package graph

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/dshills/itergraph-go/graph/emit"
	"github.com/dshills/itergraph-go/graph/store"
	"github.com/dshills/itergraph-go/internal/logging"
)

// DefaultInputPrefix is the name prefix of placeholders created to receive
// boundary values from the previous iteration.
const DefaultInputPrefix = "cross_iter_input"

// Options holds the plain-value configuration of an Engine or Module.
type Options struct {
	// RunID labels emitted events, metrics and store records.
	// Default: a random UUID.
	RunID string

	// InputPrefix names boundary placeholders as {prefix}_{relocation}_{i}.
	// Default: DefaultInputPrefix.
	InputPrefix string
}

// Option is a functional option for configuring an Engine or Module.
//
// Example:
//
//	engine, err := graph.New(g,
//	    graph.WithLogger(logger),
//	    graph.WithEmitter(emit.NewBufferedEmitter()),
//	    graph.WithMetrics(graph.NewPrometheusMetrics(registry)),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied, so options can be
// validated and composed.
type engineConfig struct {
	opts    Options
	logger  *slog.Logger
	emitter emit.Emitter
	metrics *PrometheusMetrics
	store   store.Store[Snapshot]
}

func defaultConfig() engineConfig {
	return engineConfig{
		opts: Options{
			RunID:       uuid.NewString(),
			InputPrefix: DefaultInputPrefix,
		},
		logger:  logging.NewNop(),
		emitter: emit.NewNullEmitter(),
	}
}

func applyOptions(opts []Option) (engineConfig, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return engineConfig{}, err
		}
	}
	return cfg, nil
}

// WithOptions applies every non-zero field of o.
func WithOptions(o Options) Option {
	return func(cfg *engineConfig) error {
		if o.RunID != "" {
			cfg.opts.RunID = o.RunID
		}
		if o.InputPrefix != "" {
			cfg.opts.InputPrefix = o.InputPrefix
		}
		return nil
	}
}

// WithRunID sets the identifier attached to events, metrics and stored
// snapshots.
func WithRunID(id string) Option {
	return func(cfg *engineConfig) error {
		if id == "" {
			return newError(ErrConfiguration, CodeInvalidOption, "run ID cannot be empty")
		}
		cfg.opts.RunID = id
		return nil
	}
}

// WithInputPrefix sets the name prefix of boundary placeholders.
func WithInputPrefix(prefix string) Option {
	return func(cfg *engineConfig) error {
		if prefix == "" {
			return newError(ErrConfiguration, CodeInvalidOption, "input prefix cannot be empty")
		}
		cfg.opts.InputPrefix = prefix
		return nil
	}
}

// WithLogger sets the structured logger. Default: a logger that discards
// everything.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if logger != nil {
			cfg.logger = logger
		}
		return nil
	}
}

// WithEmitter sets the observability event sink. Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e != nil {
			cfg.emitter = e
		}
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithStore makes the Module journal a Snapshot after every dispatched
// iteration and enables Module.Checkpoint.
func WithStore(s store.Store[Snapshot]) Option {
	return func(cfg *engineConfig) error {
		cfg.store = s
		return nil
	}
}
