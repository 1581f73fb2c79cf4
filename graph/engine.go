package graph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/itergraph-go/graph/emit"
	"github.com/dshills/itergraph-go/graph/fx"
)

// Mode controls whether edits are mirrored onto the satellite graphs.
type Mode int

const (
	// Mirroring applies every edit to setup, cleanup and steady.
	Mirroring Mode = iota

	// Direct applies edits to the steady graph only. Entered by Freeze.
	Direct
)

func (m Mode) String() string {
	if m == Direct {
		return "direct"
	}
	return "mirroring"
}

// Engine owns the setup, steady and cleanup copies of a graph and keeps them
// structurally in sync.
//
// All edits go through Engine methods. Each method validates the request
// against all three graphs before changing any of them, so a rejected edit
// leaves the graphs exactly as they were. An edit that fails after validation
// means the graphs have diverged; the engine is then poisoned and every
// further edit returns ErrInvariantViolation.
//
// Engine is not safe for concurrent use.
type Engine struct {
	graphs [3]*fx.Graph
	corr   *Correspondence
	mode   Mode

	numExtraOutput int
	relocations    int
	poisoned       error

	cfg engineConfig
}

// New builds an engine over three deep copies of g. Nodes of the copies are
// paired with each other in graph order. g itself is not retained.
func New(g *fx.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, newError(ErrValidation, CodeInvalidGraph, "graph cannot be nil")
	}
	if err := g.Lint(); err != nil {
		return nil, &EngineError{Message: err.Error(), Code: CodeInvalidGraph, Cause: err}
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{corr: newCorrespondence(), cfg: cfg}
	for _, r := range mirrorOrder {
		e.graphs[r] = g.Clone()
	}
	steady := e.graphs[RoleSteady].Nodes()
	setup := e.graphs[RoleSetup].Nodes()
	cleanup := e.graphs[RoleCleanup].Nodes()
	for i, id := range steady {
		e.corr.Record(id, setup[i], cleanup[i])
	}
	return e, nil
}

// Graph returns a read-only view of the graph for role.
func (e *Engine) Graph(role Role) fx.View {
	return e.graphs[role]
}

// Steady returns the steady graph.
func (e *Engine) Steady() fx.View { return e.graphs[RoleSteady] }

// Setup returns the setup graph.
func (e *Engine) Setup() fx.View { return e.graphs[RoleSetup] }

// Cleanup returns the cleanup graph.
func (e *Engine) Cleanup() fx.View { return e.graphs[RoleCleanup] }

// Lookup returns the counterpart of a steady node in the graph for role.
func (e *Engine) Lookup(steady fx.NodeID, role Role) (fx.NodeID, bool) {
	if e.corr == nil {
		if role == RoleSteady {
			return steady, true
		}
		return 0, false
	}
	return e.corr.Lookup(steady, role)
}

// NumExtraOutput is the number of boundary values the setup and steady graphs
// append to their output tuples.
func (e *Engine) NumExtraOutput() int { return e.numExtraOutput }

// Relocations is the number of blocks moved to the next iteration.
func (e *Engine) Relocations() int { return e.relocations }

// Mode reports whether edits are still mirrored.
func (e *Engine) Mode() Mode { return e.mode }

// RunID returns the identifier attached to events and metrics.
func (e *Engine) RunID() string { return e.cfg.opts.RunID }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.cfg.logger }

// Freeze stops mirroring. Later edits touch the steady graph only and
// relocations are refused. The correspondence map is released.
func (e *Engine) Freeze() {
	if e.mode == Direct {
		return
	}
	e.mode = Direct
	e.corr = nil
	e.cfg.logger.Info("engine frozen", "run_id", e.cfg.opts.RunID)
	e.emit("engine_frozen", 0, "", nil)
}

// Lint checks all three graphs.
func (e *Engine) Lint() error {
	var errs []error
	for _, r := range mirrorOrder {
		if err := e.graphs[r].Lint(); err != nil {
			errs = append(errs, fmt.Errorf("%s graph: %w", r, err))
		}
	}
	return errors.Join(errs...)
}

// KeepUnusedNodes marks every non-output node without users as held so that
// no later cleanup treats it as dead.
func (e *Engine) KeepUnusedNodes() error {
	steady := e.graphs[RoleSteady]
	out, _ := steady.Output()
	for _, id := range steady.Nodes() {
		if id == out || len(steady.Users(id)) > 0 {
			continue
		}
		if err := e.AddUser(id, fx.Held); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) usable() error {
	if e.poisoned != nil {
		return &EngineError{
			Message: "engine refuses further edits after: " + e.poisoned.Error(),
			Code:    CodePoisoned,
			Cause:   ErrInvariantViolation,
		}
	}
	return nil
}

// poison records a post-validation failure. The returned error is what the
// failing operation reports.
func (e *Engine) poison(role Role, err error) error {
	ee := &EngineError{
		Message: fmt.Sprintf("%s graph diverged: %v", role, err),
		Code:    CodeDesynchronized,
		Cause:   errors.Join(ErrInvariantViolation, err),
	}
	e.poisoned = ee
	e.cfg.logger.Error("graphs desynchronized", "run_id", e.cfg.opts.RunID, "graph", role.String(), "error", err)
	e.cfg.metrics.IncrementErrors(CodeDesynchronized)
	return ee
}

func (e *Engine) emit(msg string, step int, nodeID string, meta map[string]interface{}) {
	if e.cfg.emitter == nil {
		return
	}
	e.cfg.emitter.Emit(emit.Event{
		RunID:  e.cfg.opts.RunID,
		Step:   step,
		NodeID: nodeID,
		Msg:    msg,
		Meta:   meta,
	})
}

// reject counts and returns a validation error.
func (e *Engine) reject(err error) error {
	e.cfg.metrics.IncrementErrors(errorCode(err))
	return err
}
