package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/itergraph-go/graph/fx"
)

// Executor runs one graph with positional arguments and returns the values of
// its output tuple. fx.Interpreter is the stock implementation.
type Executor interface {
	Execute(ctx context.Context, g fx.View, args []any) ([]any, error)
}

// Module dispatches the calls of an iterative loop to the setup, steady and
// cleanup graphs of an Engine and carries boundary values between calls.
//
// Call Setup with the number of iterations before the first Forward. Call i
// (1-based) runs the setup graph when i == 1, the cleanup graph when i == N
// and the steady graph otherwise; with N == 1 only the setup graph runs.
//
// Module is not safe for concurrent use; callers must serialize Forward.
type Module struct {
	engine *Engine
	exec   Executor
	cfg    engineConfig

	iter     int
	maxIters int
	previous []any
}

// NewModule builds an Engine over g and wraps it in a dispatcher.
func NewModule(g *fx.Graph, exec Executor, opts ...Option) (*Module, error) {
	if exec == nil {
		return nil, newError(ErrConfiguration, CodeInvalidOption, "executor cannot be nil")
	}
	e, err := New(g, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{engine: e, exec: exec, cfg: e.cfg}, nil
}

// Engine returns the engine whose graphs the module runs. Relocations and
// other edits go through it.
func (m *Module) Engine() *Engine { return m.engine }

// Setup configures the number of iterations and resets the iteration counter
// and any retained boundary values.
func (m *Module) Setup(maxIters int) error {
	if maxIters <= 0 {
		err := newError(ErrConfiguration, CodeInvalidMaxIters,
			fmt.Sprintf("max iterations must be positive, got %d", maxIters))
		m.cfg.metrics.IncrementErrors(err.Code)
		return err
	}
	m.maxIters = maxIters
	m.iter = 0
	m.previous = nil
	if maxIters == 1 && m.engine.NumExtraOutput() > 0 {
		m.cfg.logger.Warn("single iteration runs the setup graph only; relocated work is skipped",
			"run_id", m.cfg.opts.RunID, "num_extra_output", m.engine.NumExtraOutput())
	}
	return nil
}

// Iteration returns the number of completed calls since Setup.
func (m *Module) Iteration() int { return m.iter }

// MaxIterations returns the configured bound, or 0 before Setup.
func (m *Module) MaxIterations() int { return m.maxIters }

// RoleFor returns the graph that call i (1-based) of n runs.
func RoleFor(i, n int) Role {
	switch {
	case i == 1:
		return RoleSetup
	case i == n:
		return RoleCleanup
	default:
		return RoleSteady
	}
}

// Forward runs the next iteration with args.
//
// When the engine has relocated blocks, the boundary values retained from the
// previous call are appended to args and the trailing boundary values of the
// result are retained for the next call. The remaining outputs are returned;
// a single output is returned as a bare value, several as []any.
//
// A failed execution does not consume the iteration.
func (m *Module) Forward(ctx context.Context, args ...any) (any, error) {
	if m.maxIters == 0 {
		err := newError(ErrConfiguration, CodeNotConfigured, "Setup must be called before Forward")
		m.cfg.metrics.IncrementErrors(err.Code)
		return nil, err
	}
	if m.iter >= m.maxIters {
		err := newError(ErrConfiguration, CodeIterationBound,
			fmt.Sprintf("all %d iterations have run; call Setup to start over", m.maxIters))
		m.cfg.metrics.IncrementErrors(err.Code)
		return nil, err
	}

	i := m.iter + 1
	role := RoleFor(i, m.maxIters)
	k := m.engine.NumExtraOutput()
	callArgs := args
	if k > 0 {
		callArgs = append(append(make([]any, 0, len(args)+len(m.previous)), args...), m.previous...)
	}
	m.cfg.logger.Debug("dispatching iteration", "run_id", m.cfg.opts.RunID, "iteration", i, "graph", role.String())

	start := time.Now()
	out, err := m.exec.Execute(ctx, m.engine.Graph(role), callArgs)
	latency := time.Since(start)
	if err != nil {
		m.cfg.metrics.RecordDispatch(role.String(), latency, "error")
		m.cfg.metrics.IncrementErrors(CodeExecutionFailed)
		m.engine.emit("dispatch_failed", i, role.String(), map[string]interface{}{"error": err.Error()})
		return nil, &EngineError{
			Message: fmt.Sprintf("iteration %d (%s graph): %v", i, role, err),
			Code:    CodeExecutionFailed,
			Cause:   err,
		}
	}

	if k > 0 && role != RoleCleanup {
		n := len(out) - k
		if n < 0 {
			err := &EngineError{
				Message: fmt.Sprintf("%s graph returned %d values, fewer than the %d boundary values", role, len(out), k),
				Code:    CodeDesynchronized,
				Cause:   ErrInvariantViolation,
			}
			m.cfg.metrics.IncrementErrors(err.Code)
			return nil, err
		}
		m.previous = append([]any(nil), out[n:]...)
		out = out[:n]
	} else {
		m.previous = nil
	}
	m.iter = i

	m.cfg.metrics.RecordDispatch(role.String(), latency, "success")
	m.engine.emit("dispatch_"+role.String(), i, role.String(), map[string]interface{}{
		"duration_ms":     latency.Milliseconds(),
		"boundary_values": len(m.previous),
	})
	m.journal(ctx, i, role)

	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// journal records the iteration in the configured store. Store failures are
// logged and do not fail the iteration, which has already run.
func (m *Module) journal(ctx context.Context, i int, role Role) {
	if m.cfg.store == nil {
		return
	}
	snap := m.snapshot(false)
	snap.Graph = role.String()
	if err := m.cfg.store.SaveStep(ctx, m.cfg.opts.RunID, i, role.String(), snap); err != nil {
		m.cfg.logger.Warn("failed to journal iteration", "run_id", m.cfg.opts.RunID, "iteration", i, "error", err)
	}
}

func (m *Module) snapshot(listings bool) Snapshot {
	snap := m.engine.Snapshot()
	if !listings {
		snap.Listings = nil
	}
	snap.Iteration = m.iter
	snap.MaxIterations = m.maxIters
	snap.Boundary = len(m.previous)
	return snap
}

// Checkpoint stores a Snapshot, including the three graph listings, under
// cpID. It requires a store configured with WithStore.
func (m *Module) Checkpoint(ctx context.Context, cpID string) error {
	if m.cfg.store == nil {
		return newError(ErrConfiguration, CodeInvalidOption, "no store configured")
	}
	if cpID == "" {
		return newError(ErrConfiguration, CodeInvalidOption, "checkpoint ID cannot be empty")
	}
	if err := m.cfg.store.SaveCheckpoint(ctx, cpID, m.snapshot(true), m.iter); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cpID, err)
	}
	m.engine.emit("checkpoint_saved", m.iter, "", map[string]interface{}{"checkpoint_id": cpID})
	return nil
}

// PrintAllGraphs logs the listing of the setup, steady and cleanup graphs.
func (m *Module) PrintAllGraphs() {
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		m.cfg.logger.Info(r.String()+" graph", "run_id", m.cfg.opts.RunID, "graph", m.engine.Graph(r).String())
	}
}
