package graph

import "github.com/dshills/itergraph-go/graph/fx"

// FunctionalizeOptimizer adds virtual dependencies step -> optim -> output so
// an in-place optimizer step, whose result nothing reads, is kept alive and
// ordered after the step that prepares it. No arguments change.
func (e *Engine) FunctionalizeOptimizer(step, optim fx.NodeID) error {
	out, ok := e.steady().Output()
	if !ok {
		return e.reject(newError(ErrValidation, CodeInvalidGraph, "steady graph has no output node"))
	}
	if !e.steady().HasUser(optim, out) {
		if err := e.AddUser(optim, out); err != nil {
			return err
		}
	}
	if !e.steady().HasUser(step, optim) {
		if err := e.AddUser(step, optim); err != nil {
			return err
		}
	}
	return nil
}

// DefunctionalizeOptimizer removes the virtual dependencies added by
// FunctionalizeOptimizer. Edges that are already absent are skipped.
func (e *Engine) DefunctionalizeOptimizer(step, optim fx.NodeID) error {
	out, ok := e.steady().Output()
	if !ok {
		return e.reject(newError(ErrValidation, CodeInvalidGraph, "steady graph has no output node"))
	}
	if e.steady().HasUser(optim, out) && !references(e.steady(), out, optim) {
		if err := e.RemoveUser(optim, out); err != nil {
			return err
		}
	}
	if e.steady().HasUser(step, optim) && !references(e.steady(), optim, step) {
		if err := e.RemoveUser(step, optim); err != nil {
			return err
		}
	}
	return nil
}

// references reports whether user reads producer through an argument.
func references(g *fx.Graph, user, producer fx.NodeID) bool {
	for _, in := range g.Inputs(user) {
		if in == producer {
			return true
		}
	}
	return false
}
