package graph

import (
	"fmt"

	"github.com/dshills/itergraph-go/graph/fx"
)

// MoveToNextIterationBefore relocates block, a topologically ordered list of
// steady nodes, into the next iteration and places it before anchor.
//
// After the move:
//   - setup no longer computes block and appends its external inputs to its
//     output tuple
//   - steady computes block from the previous iteration's boundary values,
//     received through new placeholders, and exports its own inputs
//   - cleanup computes the pending block from the previous iteration's
//     boundary values and then runs a complete last iteration
//
// Every block node must be a call_function node whose users are other block
// nodes, the output node or Held. The anchor must not be a placeholder or a
// member of the block. Requests violating this are rejected with
// ErrValidation and leave all graphs unchanged.
func (e *Engine) MoveToNextIterationBefore(block []fx.NodeID, anchor fx.NodeID) error {
	if err := e.usable(); err != nil {
		return err
	}
	if e.mode == Direct {
		return e.rejectMove(block, e.reject(newError(ErrFrozen, CodeFrozen, "relocation is not allowed after Freeze")))
	}
	if err := e.validateMove(block, anchor); err != nil {
		return e.rejectMove(block, e.reject(err))
	}

	setupBlock := make([]fx.NodeID, len(block))
	cleanupBlock := make([]fx.NodeID, len(block))
	for i, b := range block {
		s, err := e.counterpart(b, RoleSetup)
		if err != nil {
			return e.rejectMove(block, err)
		}
		c, err := e.counterpart(b, RoleCleanup)
		if err != nil {
			return e.rejectMove(block, err)
		}
		setupBlock[i], cleanupBlock[i] = s, c
	}
	cleanupAnchor, err := e.counterpart(anchor, RoleCleanup)
	if err != nil {
		return e.rejectMove(block, err)
	}

	setup := e.graphs[RoleSetup]
	cleanup := e.graphs[RoleCleanup]
	steady := e.graphs[RoleSteady]
	setupOut, _ := setup.Output()
	if err := checkConsumable(setup, setupBlock, setupOut); err != nil {
		return e.rejectMove(block, e.reject(err))
	}

	e.relocations++
	prefix := fmt.Sprintf("%s_%d", e.cfg.opts.InputPrefix, e.relocations)

	k, err := ExportBoundary(setup, setupBlock, true)
	if err != nil {
		return e.poison(RoleSetup, err)
	}
	for _, b := range block {
		e.corr.ForgetRole(b, RoleSetup)
	}

	clones, err := CloneBlock(cleanup, cleanupBlock, cleanupAnchor)
	if err != nil {
		return e.poison(RoleCleanup, err)
	}
	if _, err := ImportBoundary(cleanup, clones, k, prefix); err != nil {
		return e.poison(RoleCleanup, err)
	}

	steadyK, err := ExportBoundary(steady, block, false)
	if err != nil {
		return e.poison(RoleSteady, err)
	}
	if steadyK != k {
		return e.poison(RoleSteady, fmt.Errorf("setup exported %d boundary values, steady exported %d", k, steadyK))
	}
	for _, b := range block {
		if err := steady.Prepend(anchor, b); err != nil {
			return e.poison(RoleSteady, err)
		}
	}
	if _, err := ImportBoundary(steady, block, k, prefix); err != nil {
		return e.poison(RoleSteady, err)
	}

	for _, r := range []Role{RoleCleanup, RoleSteady} {
		if err := holdDead(e.graphs[r]); err != nil {
			return e.poison(r, err)
		}
	}
	e.numExtraOutput += k

	names := make([]string, len(block))
	for i, b := range block {
		names[i] = steady.Name(b)
	}
	e.cfg.logger.Info("moved block to next iteration",
		"run_id", e.cfg.opts.RunID,
		"block", names,
		"anchor", steady.Name(anchor),
		"boundary_values", k,
		"num_extra_output", e.numExtraOutput,
	)
	e.cfg.logger.Debug("extended outputs", "setup", setup.String(), "steady", steady.String())
	e.cfg.metrics.IncrementRelocations()
	e.cfg.metrics.SetBoundaryValues(e.numExtraOutput)
	e.emit("relocation_completed", e.relocations, steady.Name(anchor), map[string]interface{}{
		"block":            names,
		"boundary_values":  k,
		"num_extra_output": e.numExtraOutput,
	})
	return nil
}

func (e *Engine) validateMove(block []fx.NodeID, anchor fx.NodeID) error {
	steady := e.graphs[RoleSteady]
	if len(block) == 0 {
		return newError(ErrValidation, CodeInvalidBlock, "block is empty")
	}
	pos := make(map[fx.NodeID]int, len(block))
	for i, b := range block {
		n, ok := steady.Node(b)
		if !ok {
			return newError(ErrValidation, CodeMissingNode, fmt.Sprintf("block node %v is not in the steady graph", b))
		}
		if n.Op != fx.OpCallFunction {
			return newError(ErrValidation, CodeInvalidBlock, fmt.Sprintf("block node %s is a %s node", n.Name, n.Op))
		}
		if _, dup := pos[b]; dup {
			return newError(ErrValidation, CodeInvalidBlock, fmt.Sprintf("block lists %s twice", n.Name))
		}
		pos[b] = i
	}

	out, _ := steady.Output()
	for i, b := range block {
		for _, in := range steady.Inputs(b) {
			if j, ok := pos[in]; ok && j >= i {
				return newError(ErrValidation, CodeNotTopological,
					fmt.Sprintf("block node %s uses %s, which is listed after it", steady.Name(b), steady.Name(in)))
			}
		}
		for _, u := range steady.RealUsers(b) {
			if _, ok := pos[u]; ok || u == out {
				continue
			}
			return newError(ErrValidation, CodeInvalidBlock,
				fmt.Sprintf("block node %s is used by %s outside the block", steady.Name(b), steady.Name(u)))
		}
	}

	a, ok := steady.Node(anchor)
	switch {
	case !ok:
		return newError(ErrValidation, CodeInvalidAnchor, fmt.Sprintf("anchor %v is not in the steady graph", anchor))
	case a.Op == fx.OpPlaceholder:
		return newError(ErrValidation, CodeInvalidAnchor, fmt.Sprintf("anchor %s is a placeholder", a.Name))
	}
	if _, in := pos[anchor]; in {
		return newError(ErrValidation, CodeInvalidAnchor, fmt.Sprintf("anchor %s is part of the block", a.Name))
	}
	return nil
}

func (e *Engine) rejectMove(block []fx.NodeID, err error) error {
	code := errorCode(err)
	e.cfg.logger.Warn("relocation rejected", "run_id", e.cfg.opts.RunID, "code", code, "error", err)
	e.emit("relocation_rejected", e.relocations, "", map[string]interface{}{
		"error": err.Error(),
		"code":  code,
		"block": len(block),
	})
	return err
}

// holdDead marks every non-output node without users as held.
func holdDead(g *fx.Graph) error {
	out, _ := g.Output()
	for _, id := range g.Nodes() {
		if id == out || len(g.Users(id)) > 0 {
			continue
		}
		if err := g.AddUser(id, fx.Held); err != nil {
			return err
		}
	}
	return nil
}
