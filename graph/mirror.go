package graph

import (
	"fmt"

	"github.com/dshills/itergraph-go/graph/fx"
)

// roles returns the graphs an edit applies to, in application order.
func (e *Engine) roles() []Role {
	if e.mode == Direct {
		return []Role{RoleSteady}
	}
	return mirrorOrder[:]
}

func (e *Engine) steady() *fx.Graph { return e.graphs[RoleSteady] }

func (e *Engine) requireNode(id fx.NodeID) error {
	if !e.steady().Has(id) {
		return e.reject(newError(ErrValidation, CodeMissingNode, fmt.Sprintf("node %v is not in the steady graph", id)))
	}
	return nil
}

// counterpart resolves a steady node in the graph for role.
func (e *Engine) counterpart(id fx.NodeID, role Role) (fx.NodeID, error) {
	c, ok := e.Lookup(id, role)
	if !ok {
		return 0, e.reject(newError(ErrCorrespondence, CodeMissingCounterpart,
			fmt.Sprintf("node %s has no %s counterpart", e.steady().Name(id), role)))
	}
	return c, nil
}

// counterparts resolves ids for every role edits apply to.
func (e *Engine) counterparts(ids ...fx.NodeID) (map[Role][]fx.NodeID, error) {
	out := make(map[Role][]fx.NodeID, 3)
	for _, id := range ids {
		if id == fx.Held {
			continue
		}
		if err := e.requireNode(id); err != nil {
			return nil, err
		}
	}
	for _, r := range e.roles() {
		mapped := make([]fx.NodeID, len(ids))
		for i, id := range ids {
			c, err := e.counterpart(id, r)
			if err != nil {
				return nil, err
			}
			mapped[i] = c
		}
		out[r] = mapped
	}
	return out, nil
}

type argSet struct {
	args   []fx.Arg
	kwargs map[string]fx.Arg
}

// translate rewrites steady node references in args and kwargs into
// references valid in every graph edits apply to.
func (e *Engine) translate(args []fx.Arg, kwargs map[string]fx.Arg) (map[Role]argSet, error) {
	out := make(map[Role]argSet, 3)
	for _, r := range e.roles() {
		var err error
		a, k := fx.MapArgs(args, kwargs, func(ref fx.NodeID) fx.Arg {
			if err != nil {
				return ref
			}
			if err = e.requireNode(ref); err != nil {
				return ref
			}
			c, cerr := e.counterpart(ref, r)
			if cerr != nil {
				err = cerr
				return ref
			}
			return c
		})
		if err != nil {
			return nil, err
		}
		out[r] = argSet{args: a, kwargs: k}
	}
	return out, nil
}

// CallFunction adds a call_function node to every graph and records the new
// nodes as counterparts. Node references in args and kwargs are steady nodes.
func (e *Engine) CallFunction(target string, args []fx.Arg, kwargs map[string]fx.Arg) (fx.NodeID, error) {
	return e.create(fx.OpCallFunction, target, target, args, kwargs)
}

// Placeholder adds a graph input to every graph.
func (e *Engine) Placeholder(name string) (fx.NodeID, error) {
	return e.create(fx.OpPlaceholder, name, name, nil, nil)
}

func (e *Engine) create(op fx.Op, name, target string, args []fx.Arg, kwargs map[string]fx.Arg) (fx.NodeID, error) {
	if err := e.usable(); err != nil {
		return 0, err
	}
	if target == "" {
		return 0, e.reject(newError(ErrValidation, CodeInvalidGraph, "node target cannot be empty"))
	}
	sets, err := e.translate(args, kwargs)
	if err != nil {
		return 0, err
	}

	ids := make(map[Role]fx.NodeID, 3)
	for _, r := range e.roles() {
		id, err := e.graphs[r].CreateNode(op, name, target, sets[r].args, sets[r].kwargs)
		if err != nil {
			return 0, e.poison(r, err)
		}
		ids[r] = id
	}
	if e.corr != nil {
		e.corr.Record(ids[RoleSteady], ids[RoleSetup], ids[RoleCleanup])
	}
	return ids[RoleSteady], nil
}

// EraseNode removes a node from every graph. It is refused while the node has
// real users in any of them.
func (e *Engine) EraseNode(id fx.NodeID) error {
	if err := e.usable(); err != nil {
		return err
	}
	mapped, err := e.counterparts(id)
	if err != nil {
		return err
	}
	if n, _ := e.steady().Node(id); n.Op == fx.OpOutput {
		return e.reject(newError(ErrValidation, CodeInvalidGraph, "the output node cannot be erased"))
	}
	for _, r := range e.roles() {
		g := e.graphs[r]
		if live := g.RealUsers(mapped[r][0]); len(live) > 0 {
			return e.reject(newError(ErrDependencyViolation, CodeLiveUsers,
				fmt.Sprintf("node %s still has %d users in the %s graph", g.Name(mapped[r][0]), len(live), r)))
		}
	}

	name := e.steady().Name(id)
	if e.corr != nil {
		e.corr.Forget(id)
	}
	for _, r := range e.roles() {
		if err := e.graphs[r].EraseNode(mapped[r][0]); err != nil {
			return e.poison(r, err)
		}
	}
	e.emit("node_erased", 0, name, nil)
	return nil
}

// InsertBefore moves node to sit immediately before anchor in every graph.
func (e *Engine) InsertBefore(anchor, node fx.NodeID) error {
	return e.MoveBefore([]fx.NodeID{node}, anchor)
}

// InsertAfter moves node to sit immediately after anchor in every graph.
func (e *Engine) InsertAfter(anchor, node fx.NodeID) error {
	return e.MoveAfter([]fx.NodeID{node}, anchor)
}

// MoveBefore places nodes, in order, immediately before anchor.
func (e *Engine) MoveBefore(nodes []fx.NodeID, anchor fx.NodeID) error {
	return e.reposition(nodes, anchor, false)
}

// MoveAfter places nodes, in order, immediately after anchor.
func (e *Engine) MoveAfter(nodes []fx.NodeID, anchor fx.NodeID) error {
	return e.reposition(nodes, anchor, true)
}

func (e *Engine) reposition(nodes []fx.NodeID, anchor fx.NodeID, after bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	for _, n := range nodes {
		if n == anchor {
			return e.reject(newError(ErrValidation, CodeInvalidAnchor,
				fmt.Sprintf("node %s cannot be moved relative to itself", e.steady().Name(n))))
		}
	}
	mapped, err := e.counterparts(append([]fx.NodeID{anchor}, nodes...)...)
	if err != nil {
		return err
	}
	for _, r := range e.roles() {
		g := e.graphs[r]
		target := mapped[r][0]
		for _, n := range mapped[r][1:] {
			if after {
				err = g.Append(target, n)
				target = n
			} else {
				err = g.Prepend(target, n)
			}
			if err != nil {
				return e.poison(r, err)
			}
		}
	}
	return nil
}

// UpdateArg replaces positional argument idx of node. A NodeID value is a
// steady node reference and is translated for each graph.
func (e *Engine) UpdateArg(node fx.NodeID, idx int, value fx.Arg) error {
	if err := e.usable(); err != nil {
		return err
	}
	mapped, err := e.counterparts(node)
	if err != nil {
		return err
	}
	sets, err := e.translate([]fx.Arg{value}, nil)
	if err != nil {
		return err
	}
	if ref, ok := value.(fx.NodeID); ok && ref == node {
		return e.reject(newError(ErrValidation, CodeInvalidGraph, "a node cannot reference itself"))
	}
	for _, r := range e.roles() {
		n, _ := e.graphs[r].Node(mapped[r][0])
		if idx < 0 || idx >= len(n.Args) {
			return e.reject(newError(ErrValidation, CodeInvalidGraph,
				fmt.Sprintf("argument index %d out of range for %s in the %s graph", idx, n.Name, r)))
		}
	}
	for _, r := range e.roles() {
		if err := e.graphs[r].UpdateArg(mapped[r][0], idx, sets[r].args[0]); err != nil {
			return e.poison(r, err)
		}
	}
	return nil
}

// SetOutput replaces the output tuple of every graph.
func (e *Engine) SetOutput(values []fx.Arg) error {
	if err := e.usable(); err != nil {
		return err
	}
	sets, err := e.translate(values, nil)
	if err != nil {
		return err
	}
	for _, r := range e.roles() {
		if _, err := e.graphs[r].SetOutput(sets[r].args); err != nil {
			return e.poison(r, err)
		}
	}
	return nil
}

// ReplaceAllUsesWith rewrites references to node into references to with in
// every graph. When filter is non-nil only the steady users it accepts, and
// their counterparts, are rewritten. The rewritten steady users are returned.
func (e *Engine) ReplaceAllUsesWith(node, with fx.NodeID, filter func(user fx.NodeID) bool) ([]fx.NodeID, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	var selected []fx.NodeID
	if err := e.requireNode(node); err != nil {
		return nil, err
	}
	for _, u := range e.steady().RealUsers(node) {
		if filter == nil || filter(u) {
			selected = append(selected, u)
		}
	}
	for _, u := range selected {
		if u == with {
			return nil, e.reject(newError(ErrValidation, CodeInvalidGraph,
				fmt.Sprintf("node %s would reference itself", e.steady().Name(with))))
		}
	}
	mapped, err := e.counterparts(append([]fx.NodeID{node, with}, selected...)...)
	if err != nil {
		return nil, err
	}

	var replaced []fx.NodeID
	for _, r := range e.roles() {
		accept := make(map[fx.NodeID]bool, len(selected))
		for _, u := range mapped[r][2:] {
			accept[u] = true
		}
		got, err := e.graphs[r].ReplaceAllUsesWith(mapped[r][0], mapped[r][1], func(u fx.NodeID) bool { return accept[u] })
		if err != nil {
			return nil, e.poison(r, err)
		}
		if r == RoleSteady {
			replaced = got
		}
	}
	return replaced, nil
}

// AddUser records user as a consumer of node in every graph without touching
// arguments. User may be fx.Held.
func (e *Engine) AddUser(node, user fx.NodeID) error {
	if err := e.usable(); err != nil {
		return err
	}
	mapped, err := e.counterparts(node, user)
	if err != nil {
		return err
	}
	for _, r := range e.roles() {
		if err := e.graphs[r].AddUser(mapped[r][0], mapped[r][1]); err != nil {
			return e.poison(r, err)
		}
	}
	return nil
}

// RemoveUser drops user from the users of node in every graph. The edge must
// exist in all of them.
func (e *Engine) RemoveUser(node, user fx.NodeID) error {
	if err := e.usable(); err != nil {
		return err
	}
	mapped, err := e.counterparts(node, user)
	if err != nil {
		return err
	}
	for _, r := range e.roles() {
		g := e.graphs[r]
		if !g.HasUser(mapped[r][0], mapped[r][1]) {
			return e.reject(newError(ErrValidation, CodeMissingUser,
				fmt.Sprintf("%v is not a user of %s in the %s graph", g.Name(mapped[r][1]), g.Name(mapped[r][0]), r)))
		}
	}
	for _, r := range e.roles() {
		if err := e.graphs[r].RemoveUser(mapped[r][0], mapped[r][1]); err != nil {
			return e.poison(r, err)
		}
	}
	return nil
}
