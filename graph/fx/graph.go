package fx

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// View is the read-only surface of a Graph. The iteration engine hands out
// views so callers can inspect or execute the setup, steady and cleanup graphs
// without bypassing synchronized mutation.
type View interface {
	Len() int
	Nodes() []NodeID
	Node(id NodeID) (Node, bool)
	Has(id NodeID) bool
	Users(id NodeID) []NodeID
	RealUsers(id NodeID) []NodeID
	HasUser(id, user NodeID) bool
	Inputs(id NodeID) []NodeID
	Output() (NodeID, bool)
	Placeholders() []NodeID
	Index(id NodeID) int
	Name(id NodeID) string
	Lint() error
	String() string
}

// Graph is an ordered arena of nodes.
//
// Invariants maintained by every mutating method:
//   - each node appears exactly once in the order
//   - the users table mirrors argument references; a user may additionally be
//     recorded without an argument reference (a virtual edge) or be Held
//   - at most one output node exists and it is kept last
//
// Argument-before-use ordering is not enforced while editing; Lint reports it.
// Graph is not safe for concurrent use.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
	users map[NodeID][]NodeID
	names map[string]bool
	next  NodeID
}

var _ View = (*Graph)(nil)

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		users: make(map[NodeID][]NodeID),
		names: make(map[string]bool),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Nodes returns the node handles in graph order.
func (g *Graph) Nodes() []NodeID {
	return append([]NodeID(nil), g.order...)
}

// Node returns a copy of the node with the given handle.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// Has reports whether id names a node of g.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Users returns the ordered users of id, including Held markers.
func (g *Graph) Users(id NodeID) []NodeID {
	return append([]NodeID(nil), g.users[id]...)
}

// RealUsers returns the users of id excluding Held markers.
func (g *Graph) RealUsers(id NodeID) []NodeID {
	var out []NodeID
	for _, u := range g.users[id] {
		if u != Held {
			out = append(out, u)
		}
	}
	return out
}

// HasUser reports whether user is recorded as a user of id.
func (g *Graph) HasUser(id, user NodeID) bool {
	for _, u := range g.users[id] {
		if u == user {
			return true
		}
	}
	return false
}

// Inputs returns the distinct nodes referenced by id's arguments, positional
// arguments first and keyword arguments in sorted key order.
func (g *Graph) Inputs(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return refs(n.Args, n.Kwargs)
}

// Output returns the terminal output node, if present.
func (g *Graph) Output() (NodeID, bool) {
	for i := len(g.order) - 1; i >= 0; i-- {
		if id := g.order[i]; g.nodes[id].Op == OpOutput {
			return id, true
		}
	}
	return 0, false
}

// Placeholders returns the placeholder nodes in graph order.
func (g *Graph) Placeholders() []NodeID {
	var out []NodeID
	for _, id := range g.order {
		if g.nodes[id].Op == OpPlaceholder {
			out = append(out, id)
		}
	}
	return out
}

// Index returns the position of id in the graph order, or -1.
func (g *Graph) Index(id NodeID) int {
	for i, n := range g.order {
		if n == id {
			return i
		}
	}
	return -1
}

// Placeholder adds a graph input after the existing placeholders.
func (g *Graph) Placeholder(name string) (NodeID, error) {
	return g.CreateNode(OpPlaceholder, name, name, nil, nil)
}

// CallFunction adds a node applying target to args and kwargs. The node is
// inserted immediately before the output node, or appended when the graph has
// no output yet.
func (g *Graph) CallFunction(target string, args []Arg, kwargs map[string]Arg) (NodeID, error) {
	return g.CreateNode(OpCallFunction, target, target, args, kwargs)
}

// CreateNode adds a node of the given op. Name is a hint; it is made unique
// within the graph by appending a numeric suffix.
func (g *Graph) CreateNode(op Op, name, target string, args []Arg, kwargs map[string]Arg) (NodeID, error) {
	if target == "" {
		return 0, fmt.Errorf("%w: empty target", ErrInvalidArgument)
	}
	if op == OpOutput {
		if _, ok := g.Output(); ok {
			return 0, fmt.Errorf("%w: graph already has an output node", ErrInvalidArgument)
		}
	}
	if err := g.checkRefs(args, kwargs); err != nil {
		return 0, err
	}

	id := g.next
	g.next++
	n := &Node{ID: id, Name: g.uniqueName(name), Op: op, Target: target}
	n.Args, n.Kwargs = MapArgs(args, kwargs, func(r NodeID) Arg { return r })
	g.nodes[id] = n

	pos := len(g.order)
	switch op {
	case OpPlaceholder:
		pos = 0
		for i, o := range g.order {
			if g.nodes[o].Op == OpPlaceholder {
				pos = i + 1
			}
		}
	case OpCallFunction:
		if out, ok := g.Output(); ok {
			pos = g.Index(out)
		}
	}
	g.insertAt(pos, id)

	for _, r := range refs(n.Args, n.Kwargs) {
		g.addUse(r, id)
	}
	return id, nil
}

// SetOutput makes values the result tuple of the graph, creating the output
// node if needed.
func (g *Graph) SetOutput(values []Arg) (NodeID, error) {
	if out, ok := g.Output(); ok {
		return out, g.SetArgs(out, values, nil)
	}
	return g.CreateNode(OpOutput, "output", "output", values, nil)
}

// SetArgs replaces the arguments of id and updates the users table. Users
// recorded without an argument reference survive unless the dropped argument
// referenced the same producer.
func (g *Graph) SetArgs(id NodeID, args []Arg, kwargs map[string]Arg) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if err := g.checkRefs(args, kwargs); err != nil {
		return err
	}
	for _, r := range refs(args, kwargs) {
		if r == id {
			return fmt.Errorf("%w: node %s cannot reference itself", ErrInvalidArgument, n.Name)
		}
	}

	oldRefs := refs(n.Args, n.Kwargs)
	n.Args, n.Kwargs = MapArgs(args, kwargs, func(r NodeID) Arg { return r })
	newRefs := refs(n.Args, n.Kwargs)

	for _, r := range oldRefs {
		if !containsID(newRefs, r) {
			g.removeUse(r, id)
		}
	}
	for _, r := range newRefs {
		if !containsID(oldRefs, r) {
			g.addUse(r, id)
		}
	}
	return nil
}

// UpdateArg replaces the positional argument at idx.
func (g *Graph) UpdateArg(id NodeID, idx int, arg Arg) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if idx < 0 || idx >= len(n.Args) {
		return fmt.Errorf("%w: argument index %d out of range for %s", ErrInvalidArgument, idx, n.Name)
	}
	args := append([]Arg(nil), n.Args...)
	args[idx] = arg
	return g.SetArgs(id, args, n.Kwargs)
}

// ReplaceAllUsesWith rewrites every argument reference to id into a reference
// to with. When filter is non-nil only users for which it returns true are
// rewritten. The rewritten users are returned in users-table order.
func (g *Graph) ReplaceAllUsesWith(id, with NodeID, filter func(user NodeID) bool) ([]NodeID, error) {
	if !g.Has(id) {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if !g.Has(with) {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, with)
	}
	var replaced []NodeID
	for _, u := range g.RealUsers(id) {
		if filter != nil && !filter(u) {
			continue
		}
		n := g.nodes[u]
		if !containsID(refs(n.Args, n.Kwargs), id) {
			continue
		}
		args, kwargs := MapArgs(n.Args, n.Kwargs, func(r NodeID) Arg {
			if r == id {
				return with
			}
			return r
		})
		if err := g.SetArgs(u, args, kwargs); err != nil {
			return replaced, err
		}
		replaced = append(replaced, u)
	}
	return replaced, nil
}

// EraseNode removes id from the graph. It refuses while id has users other
// than Held. Users recorded by id itself on other nodes are dropped, and the
// node's name becomes available again.
func (g *Graph) EraseNode(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if live := g.RealUsers(id); len(live) > 0 {
		return fmt.Errorf("%w: %s is used by %s", ErrLiveUsers, n.Name, g.describe(live))
	}
	for p, us := range g.users {
		g.users[p] = removeID(us, id)
	}
	delete(g.users, id)
	delete(g.nodes, id)
	delete(g.names, n.Name)
	g.order = removeID(g.order, id)
	return nil
}

// Prepend moves id so that it sits immediately before anchor.
func (g *Graph) Prepend(anchor, id NodeID) error {
	return g.move(anchor, id, 0)
}

// Append moves id so that it sits immediately after anchor.
func (g *Graph) Append(anchor, id NodeID) error {
	return g.move(anchor, id, 1)
}

func (g *Graph) move(anchor, id NodeID, offset int) error {
	if !g.Has(anchor) {
		return fmt.Errorf("%w: anchor %v", ErrNodeNotFound, anchor)
	}
	if !g.Has(id) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if anchor == id {
		return fmt.Errorf("%w: cannot move %s relative to itself", ErrInvalidArgument, g.nodes[id].Name)
	}
	g.order = removeID(g.order, id)
	g.insertAt(g.Index(anchor)+offset, id)
	return nil
}

// AddUser records user as a consumer of id without touching arguments.
// User may be Held.
func (g *Graph) AddUser(id, user NodeID) error {
	if !g.Has(id) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if user != Held && !g.Has(user) {
		return fmt.Errorf("%w: user %v", ErrNodeNotFound, user)
	}
	g.addUse(id, user)
	return nil
}

// RemoveUser drops user from the users of id.
func (g *Graph) RemoveUser(id, user NodeID) error {
	if !g.Has(id) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	if !g.HasUser(id, user) {
		return fmt.Errorf("%w: %v is not a user of %s", ErrInvalidArgument, user, g.nodes[id].Name)
	}
	g.removeUse(id, user)
	return nil
}

// Clone returns a deep copy of g that keeps node handles, names and order.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes: make(map[NodeID]*Node, len(g.nodes)),
		order: append([]NodeID(nil), g.order...),
		users: make(map[NodeID][]NodeID, len(g.users)),
		names: make(map[string]bool, len(g.names)),
		next:  g.next,
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for id, us := range g.users {
		c.users[id] = append([]NodeID(nil), us...)
	}
	for name := range g.names {
		c.names[name] = true
	}
	return c
}

// Lint checks the structural rules of the graph: placeholders lead the order,
// a single output node ends it, every argument reference names an earlier
// node and the users table agrees with the argument references.
func (g *Graph) Lint() error {
	var errs []error
	pos := make(map[NodeID]int, len(g.order))
	for i, id := range g.order {
		pos[id] = i
	}

	seenCall := false
	outputs := 0
	for i, id := range g.order {
		n := g.nodes[id]
		switch n.Op {
		case OpPlaceholder:
			if seenCall {
				errs = append(errs, fmt.Errorf("placeholder %s follows a non-placeholder node", n.Name))
			}
		case OpOutput:
			outputs++
			if i != len(g.order)-1 {
				errs = append(errs, fmt.Errorf("output node %s is not last", n.Name))
			}
			seenCall = true
		default:
			seenCall = true
		}
		for _, r := range refs(n.Args, n.Kwargs) {
			p, ok := pos[r]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%s references missing node %v", n.Name, r))
			case p >= i:
				errs = append(errs, fmt.Errorf("%s uses %s before it is defined", n.Name, g.nodes[r].Name))
			case !g.HasUser(r, id):
				errs = append(errs, fmt.Errorf("%s is missing user %s", g.nodes[r].Name, n.Name))
			}
		}
	}
	if outputs != 1 {
		errs = append(errs, fmt.Errorf("graph has %d output nodes, want 1", outputs))
	}
	for p, us := range g.users {
		if _, ok := g.nodes[p]; !ok {
			errs = append(errs, fmt.Errorf("users recorded for missing node %v", p))
			continue
		}
		for _, u := range us {
			if u != Held && !g.Has(u) {
				errs = append(errs, fmt.Errorf("%s has missing user %v", g.nodes[p].Name, u))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMalformed, errors.Join(errs...))
	}
	return nil
}

// String renders the graph one node per line.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("graph():\n")
	for _, id := range g.order {
		n := g.nodes[id]
		switch n.Op {
		case OpPlaceholder:
			fmt.Fprintf(&b, "    %%%s : [num_users=%d] = placeholder[target=%s]\n", n.Name, len(g.users[id]), n.Target)
		case OpCallFunction:
			fmt.Fprintf(&b, "    %%%s : [num_users=%d] = call_function[target=%s](args = (%s), kwargs = {%s})\n",
				n.Name, len(g.users[id]), n.Target, g.formatArgs(n.Args), g.formatKwargs(n.Kwargs))
		case OpOutput:
			fmt.Fprintf(&b, "    return (%s)\n", g.formatArgs(n.Args))
		}
	}
	return b.String()
}

// Name returns the display name of id, or its handle when id is unknown.
func (g *Graph) Name(id NodeID) string {
	if n, ok := g.nodes[id]; ok {
		return n.Name
	}
	return id.String()
}

func (g *Graph) formatArg(a Arg) string {
	switch v := a.(type) {
	case NodeID:
		return "%" + g.Name(v)
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *Graph) formatArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = g.formatArg(a)
	}
	return strings.Join(parts, ", ")
}

func (g *Graph) formatKwargs(kwargs map[string]Arg) string {
	keys := sortedKeys(kwargs)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + g.formatArg(kwargs[k])
	}
	return strings.Join(parts, ", ")
}

func (g *Graph) describe(ids []NodeID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.Name(id)
	}
	return strings.Join(names, ", ")
}

func (g *Graph) checkRefs(args []Arg, kwargs map[string]Arg) error {
	for _, r := range refs(args, kwargs) {
		if !g.Has(r) {
			return fmt.Errorf("%w: argument references %v", ErrNodeNotFound, r)
		}
	}
	return nil
}

func (g *Graph) uniqueName(hint string) string {
	base := sanitizeName(hint)
	name := base
	for i := 1; g.names[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	g.names[name] = true
	return name
}

func (g *Graph) insertAt(pos int, id NodeID) {
	g.order = append(g.order, 0)
	copy(g.order[pos+1:], g.order[pos:])
	g.order[pos] = id
}

func (g *Graph) addUse(producer, user NodeID) {
	if !g.HasUser(producer, user) {
		g.users[producer] = append(g.users[producer], user)
	}
}

func (g *Graph) removeUse(producer, user NodeID) {
	g.users[producer] = removeID(g.users[producer], user)
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "node"
	}
	return b.String()
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
