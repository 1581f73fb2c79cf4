// Package fx provides the dataflow graph representation rewritten by the
// iteration engine.
//
// A Graph is an ordered arena of nodes addressed by integer handles. Edges are
// implied by node arguments: an argument holding a NodeID is a reference to
// the producing node, any other argument is a constant. Each arena keeps a
// producer -> ordered users table so consumers of a node can be enumerated
// without scanning the graph.
package fx

import (
	"fmt"
	"sort"
)

// NodeID is an arena-local handle to a node. Handles are never reused within
// one graph, and a cloned graph keeps the handles of its source.
type NodeID int

// Held is the sentinel user that keeps a node alive when nothing real consumes
// it. A node whose only users are Held is never considered dead.
const Held NodeID = -1

func (id NodeID) String() string {
	if id == Held {
		return "<held>"
	}
	return fmt.Sprintf("#%d", int(id))
}

// Op is the role of a node within its graph.
type Op int

const (
	// OpPlaceholder is a positional graph input.
	OpPlaceholder Op = iota

	// OpCallFunction applies a named target function to its arguments.
	OpCallFunction

	// OpOutput is the single terminal node; its arguments form the result tuple.
	OpOutput
)

func (o Op) String() string {
	switch o {
	case OpPlaceholder:
		return "placeholder"
	case OpCallFunction:
		return "call_function"
	case OpOutput:
		return "output"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Arg is a node argument: either a NodeID reference or a constant value.
type Arg = any

// Node is a snapshot of one graph node. Values returned by Graph accessors are
// copies; mutating them does not change the graph.
type Node struct {
	ID     NodeID
	Name   string
	Op     Op
	Target string
	Args   []Arg
	Kwargs map[string]Arg
}

func (n *Node) clone() *Node {
	c := *n
	if n.Args != nil {
		c.Args = append([]Arg(nil), n.Args...)
	}
	if n.Kwargs != nil {
		c.Kwargs = make(map[string]Arg, len(n.Kwargs))
		for k, v := range n.Kwargs {
			c.Kwargs[k] = v
		}
	}
	return &c
}

// refs returns the distinct nodes referenced by args and kwargs. Positional
// arguments come first, keyword arguments follow in sorted key order.
func refs(args []Arg, kwargs map[string]Arg) []NodeID {
	var out []NodeID
	seen := make(map[NodeID]bool)
	add := func(a Arg) {
		if id, ok := a.(NodeID); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, a := range args {
		add(a)
	}
	for _, k := range sortedKeys(kwargs) {
		add(kwargs[k])
	}
	return out
}

func sortedKeys(m map[string]Arg) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MapArgs returns copies of args and kwargs with every NodeID reference
// replaced by fn(ref). Constants are kept as they are.
func MapArgs(args []Arg, kwargs map[string]Arg, fn func(NodeID) Arg) ([]Arg, map[string]Arg) {
	var outArgs []Arg
	if args != nil {
		outArgs = make([]Arg, len(args))
		for i, a := range args {
			if id, ok := a.(NodeID); ok {
				outArgs[i] = fn(id)
				continue
			}
			outArgs[i] = a
		}
	}
	var outKw map[string]Arg
	if kwargs != nil {
		outKw = make(map[string]Arg, len(kwargs))
		for k, a := range kwargs {
			if id, ok := a.(NodeID); ok {
				outKw[k] = fn(id)
				continue
			}
			outKw[k] = a
		}
	}
	return outArgs, outKw
}
