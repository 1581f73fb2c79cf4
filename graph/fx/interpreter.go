package fx

import (
	"context"
	"fmt"
)

// Func is the implementation of a call_function target. Args and kwargs have
// their node references already resolved to values.
type Func func(args []any, kwargs map[string]any) (any, error)

// Registry maps call_function targets to implementations.
type Registry map[string]Func

// Interpreter executes a graph by walking its nodes in order.
type Interpreter struct {
	registry Registry
}

// NewInterpreter returns an interpreter resolving targets against registry.
func NewInterpreter(registry Registry) *Interpreter {
	return &Interpreter{registry: registry}
}

// Execute binds args to the placeholders of g positionally, evaluates every
// call_function node and returns the values of the output tuple.
//
// The number of args must equal the number of placeholders. Execution stops at
// the first failing node or when ctx is cancelled.
func (in *Interpreter) Execute(ctx context.Context, g View, args []any) ([]any, error) {
	placeholders := g.Placeholders()
	if len(args) != len(placeholders) {
		return nil, fmt.Errorf("%w: graph takes %d inputs, got %d", ErrInvalidArgument, len(placeholders), len(args))
	}

	env := make(map[NodeID]any, g.Len())
	next := 0
	for _, id := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, _ := g.Node(id)
		switch n.Op {
		case OpPlaceholder:
			env[id] = args[next]
			next++

		case OpCallFunction:
			fn, ok := in.registry[n.Target]
			if !ok {
				return nil, fmt.Errorf("%w: %s (node %s)", ErrUnknownTarget, n.Target, n.Name)
			}
			callArgs, callKwargs, err := resolve(env, n)
			if err != nil {
				return nil, err
			}
			v, err := fn(callArgs, callKwargs)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", n.Name, err)
			}
			env[id] = v

		case OpOutput:
			out, _, err := resolve(env, n)
			if err != nil {
				return nil, err
			}
			if out == nil {
				out = []any{}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: graph has no output node", ErrInvalidArgument)
}

func resolve(env map[NodeID]any, n Node) ([]any, map[string]any, error) {
	var missing error
	args, kwargs := MapArgs(n.Args, n.Kwargs, func(r NodeID) Arg {
		v, ok := env[r]
		if !ok && missing == nil {
			missing = fmt.Errorf("%w: node %s reads %v before it is computed", ErrNodeNotFound, n.Name, r)
		}
		return v
	})
	if missing != nil {
		return nil, nil, missing
	}
	return args, kwargs, nil
}
