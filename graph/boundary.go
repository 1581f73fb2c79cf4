package graph

import (
	"fmt"

	"github.com/dshills/itergraph-go/graph/fx"
)

// ExternalInputs returns the nodes referenced by block but produced outside
// it, deduplicated, in first-seen order over the block's traversal.
// ExportBoundary and ImportBoundary both rely on this order.
func ExternalInputs(g fx.View, block []fx.NodeID) []fx.NodeID {
	inBlock := nodeSet(block)
	seen := make(map[fx.NodeID]bool)
	var out []fx.NodeID
	for _, b := range block {
		for _, in := range g.Inputs(b) {
			if inBlock[in] || seen[in] {
				continue
			}
			seen[in] = true
			out = append(out, in)
		}
	}
	return out
}

// ExportBoundary appends the external inputs of block to the output tuple of
// g and returns how many values were appended.
//
// With consume set the block is then erased in reverse order. A block node
// may be used only by the output (the reference is replaced by nil) or by
// block nodes erased before it; any other user fails the export before g is
// changed.
func ExportBoundary(g *fx.Graph, block []fx.NodeID, consume bool) (int, error) {
	out, ok := g.Output()
	if !ok {
		return 0, newError(ErrValidation, CodeInvalidGraph, "graph has no output node")
	}
	for _, b := range block {
		if !g.Has(b) {
			return 0, newError(ErrValidation, CodeMissingNode, fmt.Sprintf("block node %v is not in the graph", b))
		}
	}
	if consume {
		if err := checkConsumable(g, block, out); err != nil {
			return 0, err
		}
	}

	externals := ExternalInputs(g, block)
	outNode, _ := g.Node(out)
	values := append([]fx.Arg(nil), outNode.Args...)
	if consume {
		inBlock := nodeSet(block)
		for i, v := range values {
			if id, ok := v.(fx.NodeID); ok && inBlock[id] {
				values[i] = nil
			}
		}
	}
	for _, x := range externals {
		values = append(values, x)
	}
	if _, err := g.SetOutput(values); err != nil {
		return 0, err
	}

	if consume {
		for _, b := range block {
			if g.HasUser(b, out) {
				if err := g.RemoveUser(b, out); err != nil {
					return 0, err
				}
			}
		}
		for i := len(block) - 1; i >= 0; i-- {
			if err := g.EraseNode(block[i]); err != nil {
				return 0, err
			}
		}
	}
	return len(externals), nil
}

// checkConsumable dry-runs the reverse-order erase of block.
func checkConsumable(g *fx.Graph, block []fx.NodeID, out fx.NodeID) error {
	erased := make(map[fx.NodeID]bool, len(block))
	for i := len(block) - 1; i >= 0; i-- {
		b := block[i]
		for _, u := range g.RealUsers(b) {
			if u == out || erased[u] {
				continue
			}
			return newError(ErrDependencyViolation, CodeLiveUsers,
				fmt.Sprintf("node %s is still used by %s", g.Name(b), g.Name(u)))
		}
		erased[b] = true
	}
	return nil
}

// ImportBoundary adds count placeholders after the existing placeholders of g
// and rewires every external reference of block to them, in the order used
// by ExportBoundary. Placeholders are named {prefix}_{i}. The number of
// distinct external inputs must equal count; g is unchanged otherwise.
func ImportBoundary(g *fx.Graph, block []fx.NodeID, count int, prefix string) ([]fx.NodeID, error) {
	for _, b := range block {
		if !g.Has(b) {
			return nil, newError(ErrValidation, CodeMissingNode, fmt.Sprintf("block node %v is not in the graph", b))
		}
	}
	externals := ExternalInputs(g, block)
	if count < 0 || len(externals) != count {
		return nil, newError(ErrDependencyViolation, CodeBoundaryCountMismatch,
			fmt.Sprintf("block has %d external inputs, expected %d", len(externals), count))
	}
	if count == 0 {
		return nil, nil
	}

	inputs := make([]fx.NodeID, count)
	replace := make(map[fx.NodeID]fx.NodeID, count)
	for i, x := range externals {
		p, err := g.Placeholder(fmt.Sprintf("%s_%d", prefix, i))
		if err != nil {
			return nil, err
		}
		inputs[i] = p
		replace[x] = p
	}

	for _, b := range block {
		n, _ := g.Node(b)
		args, kwargs := fx.MapArgs(n.Args, n.Kwargs, func(r fx.NodeID) fx.Arg {
			if p, ok := replace[r]; ok {
				return p
			}
			return r
		})
		if err := g.SetArgs(b, args, kwargs); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

// CloneBlock copies block into g immediately before anchor, keeping the
// block's internal references pointing at the copies. External references
// are kept as they are.
func CloneBlock(g *fx.Graph, block []fx.NodeID, anchor fx.NodeID) ([]fx.NodeID, error) {
	if !g.Has(anchor) {
		return nil, newError(ErrValidation, CodeInvalidAnchor, fmt.Sprintf("anchor %v is not in the graph", anchor))
	}
	copies := make(map[fx.NodeID]fx.NodeID, len(block))
	out := make([]fx.NodeID, 0, len(block))
	for _, b := range block {
		n, ok := g.Node(b)
		if !ok {
			return nil, newError(ErrValidation, CodeMissingNode, fmt.Sprintf("block node %v is not in the graph", b))
		}
		args, kwargs := fx.MapArgs(n.Args, n.Kwargs, func(r fx.NodeID) fx.Arg {
			if c, ok := copies[r]; ok {
				return c
			}
			return r
		})
		c, err := g.CreateNode(n.Op, n.Name, n.Target, args, kwargs)
		if err != nil {
			return nil, err
		}
		if err := g.Prepend(anchor, c); err != nil {
			return nil, err
		}
		copies[b] = c
		out = append(out, c)
	}
	return out, nil
}

func nodeSet(ids []fx.NodeID) map[fx.NodeID]bool {
	s := make(map[fx.NodeID]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
