// Package graphfile loads graph descriptions used by the itergraph CLI.
//
// A file lists the graph inputs, its nodes in order, the output tuple, the
// blocks to move into the next iteration and how to run it:
//
//	name: overlap
//	inputs: [x]
//	nodes:
//	  - {name: y, target: neg, args: ["%x"]}
//	  - {name: z, target: mul, args: ["%x", 2]}
//	outputs: ["%y", "%z"]
//	relocations:
//	  - {block: [z], before: output}
//	iterations: 3
//	feed: [[1], [2], [3]]
//
// A string argument starting with "%" references the input or node of that
// name; every other value is a constant. "output" names the output node.
package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/itergraph-go/graph"
	"github.com/dshills/itergraph-go/graph/fx"
)

// ErrInvalidFile is returned for descriptions that cannot be turned into a
// graph.
var ErrInvalidFile = errors.New("invalid graph file")

// OutputName refers to the output node in relocation anchors.
const OutputName = "output"

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// File is a parsed graph description.
type File struct {
	Name        string       `yaml:"name"`
	Inputs      []string     `yaml:"inputs"`
	Nodes       []Node       `yaml:"nodes"`
	Outputs     []any        `yaml:"outputs"`
	Relocations []Relocation `yaml:"relocations"`
	Iterations  int          `yaml:"iterations"`
	Feed        [][]any      `yaml:"feed"`
}

// Node describes one call_function node.
type Node struct {
	Name   string         `yaml:"name"`
	Target string         `yaml:"target"`
	Args   []any          `yaml:"args"`
	Kwargs map[string]any `yaml:"kwargs"`
}

// Relocation moves Block, listed in dependency order, before the node named
// Before.
type Relocation struct {
	Block  []string `yaml:"block"`
	Before string   `yaml:"before"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML description. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if f.Iterations < 0 {
		return nil, fmt.Errorf("%w: iterations must not be negative", ErrInvalidFile)
	}
	return &f, nil
}

// Build creates the graph. The returned map resolves input and node names,
// and OutputName, to handles.
func (f *File) Build() (*fx.Graph, map[string]fx.NodeID, error) {
	g := fx.New()
	ids := make(map[string]fx.NodeID, len(f.Inputs)+len(f.Nodes)+1)

	declare := func(name string) error {
		if !validName.MatchString(name) {
			return fmt.Errorf("%w: %q is not a valid name", ErrInvalidFile, name)
		}
		if name == OutputName {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidFile, name)
		}
		if _, dup := ids[name]; dup {
			return fmt.Errorf("%w: %q is defined twice", ErrInvalidFile, name)
		}
		return nil
	}

	for _, in := range f.Inputs {
		if err := declare(in); err != nil {
			return nil, nil, err
		}
		id, err := g.Placeholder(in)
		if err != nil {
			return nil, nil, err
		}
		ids[in] = id
	}

	for _, n := range f.Nodes {
		if err := declare(n.Name); err != nil {
			return nil, nil, err
		}
		if n.Target == "" {
			return nil, nil, fmt.Errorf("%w: node %q has no target", ErrInvalidFile, n.Name)
		}
		args, err := resolveAll(n.Args, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		var kwargs map[string]fx.Arg
		if len(n.Kwargs) > 0 {
			kwargs = make(map[string]fx.Arg, len(n.Kwargs))
			for k, v := range n.Kwargs {
				if kwargs[k], err = resolve(v, ids); err != nil {
					return nil, nil, fmt.Errorf("node %q: %w", n.Name, err)
				}
			}
		}
		id, err := g.CreateNode(fx.OpCallFunction, n.Name, n.Target, args, kwargs)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		ids[n.Name] = id
	}

	outputs, err := resolveAll(f.Outputs, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("outputs: %w", err)
	}
	out, err := g.SetOutput(outputs)
	if err != nil {
		return nil, nil, err
	}
	ids[OutputName] = out
	return g, ids, nil
}

// Apply performs the relocations in order on e, whose steady graph must have
// been built from the same File. ids is the map returned by Build.
func (f *File) Apply(e *graph.Engine, ids map[string]fx.NodeID) error {
	for i, r := range f.Relocations {
		block := make([]fx.NodeID, len(r.Block))
		for j, name := range r.Block {
			id, ok := ids[name]
			if !ok {
				return fmt.Errorf("%w: relocation %d: unknown node %q", ErrInvalidFile, i, name)
			}
			block[j] = id
		}
		anchor, ok := ids[r.Before]
		if !ok {
			return fmt.Errorf("%w: relocation %d: unknown anchor %q", ErrInvalidFile, i, r.Before)
		}
		if err := e.MoveToNextIterationBefore(block, anchor); err != nil {
			return fmt.Errorf("relocation %d: %w", i, err)
		}
	}
	return nil
}

// Args returns the arguments for call i (0-based) from Feed. A feed with a
// single entry is reused for every call.
func (f *File) Args(i int) ([]any, error) {
	switch {
	case len(f.Feed) == 1:
		return f.Feed[0], nil
	case i >= 0 && i < len(f.Feed):
		return f.Feed[i], nil
	case len(f.Feed) == 0 && len(f.Inputs) == 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: no feed for call %d", ErrInvalidFile, i+1)
	}
}

// ParseValues decodes a comma-separated list of YAML scalars, such as
// "1, 2.5, true", into typed values.
func ParseValues(s string) ([]any, error) {
	if strings.TrimSpace(s) == "" {
		return []any{}, nil
	}
	var out []any
	if err := yaml.Unmarshal([]byte("["+s+"]"), &out); err != nil {
		return nil, fmt.Errorf("invalid values %q: %w", s, err)
	}
	return out, nil
}

func resolveAll(values []any, ids map[string]fx.NodeID) ([]fx.Arg, error) {
	out := make([]fx.Arg, len(values))
	for i, v := range values {
		r, err := resolve(v, ids)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func resolve(v any, ids map[string]fx.NodeID) (fx.Arg, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "%") {
		return v, nil
	}
	id, ok := ids[s[1:]]
	if !ok || s[1:] == OutputName {
		return nil, fmt.Errorf("%w: unknown reference %q", ErrInvalidFile, s)
	}
	return id, nil
}
