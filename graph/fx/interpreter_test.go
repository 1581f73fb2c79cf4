package fx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpreter_Execute(t *testing.T) {
	g, _, _, _, _ := chain(t)
	in := NewInterpreter(Builtins())

	out, err := in.Execute(context.Background(), g, []any{4})
	require.NoError(t, err)
	assert.Equal(t, []any{-3}, out)
}

func TestInterpreter_ConstantsAndKwargs(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x")
	c, _ := g.CallFunction("const", nil, map[string]Arg{"value": 2.5})
	s, _ := g.CallFunction("sum", []Arg{x, c, 1}, nil)
	_, _ = g.SetOutput([]Arg{s, nil, x})

	out, err := NewInterpreter(Builtins()).Execute(context.Background(), g, []any{1})
	require.NoError(t, err)
	assert.Equal(t, []any{4.5, nil, 1}, out)
}

func TestInterpreter_ArgumentCount(t *testing.T) {
	g, _, _, _, _ := chain(t)
	_, err := NewInterpreter(Builtins()).Execute(context.Background(), g, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInterpreter_UnknownTarget(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x")
	y, _ := g.CallFunction("frobnicate", []Arg{x}, nil)
	_, _ = g.SetOutput([]Arg{y})

	_, err := NewInterpreter(Builtins()).Execute(context.Background(), g, []any{1})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestInterpreter_NodeError(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x")
	y, _ := g.CallFunction("div", []Arg{1, x}, nil)
	_, _ = g.SetOutput([]Arg{y})

	_, err := NewInterpreter(Builtins()).Execute(context.Background(), g, []any{0})
	assert.ErrorIs(t, err, ErrDivideByZero)
	assert.Contains(t, err.Error(), "node div")
}

func TestInterpreter_Cancelled(t *testing.T) {
	g, _, _, _, _ := chain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInterpreter(Builtins()).Execute(ctx, g, []any{1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInterpreter_UseBeforeDefinition(t *testing.T) {
	g, _, y, z, _ := chain(t)
	require.NoError(t, g.Prepend(y, z))

	_, err := NewInterpreter(Builtins()).Execute(context.Background(), g, []any{1})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBuiltins(t *testing.T) {
	reg := Builtins()
	tests := []struct {
		name   string
		target string
		args   []any
		kwargs map[string]any
		want   any
	}{
		{"int add", "add", []any{2, 3}, nil, 5},
		{"mixed add", "add", []any{2, 0.5}, nil, 2.5},
		{"sub", "sub", []any{2, 3}, nil, -1},
		{"mul", "mul", []any{int64(4), 3}, nil, 12},
		{"div", "div", []any{3, 2}, nil, 1.5},
		{"neg float", "neg", []any{1.5}, nil, -1.5},
		{"identity", "identity", []any{"v"}, nil, "v"},
		{"const", "const", nil, map[string]any{"value": 7}, 7},
		{"sum empty", "sum", nil, nil, 0},
		{"sum ints", "sum", []any{1, int64(2), 3}, nil, 6},
		{"sum mixed", "sum", []any{1, 0.5, 2}, nil, 3.5},
		{"neg int", "neg", []any{int64(4)}, nil, -4},
		{"large int add", "add", []any{1<<53 + 1, 2}, nil, 1<<53 + 3},
		{"large int mul", "mul", []any{1<<40 + 1, 1 << 12}, nil, 1<<52 + 1<<12},
		{"large int neg", "neg", []any{1<<62 + 1}, nil, -(1<<62 + 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg[tt.target](tt.args, tt.kwargs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := reg["add"]([]any{"a", 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
