package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/itergraph-go/graph/emit"
	"github.com/dshills/itergraph-go/graph/fx"
)

// pair is the graph most tests start from:
//
//	x = placeholder
//	y = neg(x)
//	z = mul(x, 2)
//	return (y, z)
type pair struct {
	g            *fx.Graph
	x, y, z, out fx.NodeID
}

func newPair(t *testing.T) pair {
	t.Helper()
	g := fx.New()
	x, err := g.Placeholder("x")
	require.NoError(t, err)
	y, err := g.CallFunction("neg", []fx.Arg{x}, nil)
	require.NoError(t, err)
	z, err := g.CallFunction("mul", []fx.Arg{x, 2}, nil)
	require.NoError(t, err)
	out, err := g.SetOutput([]fx.Arg{y, z})
	require.NoError(t, err)
	return pair{g: g, x: x, y: y, z: z, out: out}
}

func newPairEngine(t *testing.T, opts ...Option) (*Engine, pair) {
	t.Helper()
	p := newPair(t)
	e, err := New(p.g, opts...)
	require.NoError(t, err)
	return e, p
}

// listings captures the three graphs for before/after comparisons.
func listings(e *Engine) [3]string {
	var out [3]string
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		out[r] = e.Graph(r).String()
	}
	return out
}

// requireCorresponding checks that every steady node has a counterpart of the
// same op and target in both satellites and that the graphs have equal sizes.
func requireCorresponding(t *testing.T, e *Engine) {
	t.Helper()
	steady := e.Steady()
	for _, r := range []Role{RoleSetup, RoleCleanup} {
		g := e.Graph(r)
		require.Equal(t, steady.Len(), g.Len(), "%s graph size", r)
		for _, id := range steady.Nodes() {
			n, _ := steady.Node(id)
			if n.Op == fx.OpOutput {
				continue
			}
			c, ok := e.Lookup(id, r)
			require.True(t, ok, "%s has no %s counterpart", n.Name, r)
			cn, ok := g.Node(c)
			require.True(t, ok, "%s counterpart of %s is gone", r, n.Name)
			assert.Equal(t, n.Op, cn.Op)
			assert.Equal(t, n.Target, cn.Target)
		}
	}
}

func TestNew(t *testing.T) {
	e, p := newPairEngine(t, WithRunID("run-new"))

	assert.Equal(t, "run-new", e.RunID())
	assert.Equal(t, Mirroring, e.Mode())
	assert.Equal(t, 0, e.NumExtraOutput())
	assert.Equal(t, 0, e.Relocations())
	assert.NoError(t, e.Lint())
	requireCorresponding(t, e)

	l := listings(e)
	assert.Equal(t, p.g.String(), l[RoleSteady])
	assert.Equal(t, l[RoleSteady], l[RoleSetup])
	assert.Equal(t, l[RoleSteady], l[RoleCleanup])
}

func TestNew_CopiesInput(t *testing.T) {
	e, p := newPairEngine(t)

	_, err := p.g.CallFunction("identity", []fx.Arg{p.x}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, e.Steady().Len())
	assert.Equal(t, 4, e.Setup().Len())
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrValidation)

	noOutput := fx.New()
	_, err = noOutput.Placeholder("x")
	require.NoError(t, err)
	_, err = New(noOutput)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidGraph, errorCode(err))
	assert.ErrorIs(t, err, fx.ErrMalformed)

	p := newPair(t)
	_, err = New(p.g, WithRunID(""))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEngine_Freeze(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	e, p := newPairEngine(t, WithRunID("run-freeze"), WithEmitter(buf))
	before := listings(e)

	e.Freeze()
	e.Freeze()
	assert.Equal(t, Direct, e.Mode())
	assert.Equal(t, []string{"engine_frozen"}, buf.Messages("run-freeze"))

	w, err := e.CallFunction("add", []fx.Arg{p.y, p.z}, nil)
	require.NoError(t, err)
	require.NoError(t, e.SetOutput([]fx.Arg{w}))

	assert.Equal(t, before[RoleSetup], e.Setup().String())
	assert.Equal(t, before[RoleCleanup], e.Cleanup().String())
	assert.Equal(t, 5, e.Steady().Len())

	_, ok := e.Lookup(w, RoleSetup)
	assert.False(t, ok)
	id, ok := e.Lookup(w, RoleSteady)
	assert.True(t, ok)
	assert.Equal(t, w, id)

	err = e.MoveToNextIterationBefore([]fx.NodeID{p.z}, p.out)
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestEngine_KeepUnusedNodes(t *testing.T) {
	e, p := newPairEngine(t)
	side, err := e.CallFunction("identity", []fx.Arg{p.x}, nil)
	require.NoError(t, err)

	require.NoError(t, e.KeepUnusedNodes())
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		c, _ := e.Lookup(side, r)
		assert.Equal(t, []fx.NodeID{fx.Held}, e.Graph(r).Users(c), r.String())
	}
	assert.Equal(t, []fx.NodeID{p.out}, e.Steady().Users(p.y))
	assert.NoError(t, e.Lint())
}

func TestEngine_Snapshot(t *testing.T) {
	e, _ := newPairEngine(t, WithRunID("run-snap"))

	snap := e.Snapshot()
	assert.Equal(t, "run-snap", snap.RunID)
	assert.Equal(t, "mirroring", snap.Mode)
	assert.Len(t, snap.Listings, 3)
	assert.Equal(t, e.Steady().String(), snap.Listings["steady"])
}
