package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/itergraph-go/graph/fx"
)

func optimEngine(t *testing.T) (*Engine, pair, fx.NodeID, fx.NodeID) {
	t.Helper()
	e, p := newPairEngine(t)
	step, err := e.CallFunction("mul", []fx.Arg{p.x, 0.1}, nil)
	require.NoError(t, err)
	optim, err := e.CallFunction("sub", []fx.Arg{p.x, 1}, nil)
	require.NoError(t, err)
	return e, p, step, optim
}

func TestFunctionalizeOptimizer(t *testing.T) {
	e, p, step, optim := optimEngine(t)

	require.NoError(t, e.FunctionalizeOptimizer(step, optim))
	require.NoError(t, e.FunctionalizeOptimizer(step, optim))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		g := e.Graph(r)
		assert.Equal(t, []fx.NodeID{p.out}, g.Users(optim), r.String())
		assert.Equal(t, []fx.NodeID{optim}, g.Users(step), r.String())
	}
	assert.NoError(t, e.Lint())

	out, _ := e.Steady().Output()
	n, _ := e.Steady().Node(out)
	assert.Equal(t, []fx.Arg{p.y, p.z}, n.Args, "arguments are untouched")

	require.NoError(t, e.DefunctionalizeOptimizer(step, optim))
	require.NoError(t, e.DefunctionalizeOptimizer(step, optim))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.Empty(t, e.Graph(r).Users(optim), r.String())
		assert.Empty(t, e.Graph(r).Users(step), r.String())
	}
}

func TestDefunctionalizeOptimizer_KeepsRealEdges(t *testing.T) {
	e, p, step, optim := optimEngine(t)
	require.NoError(t, e.SetOutput([]fx.Arg{p.y, optim}))
	require.NoError(t, e.FunctionalizeOptimizer(step, optim))

	require.NoError(t, e.DefunctionalizeOptimizer(step, optim))
	assert.Equal(t, []fx.NodeID{p.out}, e.Steady().Users(optim))
	assert.Empty(t, e.Steady().Users(step))
}
