package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/itergraph-go/graph/emit"
	"github.com/dshills/itergraph-go/graph/fx"
)

func TestEngine_CallFunctionMirrors(t *testing.T) {
	e, p := newPairEngine(t)

	w, err := e.CallFunction("add", []fx.Arg{p.y, p.z}, map[string]fx.Arg{"alpha": p.x})
	require.NoError(t, err)
	requireCorresponding(t, e)
	assert.NoError(t, e.Lint())

	for _, r := range []Role{RoleSetup, RoleCleanup} {
		c, ok := e.Lookup(w, r)
		require.True(t, ok)
		n, _ := e.Graph(r).Node(c)
		y, _ := e.Lookup(p.y, r)
		z, _ := e.Lookup(p.z, r)
		x, _ := e.Lookup(p.x, r)
		assert.Equal(t, []fx.Arg{y, z}, n.Args, r.String())
		assert.Equal(t, map[string]fx.Arg{"alpha": x}, n.Kwargs, r.String())
	}
	assert.Equal(t, e.Steady().String(), e.Setup().String())
}

func TestEngine_PlaceholderMirrors(t *testing.T) {
	e, p := newPairEngine(t)

	q, err := e.Placeholder("q")
	require.NoError(t, err)
	requireCorresponding(t, e)
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		c, _ := e.Lookup(q, r)
		x, _ := e.Lookup(p.x, r)
		assert.Equal(t, []fx.NodeID{x, c}, e.Graph(r).Placeholders(), r.String())
	}
}

func TestEngine_CreateRejects(t *testing.T) {
	e, p := newPairEngine(t)
	before := listings(e)

	_, err := e.CallFunction("add", []fx.Arg{p.y, fx.NodeID(404)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, CodeMissingNode, errorCode(err))

	_, err = e.CallFunction("", nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, before, listings(e))
}

func TestEngine_EraseNode(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	e, p := newPairEngine(t, WithRunID("run-erase"), WithEmitter(buf))

	require.NoError(t, e.SetOutput([]fx.Arg{p.y}))
	require.NoError(t, e.EraseNode(p.z))

	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.Equal(t, 3, e.Graph(r).Len(), r.String())
		assert.False(t, e.Graph(r).Has(p.z), r.String())
	}
	_, ok := e.Lookup(p.z, RoleSetup)
	assert.False(t, ok, "erased node keeps no counterpart")
	requireCorresponding(t, e)
	assert.Equal(t, []string{"node_erased"}, buf.Messages("run-erase"))
	assert.Equal(t, "mul", buf.GetHistory("run-erase")[0].NodeID)
}

func TestEngine_EraseNodeWithLiveUsers(t *testing.T) {
	e, p := newPairEngine(t)
	before := listings(e)

	err := e.EraseNode(p.x)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyViolation)
	assert.Equal(t, CodeLiveUsers, errorCode(err))
	assert.Equal(t, before, listings(e))
	requireCorresponding(t, e)

	err = e.EraseNode(p.out)
	assert.ErrorIs(t, err, ErrValidation)

	err = e.EraseNode(fx.NodeID(404))
	assert.Equal(t, CodeMissingNode, errorCode(err))
	assert.Equal(t, before, listings(e))
}

func TestEngine_EraseNodeIgnoresHeld(t *testing.T) {
	e, p := newPairEngine(t)
	side, err := e.CallFunction("identity", []fx.Arg{p.x}, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddUser(side, fx.Held))

	require.NoError(t, e.EraseNode(side))
	assert.Equal(t, 4, e.Cleanup().Len())
}

func TestEngine_InsertBeforeAndAfter(t *testing.T) {
	e, p := newPairEngine(t)

	require.NoError(t, e.InsertBefore(p.y, p.z))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.Equal(t, []fx.NodeID{p.x, p.z, p.y, p.out}, e.Graph(r).Nodes(), r.String())
	}

	require.NoError(t, e.InsertAfter(p.y, p.z))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.Equal(t, []fx.NodeID{p.x, p.y, p.z, p.out}, e.Graph(r).Nodes(), r.String())
	}

	err := e.InsertBefore(p.y, p.y)
	assert.Equal(t, CodeInvalidAnchor, errorCode(err))
}

func TestEngine_MoveBeforeAndAfter(t *testing.T) {
	e, p := newPairEngine(t)
	w, err := e.CallFunction("identity", []fx.Arg{p.x}, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddUser(w, fx.Held))

	require.NoError(t, e.MoveBefore([]fx.NodeID{p.z, w}, p.y))
	assert.Equal(t, []fx.NodeID{p.x, p.z, w, p.y, p.out}, e.Cleanup().Nodes())

	require.NoError(t, e.MoveAfter([]fx.NodeID{p.z, w}, p.y))
	assert.Equal(t, []fx.NodeID{p.x, p.y, p.z, w, p.out}, e.Setup().Nodes())
	assert.Equal(t, e.Setup().String(), e.Steady().String())
}

func TestEngine_UpdateArg(t *testing.T) {
	e, p := newPairEngine(t)

	require.NoError(t, e.UpdateArg(p.z, 1, 3))
	require.NoError(t, e.UpdateArg(p.z, 0, p.y))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		n, _ := e.Graph(r).Node(p.z)
		assert.Equal(t, []fx.Arg{p.y, 3}, n.Args, r.String())
		assert.Equal(t, []fx.NodeID{p.y}, e.Graph(r).Users(p.x), r.String())
	}
	assert.NoError(t, e.Lint())

	before := listings(e)
	err := e.UpdateArg(p.z, 5, 1)
	assert.ErrorIs(t, err, ErrValidation)
	err = e.UpdateArg(p.z, 0, p.z)
	assert.ErrorIs(t, err, ErrValidation)
	err = e.UpdateArg(p.z, 0, fx.NodeID(404))
	assert.Equal(t, CodeMissingNode, errorCode(err))
	assert.Equal(t, before, listings(e))
}

func TestEngine_SetOutput(t *testing.T) {
	e, p := newPairEngine(t)

	require.NoError(t, e.SetOutput([]fx.Arg{p.z, "done"}))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		out, _ := e.Graph(r).Output()
		n, _ := e.Graph(r).Node(out)
		assert.Equal(t, []fx.Arg{p.z, "done"}, n.Args, r.String())
		assert.Empty(t, e.Graph(r).Users(p.y), r.String())
	}
}

func TestEngine_ReplaceAllUsesWith(t *testing.T) {
	e, p := newPairEngine(t)
	w, err := e.CallFunction("add", []fx.Arg{p.y, 1}, nil)
	require.NoError(t, err)
	require.NoError(t, e.SetOutput([]fx.Arg{p.y, p.z, w}))

	replaced, err := e.ReplaceAllUsesWith(p.y, p.z, func(u fx.NodeID) bool { return u == p.out })
	require.NoError(t, err)
	assert.Equal(t, []fx.NodeID{p.out}, replaced)

	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		g := e.Graph(r)
		n, _ := g.Node(p.out)
		assert.Equal(t, []fx.Arg{p.z, p.z, w}, n.Args, r.String())
		assert.Equal(t, []fx.NodeID{w}, g.Users(p.y), r.String())
	}
	assert.NoError(t, e.Lint())

	_, err = e.ReplaceAllUsesWith(p.y, w, nil)
	assert.ErrorIs(t, err, ErrValidation, "w reads y and cannot replace itself")
}

func TestEngine_AddRemoveUser(t *testing.T) {
	e, p := newPairEngine(t)

	require.NoError(t, e.AddUser(p.y, p.z))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.True(t, e.Graph(r).HasUser(p.y, p.z), r.String())
	}
	assert.NoError(t, e.Lint())

	require.NoError(t, e.RemoveUser(p.y, p.z))
	for _, r := range []Role{RoleSetup, RoleSteady, RoleCleanup} {
		assert.False(t, e.Graph(r).HasUser(p.y, p.z), r.String())
	}

	before := listings(e)
	err := e.RemoveUser(p.y, p.z)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, CodeMissingUser, errorCode(err))
	assert.Equal(t, before, listings(e))
}

func TestEngine_PoisonedRefusesEdits(t *testing.T) {
	e, p := newPairEngine(t)
	err := e.poison(RoleCleanup, errors.New("boom"))
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, CodeDesynchronized, errorCode(err))

	_, err = e.CallFunction("neg", []fx.Arg{p.x}, nil)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, CodePoisoned, errorCode(err))

	assert.Equal(t, CodePoisoned, errorCode(e.EraseNode(p.z)))
	assert.Equal(t, CodePoisoned, errorCode(e.AddUser(p.y, fx.Held)))
	assert.Equal(t, CodePoisoned, errorCode(e.MoveToNextIterationBefore([]fx.NodeID{p.z}, p.out)))
}
