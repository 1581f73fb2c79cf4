package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/itergraph-go/graph/fx"
)

func TestRole_String(t *testing.T) {
	assert.Equal(t, "setup", RoleSetup.String())
	assert.Equal(t, "steady", RoleSteady.String())
	assert.Equal(t, "cleanup", RoleCleanup.String())
	assert.Equal(t, "unknown", Role(7).String())
}

func TestCorrespondence(t *testing.T) {
	c := newCorrespondence()
	c.Record(1, 11, 21)
	c.Record(2, 12, 22)

	id, ok := c.Lookup(1, RoleSetup)
	assert.True(t, ok)
	assert.Equal(t, fx.NodeID(11), id)

	id, ok = c.Lookup(2, RoleCleanup)
	assert.True(t, ok)
	assert.Equal(t, fx.NodeID(22), id)

	id, ok = c.Lookup(99, RoleSteady)
	assert.True(t, ok, "steady nodes map to themselves")
	assert.Equal(t, fx.NodeID(99), id)

	id, ok = c.Lookup(fx.Held, RoleCleanup)
	assert.True(t, ok)
	assert.Equal(t, fx.Held, id)

	_, ok = c.Lookup(3, RoleSetup)
	assert.False(t, ok)

	c.ForgetRole(1, RoleSetup)
	_, ok = c.Lookup(1, RoleSetup)
	assert.False(t, ok)
	_, ok = c.Lookup(1, RoleCleanup)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len(RoleSetup))
	assert.Equal(t, 2, c.Len(RoleCleanup))

	c.Forget(2)
	assert.Equal(t, 0, c.Len(RoleSetup))
	assert.Equal(t, 1, c.Len(RoleCleanup))
	assert.Equal(t, 0, c.Len(RoleSteady))
}
