package graph

import "github.com/dshills/itergraph-go/graph/fx"

// Role selects one of the three graphs owned by an Engine.
type Role int

const (
	// RoleSetup is executed on the first iteration.
	RoleSetup Role = iota

	// RoleSteady is executed on every iteration between the first and the
	// last. It is the graph callers edit.
	RoleSteady

	// RoleCleanup is executed on the last iteration.
	RoleCleanup
)

func (r Role) String() string {
	switch r {
	case RoleSetup:
		return "setup"
	case RoleSteady:
		return "steady"
	case RoleCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// mirrorOrder is the fixed order in which edits are applied. The steady graph
// goes last so a failure mirroring onto a satellite leaves it untouched.
var mirrorOrder = [...]Role{RoleSetup, RoleCleanup, RoleSteady}

// Correspondence maps steady nodes to their counterparts in the setup and
// cleanup graphs. Entries may be partial: a relocated block keeps its cleanup
// counterpart but loses its setup one.
type Correspondence struct {
	setup   map[fx.NodeID]fx.NodeID
	cleanup map[fx.NodeID]fx.NodeID
}

func newCorrespondence() *Correspondence {
	return &Correspondence{
		setup:   make(map[fx.NodeID]fx.NodeID),
		cleanup: make(map[fx.NodeID]fx.NodeID),
	}
}

// Lookup returns the counterpart of steady in the graph selected by role.
// Steady nodes map to themselves and the Held sentinel maps to itself.
func (c *Correspondence) Lookup(steady fx.NodeID, role Role) (fx.NodeID, bool) {
	if steady == fx.Held || role == RoleSteady {
		return steady, true
	}
	var id fx.NodeID
	var ok bool
	switch role {
	case RoleSetup:
		id, ok = c.setup[steady]
	case RoleCleanup:
		id, ok = c.cleanup[steady]
	}
	return id, ok
}

// Record registers the counterparts of a steady node.
func (c *Correspondence) Record(steady, setup, cleanup fx.NodeID) {
	c.setup[steady] = setup
	c.cleanup[steady] = cleanup
}

// Forget drops every entry for steady.
func (c *Correspondence) Forget(steady fx.NodeID) {
	delete(c.setup, steady)
	delete(c.cleanup, steady)
}

// ForgetRole drops the counterpart of steady in one satellite graph.
func (c *Correspondence) ForgetRole(steady fx.NodeID, role Role) {
	switch role {
	case RoleSetup:
		delete(c.setup, steady)
	case RoleCleanup:
		delete(c.cleanup, steady)
	}
}

// Len returns the number of entries for role.
func (c *Correspondence) Len(role Role) int {
	switch role {
	case RoleSetup:
		return len(c.setup)
	case RoleCleanup:
		return len(c.cleanup)
	default:
		return 0
	}
}
