package fx

import "errors"

// ErrNodeNotFound indicates that a NodeID does not name a node of the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrLiveUsers indicates an attempt to erase a node that still has real users.
var ErrLiveUsers = errors.New("node still has users")

// ErrInvalidArgument indicates a malformed request such as an out of range
// argument index, a missing target or a second output node.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrMalformed is returned by Lint when the graph violates a structural rule.
var ErrMalformed = errors.New("malformed graph")

// ErrUnknownTarget indicates that the interpreter has no function registered
// for a call_function target.
var ErrUnknownTarget = errors.New("unknown call target")
