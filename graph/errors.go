// Package graph keeps three synchronized copies of a dataflow graph (setup,
// steady and cleanup) and relocates blocks of work across iteration
// boundaries so that the tail of one iteration overlaps the head of the next.
//
// An Engine owns the three graphs and mirrors every edit made against the
// steady graph onto the other two. A Module wraps an Engine and dispatches
// each call of a training-style loop to the right graph, threading boundary
// values from one iteration into the next.
package graph

import "errors"

// ErrValidation indicates that a relocation request is malformed: the block is
// empty, out of topological order, used outside itself or anchored badly.
var ErrValidation = errors.New("invalid relocation request")

// ErrCorrespondence indicates that a steady node has no counterpart in the
// setup or cleanup graph.
var ErrCorrespondence = errors.New("node has no counterpart")

// ErrDependencyViolation indicates an attempt to remove a node that still has
// real users.
var ErrDependencyViolation = errors.New("node still has live users")

// ErrConfiguration indicates misuse of the dispatcher: an invalid iteration
// bound, a call before Setup or a call past the configured bound.
var ErrConfiguration = errors.New("invalid dispatcher configuration")

// ErrFrozen indicates a relocation attempted after Freeze.
var ErrFrozen = errors.New("engine is frozen")

// ErrInvariantViolation indicates that the three graphs have diverged. The
// engine refuses every further mutation once this has been returned.
var ErrInvariantViolation = errors.New("graphs desynchronized")

// EngineError carries a machine-readable code alongside the message. Cause
// is one of the sentinel errors above (or an underlying error) so callers can
// match with errors.Is.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Error codes attached to EngineError.
const (
	CodeInvalidBlock          = "INVALID_BLOCK"
	CodeNotTopological        = "NOT_TOPOLOGICAL"
	CodeInvalidAnchor         = "INVALID_ANCHOR"
	CodeInvalidGraph          = "INVALID_GRAPH"
	CodeMissingNode           = "MISSING_NODE"
	CodeMissingCounterpart    = "MISSING_COUNTERPART"
	CodeLiveUsers             = "LIVE_USERS"
	CodeMissingUser           = "MISSING_USER"
	CodeBoundaryCountMismatch = "BOUNDARY_COUNT_MISMATCH"
	CodeInvalidMaxIters       = "INVALID_MAX_ITERS"
	CodeNotConfigured         = "NOT_CONFIGURED"
	CodeIterationBound        = "ITERATION_BOUND_EXCEEDED"
	CodeFrozen                = "FROZEN"
	CodeDesynchronized        = "GRAPHS_DESYNCHRONIZED"
	CodePoisoned              = "ENGINE_POISONED"
	CodeExecutionFailed       = "EXECUTION_FAILED"
	CodeInvalidOption         = "INVALID_OPTION"
)

func newError(cause error, code, message string) *EngineError {
	return &EngineError{Message: message, Code: code, Cause: cause}
}

// errorCode returns the code of the outermost EngineError in err's chain.
func errorCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
