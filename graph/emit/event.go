package emit

// Event is one observability record.
//
// Messages emitted by the graph package:
//   - relocation_completed, relocation_rejected: Step is the relocation
//     count, NodeID the anchor
//   - node_erased: NodeID is the erased steady node
//   - engine_frozen
//   - dispatch_setup, dispatch_steady, dispatch_cleanup, dispatch_failed:
//     Step is the 1-based iteration, NodeID the graph that ran
//   - checkpoint_saved
type Event struct {
	// RunID identifies the engine or module that emitted the event.
	RunID string

	// Step is the iteration or relocation number. Zero for engine-level
	// events.
	Step int

	// NodeID names the node or graph the event is about, if any.
	NodeID string

	// Msg is the event name.
	Msg string

	// Meta carries event-specific data. Common keys:
	//   - "duration_ms": execution time of an iteration
	//   - "boundary_values": values carried into the next iteration
	//   - "error": error text; OTelEmitter marks the span as failed
	//   - "checkpoint_id": checkpoint identifier
	Meta map[string]interface{}
}
