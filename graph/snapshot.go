package graph

// Snapshot is a serializable summary of an Engine, journaled by a Module
// after each dispatched iteration and stored by Module.Checkpoint.
type Snapshot struct {
	RunID          string            `json:"run_id"`
	Iteration      int               `json:"iteration"`
	MaxIterations  int               `json:"max_iterations"`
	Graph          string            `json:"graph,omitempty"`
	Mode           string            `json:"mode"`
	Relocations    int               `json:"relocations"`
	NumExtraOutput int               `json:"num_extra_output"`
	Boundary       int               `json:"boundary"`
	Listings       map[string]string `json:"listings,omitempty"`
}

// Snapshot returns the engine's counters together with the textual listing of
// every graph.
func (e *Engine) Snapshot() Snapshot {
	listings := make(map[string]string, 3)
	for _, r := range mirrorOrder {
		listings[r.String()] = e.graphs[r].String()
	}
	return Snapshot{
		RunID:          e.cfg.opts.RunID,
		Mode:           e.mode.String(),
		Relocations:    e.relocations,
		NumExtraOutput: e.numExtraOutput,
		Listings:       listings,
	}
}
