// Package emit delivers engine and dispatcher events to observability
// backends.
package emit

// Emitter receives events from an Engine or Module.
//
// The engine is single-threaded, but a Module may share an emitter with other
// modules, so implementations should be safe for concurrent use. Emit must
// not block for long and must not panic; delivery failures are the
// emitter's own concern.
type Emitter interface {
	// Emit delivers one event.
	Emit(event Event)
}

// MultiEmitter fans every event out to several emitters in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an emitter forwarding to every non-nil emitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards event to each emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
