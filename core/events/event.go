package events

import (
	"sync"

	"yieldedu/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is the optional interface implemented by events carrying a typed
// attribute payload.
type Payload interface {
	Event() *types.Event
}

// Recorder accumulates emitted events in order. It backs the append-only audit
// log served over RPC and is also handy in tests.
type Recorder struct {
	mu     sync.RWMutex
	events []*types.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	typed := payload.Event()
	if typed == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, typed)
	r.mu.Unlock()
}

// Events returns a snapshot of everything recorded so far, in emission order.
func (r *Recorder) Events() []*types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}
