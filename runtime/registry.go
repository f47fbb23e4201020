package runtime

import (
	"sync"

	"chat-relay/contract"
)

// Registry owns the live set: the sessions currently eligible to
// receive broadcast messages. Only the Hub mutates it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.EventSink)}
}

// Subscribe registers a session's sink under its connection id.
func (r *Registry) Subscribe(sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = sink
}

// Unsubscribe removes a session and reports whether it was present,
// so a second leave for the same session stays silent.
func (r *Registry) Unsubscribe(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// Snapshot returns a stable copy of the live set. Fan-out iterates the
// copy, so a concurrent join or leave never corrupts the iteration.
func (r *Registry) Snapshot() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
