package crash

import (
	"sync"

	"faulttrace/internal/amx"
)

// Registry maps machine instances to their handlers with an explicit
// insert-on-load / remove-on-unload lifecycle.
type Registry struct {
	mu       sync.RWMutex
	handlers map[*amx.Machine]*Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[*amx.Machine]*Handler)}
}

// Put associates a handler with its machine.
func (r *Registry) Put(h *Handler) {
	r.mu.Lock()
	r.handlers[h.m] = h
	r.mu.Unlock()
}

// Get returns the handler for m, if registered.
func (r *Registry) Get(m *amx.Machine) (*Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[m]
	r.mu.RUnlock()
	return h, ok
}

// Remove drops and returns the handler for m.
func (r *Registry) Remove(m *amx.Machine) (*Handler, bool) {
	r.mu.Lock()
	h, ok := r.handlers[m]
	if ok {
		delete(r.handlers, m)
	}
	r.mu.Unlock()
	return h, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
