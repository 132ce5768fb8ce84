package gateway

import "sync"

// Registry holds the live session handles. It is the authoritative
// view of which sessions exist right now; the database only trails it.
type Registry struct {
	mu      sync.RWMutex
	handles map[SessionKey]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[SessionKey]*Handle)}
}

func (r *Registry) Put(key SessionKey, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[key] = h
}

func (r *Registry) Get(key SessionKey) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[key]
	return h, ok
}

// Remove deletes and returns the handle, if any
func (r *Registry) Remove(key SessionKey) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if ok {
		delete(r.handles, key)
	}
	return h, ok
}

// Range calls fn for each handle under the read lock. fn must not
// call back into the registry.
func (r *Registry) Range(fn func(key SessionKey, h *Handle)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, h := range r.handles {
		fn(k, h)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
