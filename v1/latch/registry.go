package latch

import "sync"

// Registry tracks the sessions a Manager currently holds, keyed by resolved
// resource path. It is the only shared in-process state of the engine; every
// access is serialized here. Injecting a registry lets tests run multiple
// independent managers over one filesystem.
type Registry struct {
	mu       sync.Mutex
	sessions map[string][]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string][]*Handle)}
}

func (r *Registry) add(h *Handle) {
	r.mu.Lock()
	r.sessions[h.resource] = append(r.sessions[h.resource], h)
	r.mu.Unlock()
}

// remove drops h and reports whether it was registered.
func (r *Registry) remove(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.sessions[h.resource]
	for i, s := range list {
		if s == h {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.sessions, h.resource)
			} else {
				r.sessions[h.resource] = list
			}
			return true
		}
	}
	return false
}

// newest returns the most recently added session for resource, or nil.
func (r *Registry) newest(resource string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.sessions[resource]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Held reports the number of sessions currently registered.
func (r *Registry) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.sessions {
		n += len(list)
	}
	return n
}
