package resilience

import "sync"

// Registry owns one breaker per dependency name, creating each lazily on
// first use. Breakers live for the process lifetime; an operator may reset
// one but never destroys it.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	settings Settings
}

// NewRegistry creates a registry applying the given settings to every
// breaker it creates
func NewRegistry(settings Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		settings: settings,
	}
}

// Get returns the breaker for the named dependency, creating it if needed
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	br, exists := r.breakers[name]
	r.mu.RUnlock()

	if exists {
		return br
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have created it
	if br, exists = r.breakers[name]; exists {
		return br
	}

	br = New(name, r.settings)
	r.breakers[name] = br
	return br
}

// Status returns the snapshot for a named dependency, if a breaker exists
func (r *Registry) Status(name string) (Stats, bool) {
	r.mu.RLock()
	br, exists := r.breakers[name]
	r.mu.RUnlock()

	if !exists {
		return Stats{}, false
	}
	return br.Status(), true
}

// Reset forces the named breaker closed. It reports whether a breaker
// existed for the name.
func (r *Registry) Reset(name string) bool {
	r.mu.RLock()
	br, exists := r.breakers[name]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	br.Reset()
	return true
}

// Snapshot returns the status of every live breaker keyed by dependency
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Stats, len(r.breakers))
	for name, br := range r.breakers {
		snapshot[name] = br.Status()
	}
	return snapshot
}
