// Package metric implements the external data-source providers and the
// name-to-provider registry the scheduler resolves markets against.
package metric

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// Registry maps metric names to providers. It is constructed once at process
// start with every known provider and passed by reference into the scheduler,
// making the set of available metrics an explicit, injectable dependency
// rather than ambient global state.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.MetricProvider
}

// NewRegistry creates a Registry pre-populated with the given providers.
func NewRegistry(providers ...domain.MetricProvider) *Registry {
	r := &Registry{providers: make(map[string]domain.MetricProvider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider under its own name. Registration is idempotent;
// the last registration for a name wins.
func (r *Registry) Register(p domain.MetricProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Lookup returns the provider registered under name, or false when the name
// is unbound. Pure lookup, no I/O.
func (r *Registry) Lookup(name string) (domain.MetricProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the sorted list of registered metric names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
