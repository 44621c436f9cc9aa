// Package registry implements the plugin registry (§4.1): a name-keyed
// mapping of descriptor+handler pairs, fronted by a route index that
// resolves an inbound path to the longest-matching registered prefix.
// Grounded on app/discovery's Service - a lock-guarded struct rebuilt only
// on mutation, except here mutation is add-only registration, not periodic
// provider polling.
package registry

import (
	"sort"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/valor/lib"
)

// Entry is a registered (descriptor, handler) pair, keyed by descriptor.Name.
type Entry struct {
	Descriptor lib.Descriptor
	Handler    lib.Handler
}

// Registry stores descriptors+handlers and resolves path -> (descriptor,
// handler) via a RouteIndex kept consistent with the name-keyed map (§4.1).
type Registry struct {
	mu     sync.Mutex
	byName map[string]Entry
	routes *RouteIndex
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]Entry),
		routes: NewRouteIndex(),
	}
}

// Register inserts (descriptor, handler) under descriptor.Name and installs
// both route patterns for its effective prefix. Fails with AlreadyRegistered
// if the name is already present; on failure the registry is left unchanged
// (§4.1, §5 "Registration atomicity").
func (r *Registry) Register(d lib.Descriptor, h lib.Handler) *lib.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		return lib.RuntimeError(lib.AlreadyRegistered, d.Name)
	}

	prefix := d.EffectivePrefix()
	r.byName[d.Name] = Entry{Descriptor: d, Handler: h}
	r.routes.Insert(prefix, d.Name)
	log.Printf("[INFO] registered plugin %s under /%s", d.Name, prefix)
	return nil
}

// Match finds the longest registered prefix that is a path prefix of path,
// and returns the owning entry. Returns false if no prefix matches (§4.1).
func (r *Registry) Match(path string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.routes.Match(path)
	if !ok {
		return Entry{}, false
	}
	entry, ok := r.byName[name]
	return entry, ok
}

// List returns all registered descriptors in a stable order (sorted by name).
func (r *Registry) List() []lib.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]lib.Descriptor, 0, len(r.byName))
	for _, e := range r.byName {
		res = append(res, e.Descriptor)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Get returns the descriptor registered under name, if any.
func (r *Registry) Get(name string) (lib.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[name]
	return e.Descriptor, ok
}
