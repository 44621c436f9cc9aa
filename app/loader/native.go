package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"plugin"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/valor/lib"
)

// instantiateSymbol is the exported symbol name every native vlugin shared
// library must carry (§4.3, §6 "Native plugin ABI"). plugin.Lookup only
// resolves exported identifiers, so the ABI name is CamelCase rather than
// the snake_case a C-style ABI would use.
const instantiateSymbol = "InstantiateVlugin"

// Native loads vlugins compiled as Go `buildmode=plugin` shared objects.
// It is the only mechanism the Go ecosystem offers for resolving an
// arbitrary exported symbol out of a .so at runtime (see DESIGN.md); no
// third-party library substitutes for the standard library `plugin` package
// here.
type Native struct {
	// PathFor, when set, overrides the default filename-from-name
	// derivation. Left nil in production; tests set it to avoid touching
	// the filesystem.
	PathFor func(name string) string

	mu     sync.Mutex
	handle map[string]*plugin.Plugin // cached by descriptor name
}

// NewNative returns a ready Native loader.
func NewNative() *Native {
	return &Native{handle: make(map[string]*plugin.Plugin)}
}

// Load implements Loader for lib.KindNative. It opens (or reuses a cached
// handle for) the shared library at d.Path, defaulting to a platform
// filename derived from d.Name, and looks up instantiateSymbol.
func (n *Native) Load(_ context.Context, d lib.Descriptor) (Factory, error) {
	if d.Kind != lib.KindNative {
		return nil, lib.RuntimeError(lib.KindNotSupported, string(d.Kind))
	}

	p, err := n.open(d)
	if err != nil {
		log.Printf("[WARN] native loader: can't open plugin %s: %v", d.Name, err)
		return nil, lib.RuntimeError(lib.LoadFailed, d.Name)
	}

	sym, err := p.Lookup(instantiateSymbol)
	if err != nil {
		log.Printf("[WARN] native loader: %s missing symbol %s: %v", d.Name, instantiateSymbol, err)
		return nil, lib.RuntimeError(lib.LoadFailed, d.Name)
	}

	factory, ok := sym.(func(context.Context, json.RawMessage) (lib.Handler, error))
	if !ok {
		log.Printf("[WARN] native loader: %s symbol %s has wrong signature", d.Name, instantiateSymbol)
		return nil, lib.RuntimeError(lib.LoadFailed, d.Name)
	}

	return Factory(factory), nil
}

// open returns the cached *plugin.Plugin handle for d.Name, opening and
// caching it on first use. The cache lock is held for the whole call,
// including the synchronous plugin.Open, so a library is opened at most once
// per name; it is released before Load returns, so it is never held while a
// Factory runs (§5).
func (n *Native) open(d lib.Descriptor) (*plugin.Plugin, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if p, ok := n.handle[d.Name]; ok {
		return p, nil
	}

	path := d.Path
	if path == "" {
		path = n.defaultPath(d.Name)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	n.handle[d.Name] = p
	return p, nil
}

func (n *Native) defaultPath(name string) string {
	if n.PathFor != nil {
		return n.PathFor(name)
	}
	return name + ".so"
}
