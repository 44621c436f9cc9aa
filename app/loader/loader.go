// Package loader implements the loader abstraction (§4.3): a strategy that
// turns a plugin Descriptor into a Factory, which in turn produces a fresh
// Handler instance. The two-step load -> factory -> instance shape lets a
// loader cache a shared resource (an opened shared library, a compiled WASM
// module) across multiple instantiations of the same plugin kind.
package loader

import (
	"context"
	"encoding/json"

	"github.com/umputun/valor/lib"
)

// Factory produces a fresh Handler given optional raw config.
type Factory func(ctx context.Context, config json.RawMessage) (lib.Handler, error)

// Loader converts a Descriptor into a Factory, or fails with a
// *lib.Error carrying KindNotSupported or LoadFailed (§4.3).
type Loader interface {
	Load(ctx context.Context, d lib.Descriptor) (Factory, error)
}

// Chain tries each Loader in order, returning the first one that doesn't
// report KindNotSupported. Mirrors the way reproxy's makeProviders builds an
// ordered slice of discovery.Provider and lets each own a ProviderID.
type Chain []Loader

// Load implements Loader by delegating to the first sub-loader whose kind
// matches d.Kind.
func (c Chain) Load(ctx context.Context, d lib.Descriptor) (Factory, error) {
	for _, l := range c {
		f, err := l.Load(ctx, d)
		if err == nil {
			return f, nil
		}
		if e, ok := err.(*lib.Error); ok && e.Kind == lib.ErrRuntime && e.Runtime == lib.KindNotSupported {
			continue
		}
		return nil, err
	}
	return nil, lib.RuntimeError(lib.KindNotSupported, string(d.Kind))
}
