package loader

import (
	"context"
	"encoding/json"

	"github.com/umputun/valor/lib"
)

// Dummy accepts any descriptor and its Factory always returns a no-op
// handler that only answers Pong - useful for tests and as a loader-chain
// fallback (§4.3).
type Dummy struct{}

// Load implements Loader, never failing.
func (Dummy) Load(_ context.Context, _ lib.Descriptor) (Factory, error) {
	return func(_ context.Context, config json.RawMessage) (lib.Handler, error) {
		return &dummyHandler{Base: lib.NewBase(config)}, nil
	}, nil
}

type dummyHandler struct {
	lib.Base
}

// OnMsg is a no-op: it always answers Pong, regardless of the Message kind.
func (d *dummyHandler) OnMsg(_ context.Context, _ lib.Message) (lib.Answer, error) {
	return lib.PongAnswer{}, nil
}
