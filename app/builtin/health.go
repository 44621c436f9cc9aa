package builtin

import (
	"bytes"
	"context"
	"io"

	"github.com/umputun/valor/lib"
)

// HealthPrefix is the built-in health plugin's effective prefix (§6).
const HealthPrefix = "_health"

// HealthName is the built-in health plugin's registered name.
const HealthName = "health"

// Health is the trivial handler (§4.6): any request answers 200 OK, empty
// body, no state.
type Health struct {
	lib.Base
}

// NewHealth returns a ready Health handler and its Descriptor.
func NewHealth() (lib.Descriptor, *Health) {
	d := lib.Descriptor{Name: HealthName, Prefix: HealthPrefix, Kind: lib.KindStatic}
	return d, &Health{Base: lib.NewBase(nil)}
}

// OnMsg answers 200 OK with an empty body to any HTTP request, and Pong to
// Ping.
func (h *Health) OnMsg(_ context.Context, msg lib.Message) (lib.Answer, error) {
	if _, ok := msg.(lib.PingMessage); ok {
		return lib.PongAnswer{}, nil
	}
	return lib.HTTPAnswer{Response: &lib.Response{
		StatusCode: 200,
		Header:     make(map[string][]string),
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}}, nil
}
