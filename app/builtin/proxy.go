package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/umputun/valor/app/dispatch"
	"github.com/umputun/valor/app/registry"
	"github.com/umputun/valor/lib"
)

// HeaderProxy names the nested plugin a reverse-proxy plugin dispatched to
// (§6).
const HeaderProxy = "x-valor-proxy"

// Proxy is the reverse-proxy plugin (§4.5): it re-enters dispatch by
// consulting the same registry the outer engine uses, invoking the matched
// handler directly (bypassing the outer engine's own tagging), and stamps
// HeaderProxy with the matched plugin's name. Lets an operator mount a
// whole sub-API under one prefix.
type Proxy struct {
	lib.Base
	registry *registry.Registry
}

// NewProxy returns a ready Proxy handler bound to registry r.
func NewProxy(r *registry.Registry) *Proxy {
	return &Proxy{Base: lib.NewBase(nil), registry: r}
}

// OnMsg implements §4.5.
func (p *Proxy) OnMsg(ctx context.Context, msg lib.Message) (lib.Answer, error) {
	httpMsg, ok := msg.(lib.HTTPMessage)
	if !ok {
		return nil, lib.NotSupportedError()
	}
	req := httpMsg.Request

	entry, ok := p.registry.Match(req.URL.Path)
	if !ok {
		return p.notSupported(req.URL.Path), nil
	}

	rewritten := dispatch.StripPrefix(req, entry.Descriptor.EffectivePrefix())
	answer, err := entry.Handler.OnMsg(ctx, lib.HTTPMessage{Request: rewritten})
	if err != nil {
		return nil, err
	}

	if a, ok := answer.(lib.HTTPAnswer); ok {
		if a.Response.Header == nil {
			a.Response.Header = make(map[string][]string)
		}
		a.Response.Header.Set(HeaderProxy, entry.Descriptor.Name)
	}
	return answer, nil
}

func (p *Proxy) notSupported(path string) lib.Answer {
	body := fmt.Sprintf("Plugin not supported: %s", path)
	return lib.HTTPAnswer{Response: &lib.Response{
		StatusCode: 404,
		Header:     make(map[string][]string),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}}
}
