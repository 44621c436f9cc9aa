// Package dispatch implements the dispatch engine (§4.2): the top-level
// Handler that correlates requests, resolves them against a registry,
// strips the matched prefix, invokes the plugin, and stamps response
// headers. It is itself a lib.Handler, so it can be mounted behind a
// reverse-proxy plugin (§4.5) or nested arbitrarily.
package dispatch

import (
	"context"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/valor/app/loader"
	"github.com/umputun/valor/app/registry"
	"github.com/umputun/valor/lib"
)

// HeaderRequestID is the inbound header a caller must supply (§6).
const HeaderRequestID = "x-request-id"

// HeaderCorrelationID echoes HeaderRequestID on the response (§6).
const HeaderCorrelationID = "x-correlation-id"

// HeaderPlugin names the plugin that answered (§6).
const HeaderPlugin = "x-valor-plugin"

// Engine is the dispatch engine / runtime (§4.2). It owns one Registry
// (shared by clone) and a Loader. Engine itself is a lib.Handler.
type Engine struct {
	registry *registry.Registry
	loader   loader.Loader
	ctx      *lib.Context
}

// New creates an empty Engine backed by loader l.
func New(l loader.Loader) *Engine {
	return &Engine{registry: registry.New(), loader: l, ctx: lib.NewContext()}
}

// Clone returns an Engine sharing the same Registry and Loader (pointer
// semantics give us the shared-by-clone ownership §3 describes without
// needing Rust-style explicit refcounting), but with its own fresh, empty
// Context - clones never share handler state (§4.2 "Cloning").
func (e *Engine) Clone() *Engine {
	return &Engine{registry: e.registry, loader: e.loader, ctx: lib.NewContext()}
}

// Registry exposes the shared registry to collaborators that need it
// directly, e.g. the registry and reverse-proxy builtin plugins.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Loader exposes the shared loader to collaborators, e.g. the registry
// plugin's POST handler.
func (e *Engine) Loader() loader.Loader { return e.loader }

// WithPlugin registers an already-constructed handler under d, for builder-
// style setup (§4.2). Panics are not used - callers that care about the
// AlreadyRegistered case should call e.Registry().Register directly.
func (e *Engine) WithPlugin(d lib.Descriptor, h lib.Handler) *Engine {
	if err := e.registry.Register(d, h); err != nil {
		log.Printf("[WARN] WithPlugin %s: %v", d.Name, err)
	}
	return e
}

// LoadPlugin asks the loader to produce a Factory for d, awaits
// instantiation with d.Config, and registers the result. Fails with the
// appropriate RuntimeErrorKind (§4.2, §4.3).
func (e *Engine) LoadPlugin(ctx context.Context, d lib.Descriptor) error {
	factory, err := e.loader.Load(ctx, d)
	if err != nil {
		return err
	}

	h, err := factory(ctx, d.Config)
	if err != nil {
		log.Printf("[WARN] instantiate %s failed: %v", d.Name, err)
		return lib.RuntimeError(lib.InstantiateFailed, d.Name)
	}

	if err := h.OnCreate(ctx); err != nil {
		log.Printf("[WARN] on_create %s failed: %v", d.Name, err)
		return lib.RuntimeError(lib.InstantiateFailed, d.Name)
	}

	if rerr := e.registry.Register(d, h); rerr != nil {
		return rerr
	}
	return nil
}

// Ctx satisfies lib.Handler; the engine's own Context carries no meaningful
// state - it isn't a plugin itself (§4.2).
func (e *Engine) Ctx() *lib.Context { return e.ctx }

// OnCreate satisfies lib.Handler with a no-op.
func (e *Engine) OnCreate(context.Context) error { return nil }

// OnMsg implements the dispatch law of §4.2, steps 1-9.
func (e *Engine) OnMsg(ctx context.Context, msg lib.Message) (lib.Answer, error) {
	if _, ok := msg.(lib.PingMessage); ok {
		return lib.PongAnswer{}, nil
	}

	httpMsg, ok := msg.(lib.HTTPMessage)
	if !ok {
		return nil, lib.NotSupportedError()
	}
	req := httpMsg.Request

	reqID := req.Header.Get(HeaderRequestID)
	if reqID == "" {
		return nil, lib.HTTPError(400, "Missing request ID")
	}

	entry, ok := e.registry.Match(req.URL.Path)
	if !ok {
		return nil, lib.HTTPError(404, "No plugin matched")
	}

	rewritten := StripPrefix(req, entry.Descriptor.EffectivePrefix())

	answer, err := entry.Handler.OnMsg(ctx, lib.HTTPMessage{Request: rewritten})
	if err != nil {
		return nil, err
	}

	switch a := answer.(type) {
	case lib.HTTPAnswer:
		tag(a.Response, reqID, entry.Descriptor.Name)
		return a, nil
	default:
		return answer, nil
	}
}

// StripPrefix trims the leading '/' from req.URL.Path and removes the
// matched effective prefix, leaving the plugin to see the path without its
// own prefix (§4.2 step 5). The remainder always starts with a single
// leading '/' - an implementation choice documented here per §9's open
// question - so for a matched request path of "/_foo/bar/baz" and prefix
// "_foo" the rewritten path is "/bar/baz", and a path that is exactly the
// prefix ("/_foo" or "/_foo/") is rewritten to "/".
func StripPrefix(req *lib.Request, prefix string) *lib.Request {
	out := *req
	u := *req.URL
	trimmed := strings.TrimPrefix(req.URL.Path, "/")
	trimmed = strings.TrimPrefix(trimmed, prefix)
	if trimmed == "" {
		trimmed = "/"
	} else if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	u.Path = trimmed
	out.URL = &u
	return &out
}

func tag(resp *lib.Response, reqID, pluginName string) {
	if resp.Header == nil {
		resp.Header = make(map[string][]string)
	}
	resp.Header.Set(HeaderCorrelationID, reqID)
	resp.Header.Set(HeaderPlugin, pluginName)
}
