package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/valor/app/loader"
	"github.com/umputun/valor/app/registry"
	"github.com/umputun/valor/lib"
)

// RegistryPrefix is the built-in registry plugin's effective prefix (§6).
const RegistryPrefix = "_plugins"

// RegistryName is the built-in registry plugin's registered name.
const RegistryName = "registry"

// listedDescriptor is a Descriptor view without Config, for GET /_plugins/
// (§4.4: "without config").
type listedDescriptor struct {
	Name   string   `json:"name"`
	Prefix string   `json:"prefix"`
	Kind   lib.Kind `json:"type"`
}

// Registry is the registry plugin (§4.4): it exposes the engine's registry
// and loader over HTTP so clients can POST new plugin descriptors.
// Grounded on app/plugin/conductor.go's registrationHandler - a single
// handler switching on verb, decoding JSON, translating internal errors to
// status codes - extended here with a GET listing conductor didn't have.
type Registry struct {
	lib.Base
	registry *registry.Registry
	loader   loader.Loader
}

// NewRegistry returns a ready Registry plugin bound to r and l.
func NewRegistry(r *registry.Registry, l loader.Loader) *Registry {
	return &Registry{Base: lib.NewBase(nil), registry: r, loader: l}
}

// OnMsg implements §4.4's GET/POST/GET-by-name operations.
func (p *Registry) OnMsg(ctx context.Context, msg lib.Message) (lib.Answer, error) {
	httpMsg, ok := msg.(lib.HTTPMessage)
	if !ok {
		return nil, lib.NotSupportedError()
	}
	req := httpMsg.Request

	switch req.Method {
	case "GET":
		if path := trimSlashes(req.URL.Path); path != "" {
			return p.get(path)
		}
		return p.list()
	case "POST":
		return p.register(ctx, req)
	default:
		return jsonError(405, "method not allowed"), nil
	}
}

func (p *Registry) list() (lib.Answer, error) {
	descs := p.registry.List()
	out := make([]listedDescriptor, 0, len(descs))
	for _, d := range descs {
		out = append(out, listedDescriptor{Name: d.Name, Prefix: d.EffectivePrefix(), Kind: d.Kind})
	}
	return jsonOK(200, out), nil
}

// get implements the §[NEW] "GET /_plugins/<name>" detail endpoint.
func (p *Registry) get(name string) (lib.Answer, error) {
	d, ok := p.registry.Get(name)
	if !ok {
		return jsonError(404, "plugin not found"), nil
	}
	return jsonOK(200, listedDescriptor{Name: d.Name, Prefix: d.EffectivePrefix(), Kind: d.Kind}), nil
}

func (p *Registry) register(ctx context.Context, req *lib.Request) (lib.Answer, error) {
	var d lib.Descriptor
	if req.Body == nil {
		return jsonError(400, "missing body"), nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return jsonError(400, "can't read body"), nil
	}
	if err := json.Unmarshal(body, &d); err != nil {
		return jsonError(400, fmt.Sprintf("bad descriptor: %v", err)), nil
	}

	factory, err := p.loader.Load(ctx, d)
	if err != nil {
		log.Printf("[WARN] registry plugin: load %s failed: %v", d.Name, err)
		return jsonError(422, "Can't load plugin"), nil
	}

	h, err := factory(ctx, d.Config)
	if err != nil {
		log.Printf("[WARN] registry plugin: instantiate %s failed: %v", d.Name, err)
		return jsonError(422, "Can't load plugin"), nil
	}
	if err := h.OnCreate(ctx); err != nil {
		log.Printf("[WARN] registry plugin: on_create %s failed: %v", d.Name, err)
		return jsonError(422, "Can't load plugin"), nil
	}

	if rerr := p.registry.Register(d, h); rerr != nil {
		return jsonError(409, "plugin name already registered"), nil
	}

	return jsonOK(201, listedDescriptor{Name: d.Name, Prefix: d.EffectivePrefix(), Kind: d.Kind}), nil
}

func jsonOK(status int, v any) lib.Answer {
	body, err := json.Marshal(v)
	if err != nil {
		return jsonError(500, "can't encode response")
	}
	h := make(map[string][]string)
	h["Content-Type"] = []string{"application/json"}
	return lib.HTTPAnswer{Response: &lib.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body))}}
}

func jsonError(status int, message string) lib.Answer {
	body, _ := json.Marshal(map[string]string{"error": message}) //nolint:errcheck
	h := make(map[string][]string)
	h["Content-Type"] = []string{"application/json"}
	return lib.HTTPAnswer{Response: &lib.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body))}}
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
