package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	log "github.com/go-pkgz/lgr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/umputun/valor/lib"
)

// wasmHandler wraps a compiled WASM guest module as a lib.Handler. The
// guest's "handler" export is called with a JSON-encoded wire request
// (method/path/headers/body) written into guest memory via the guest's
// "allocate"/"deallocate" exports (callGuest convention, grounded on the
// pack's wasm middleware examples), and is expected to return a packed
// (ptr<<32|len) pair pointing at a JSON-encoded wire response.
type wasmHandler struct {
	lib.Base

	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	name     string
	mod      api.Module
}

func newWasmHandler(rt wazero.Runtime, compiled wazero.CompiledModule, name string, config json.RawMessage) *wasmHandler {
	return &wasmHandler{Base: lib.NewBase(config), runtime: rt, compiled: compiled, name: name}
}

// OnCreate instantiates a dedicated module instance for this handler.
func (h *wasmHandler) OnCreate(ctx context.Context) error {
	cfg := wazero.NewModuleConfig().WithStartFunctions("_initialize")
	mod, err := h.runtime.InstantiateModule(ctx, h.compiled, cfg)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", h.name, err)
	}
	h.mod = mod
	return nil
}

// OnMsg only handles HTTPMessage; Ping is answered directly without
// crossing into the guest.
func (h *wasmHandler) OnMsg(ctx context.Context, msg lib.Message) (lib.Answer, error) {
	switch m := msg.(type) {
	case lib.PingMessage:
		return lib.PongAnswer{}, nil
	case lib.HTTPMessage:
		return h.callGuest(ctx, m.Request)
	default:
		return nil, lib.NotSupportedError()
	}
}

type wireRequest struct {
	Method string              `json:"method"`
	Path   string              `json:"path"`
	Header map[string][]string `json:"header,omitempty"`
	Body   []byte              `json:"body,omitempty"`
}

type wireResponse struct {
	StatusCode int                 `json:"status"`
	Header     map[string][]string `json:"header,omitempty"`
	Body       []byte              `json:"body,omitempty"`
}

func (h *wasmHandler) callGuest(ctx context.Context, req *lib.Request) (lib.Answer, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, lib.HTTPError(500, "can't read request body")
		}
		body = b
	}

	wire := wireRequest{Method: req.Method, Path: req.URL.String(), Header: map[string][]string(req.Header), Body: body}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, lib.HTTPError(500, "can't encode guest request")
	}

	packed, err := h.invokeHandler(ctx, data)
	if err != nil {
		log.Printf("[WARN] wasm handler %s: %v", h.name, err)
		return nil, lib.HTTPError(502, "vlugin call failed")
	}

	var resp wireResponse
	if err := json.Unmarshal(packed, &resp); err != nil {
		return nil, lib.HTTPError(502, "invalid vlugin response")
	}

	return lib.HTTPAnswer{Response: &lib.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
	}}, nil
}

// invokeHandler writes data into guest memory, calls "handler", and reads
// back the JSON bytes the guest wrote to the returned (ptr, len) pair.
func (h *wasmHandler) invokeHandler(ctx context.Context, data []byte) ([]byte, error) {
	allocate := h.mod.ExportedFunction("allocate")
	deallocate := h.mod.ExportedFunction("deallocate")
	fn := h.mod.ExportedFunction(guestHandlerExport)
	if fn == nil {
		return nil, fmt.Errorf("guest %s has no %s export", h.name, guestHandlerExport)
	}

	var ptr uint64
	if allocate != nil && len(data) > 0 {
		results, err := allocate.Call(ctx, uint64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("guest allocate: %w", err)
		}
		ptr = results[0]
		if !h.mod.Memory().Write(uint32(ptr), data) {
			return nil, fmt.Errorf("guest memory write out of range")
		}
	}

	results, err := fn.Call(ctx, ptr, uint64(len(data)))
	if allocate != nil && deallocate != nil && ptr != 0 {
		_, _ = deallocate.Call(ctx, ptr, uint64(len(data)))
	}
	if err != nil {
		return nil, fmt.Errorf("guest handler call: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("guest handler returned nothing")
	}

	packed := results[0]
	outPtr, outLen := uint32(packed>>32), uint32(packed)
	out, ok := h.mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("guest memory read out of range")
	}
	return out, nil
}
