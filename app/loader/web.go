package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	log "github.com/go-pkgz/lgr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/umputun/valor/lib"
)

// guestHandlerExport is the name a web vlugin's compiled WASM module must
// export, per §6 "Web plugin ABI".
const guestHandlerExport = "handler"

// Web loads vlugins published as WebAssembly modules, fetched over HTTP and
// executed with wazero - a pure-Go WASM runtime, used the same "fetch guest
// bytes, compile, run" way several pack examples wire it in. It implements
// the fetch/compile/cache mechanics only: the richer host<->guest request
// marshaling ABI is the out-of-scope WASM execution engine collaborator
// (§1, §4.3).
type Web struct {
	Client  *http.Client
	Runtime wazero.Runtime

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule // cached by descriptor.URL
}

// NewWeb returns a Web loader with a fresh wazero runtime configured with
// the WASI preview1 imports most guest toolchains (TinyGo, Rust wasm32-wasi)
// expect to be present.
func NewWeb(ctx context.Context) (*Web, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	return &Web{
		Client:   &http.Client{},
		Runtime:  rt,
		compiled: make(map[string]wazero.CompiledModule),
	}, nil
}

// Load implements Loader for lib.KindWeb. It fetches and compiles the module
// at d.URL (cached thereafter), failing with LoadFailed on fetch or compile
// error, or if the module doesn't export guestHandlerExport.
func (w *Web) Load(ctx context.Context, d lib.Descriptor) (Factory, error) {
	if d.Kind != lib.KindWeb {
		return nil, lib.RuntimeError(lib.KindNotSupported, string(d.Kind))
	}

	compiled, err := w.compile(ctx, d)
	if err != nil {
		log.Printf("[WARN] web loader: can't load %s from %s: %v", d.Name, d.URL, err)
		return nil, lib.RuntimeError(lib.LoadFailed, d.Name)
	}

	if !hasExport(compiled, guestHandlerExport) {
		log.Printf("[WARN] web loader: %s module missing export %q", d.Name, guestHandlerExport)
		return nil, lib.RuntimeError(lib.LoadFailed, d.Name)
	}

	return func(ctx context.Context, config json.RawMessage) (lib.Handler, error) {
		return newWasmHandler(w.Runtime, compiled, d.Name, config), nil
	}, nil
}

func (w *Web) compile(ctx context.Context, d lib.Descriptor) (wazero.CompiledModule, error) {
	w.mu.Lock()
	if c, ok := w.compiled[d.URL]; ok {
		w.mu.Unlock()
		return c, nil
	}
	w.mu.Unlock()

	body, err := w.fetch(ctx, d.URL)
	if err != nil {
		return nil, err
	}

	compiled, err := w.Runtime.CompileModule(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}

	w.mu.Lock()
	w.compiled[d.URL] = compiled
	w.mu.Unlock()
	return compiled, nil
}

func (w *Web) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func hasExport(compiled wazero.CompiledModule, name string) bool {
	_, ok := compiled.ExportedFunctions()[name]
	return ok
}
