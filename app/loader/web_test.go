package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/valor/lib"
)

// emptyWasmModule is the minimal valid WASM binary: magic number + version,
// no sections, so it compiles but exports nothing.
var emptyWasmModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestWeb_Load_wrongKind(t *testing.T) {
	w, err := NewWeb(context.Background())
	require.NoError(t, err)
	_, err = w.Load(context.Background(), lib.Descriptor{Name: "x", Kind: lib.KindNative})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, lib.KindNotSupported, lerr.Runtime)
}

func TestWeb_Load_fetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	w, err := NewWeb(context.Background())
	require.NoError(t, err)
	_, err = w.Load(context.Background(), lib.Descriptor{Name: "x", Kind: lib.KindWeb, URL: ts.URL})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, lib.LoadFailed, lerr.Runtime)
}

func TestWeb_Load_missingExport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(emptyWasmModule)
	}))
	defer ts.Close()

	w, err := NewWeb(context.Background())
	require.NoError(t, err)
	_, err = w.Load(context.Background(), lib.Descriptor{Name: "x", Kind: lib.KindWeb, URL: ts.URL})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, lib.LoadFailed, lerr.Runtime)
}

func TestWeb_compile_isCached(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(emptyWasmModule)
	}))
	defer ts.Close()

	w, err := NewWeb(context.Background())
	require.NoError(t, err)
	d := lib.Descriptor{Name: "x", Kind: lib.KindWeb, URL: ts.URL}
	_, _ = w.Load(context.Background(), d)
	_, _ = w.Load(context.Background(), d)
	assert.Equal(t, 1, hits, "second Load reuses the cached compiled module")
}
