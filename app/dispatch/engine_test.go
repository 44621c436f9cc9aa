package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/valor/app/loader"
	"github.com/umputun/valor/lib"
)

type echoHandler struct {
	lib.Base
	lastPath string
}

func (h *echoHandler) OnMsg(_ context.Context, msg lib.Message) (lib.Answer, error) {
	m, ok := msg.(lib.HTTPMessage)
	if !ok {
		return nil, lib.NotSupportedError()
	}
	h.lastPath = m.Request.URL.Path
	return lib.HTTPAnswer{Response: &lib.Response{
		StatusCode: 200,
		Header:     make(map[string][]string),
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}}, nil
}

func newEngineWithEcho(t *testing.T, name, prefix string) (*Engine, *echoHandler) {
	t.Helper()
	e := New(loader.Dummy{})
	h := &echoHandler{Base: lib.NewBase(nil)}
	e.WithPlugin(lib.Descriptor{Name: name, Prefix: prefix, Kind: lib.KindStatic}, h)
	return e, h
}

func req(method, path string, headers map[string]string) *lib.Request {
	u, _ := url.Parse(path) //nolint:errcheck
	h := make(map[string][]string)
	for k, v := range headers {
		h[k] = []string{v}
	}
	return &lib.Request{Method: method, URL: u, Header: h}
}

func TestEngine_OnMsg_dispatchAndStrip(t *testing.T) {
	e, h := newEngineWithEcho(t, "api", "_foo")

	r := req("GET", "/_foo/bar/baz", map[string]string{HeaderRequestID: "req-1"})
	answer, err := e.OnMsg(context.Background(), lib.HTTPMessage{Request: r})
	require.NoError(t, err)

	a, ok := answer.(lib.HTTPAnswer)
	require.True(t, ok)
	assert.Equal(t, "req-1", a.Response.Header.Get(HeaderCorrelationID))
	assert.Equal(t, "api", a.Response.Header.Get(HeaderPlugin))
	assert.Equal(t, "/bar/baz", h.lastPath)
}

func TestEngine_OnMsg_missingRequestID(t *testing.T) {
	e, _ := newEngineWithEcho(t, "api", "_foo")
	r := req("GET", "/_foo/bar", nil)
	_, err := e.OnMsg(context.Background(), lib.HTTPMessage{Request: r})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, lib.ErrHTTP, lerr.Kind)
	assert.Equal(t, 400, lerr.Status)
}

func TestEngine_OnMsg_noMatch(t *testing.T) {
	e, _ := newEngineWithEcho(t, "api", "_foo")
	r := req("GET", "/_unknown", map[string]string{HeaderRequestID: "req-2"})
	_, err := e.OnMsg(context.Background(), lib.HTTPMessage{Request: r})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, 404, lerr.Status)
}

func TestEngine_OnMsg_ping(t *testing.T) {
	e, _ := newEngineWithEcho(t, "api", "_foo")
	answer, err := e.OnMsg(context.Background(), lib.PingMessage{})
	require.NoError(t, err)
	assert.IsType(t, lib.PongAnswer{}, answer)
}

func TestEngine_Clone_sharesRegistryFreshContext(t *testing.T) {
	e, _ := newEngineWithEcho(t, "api", "_foo")
	clone := e.Clone()

	assert.Same(t, e.Registry(), clone.Registry())
	assert.NotSame(t, e.Ctx(), clone.Ctx())
}

func TestStripPrefix(t *testing.T) {
	cases := []struct {
		path, prefix, want string
	}{
		{"/_foo/bar/baz", "_foo", "/bar/baz"},
		{"/_foo", "_foo", "/"},
		{"/_foo/", "_foo", "/"},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.path)
		require.NoError(t, err)
		out := StripPrefix(&lib.Request{URL: u}, tc.prefix)
		assert.Equal(t, tc.want, out.URL.Path)
	}
}
