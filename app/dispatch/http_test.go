package dispatch

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/valor/lib"
)

func TestFromHTTPRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/_foo/bar", bytes.NewBufferString("body"))
	r.Header.Set("x-request-id", "abc")

	msg := FromHTTPRequest(r)
	httpMsg, ok := msg.(lib.HTTPMessage)
	require.True(t, ok)
	assert.Equal(t, "POST", httpMsg.Request.Method)
	assert.Equal(t, "/_foo/bar", httpMsg.Request.URL.Path)
	assert.Equal(t, "abc", httpMsg.Request.Header.Get("x-request-id"))
}

func TestWriteAnswer_http(t *testing.T) {
	w := httptest.NewRecorder()
	answer := lib.HTTPAnswer{Response: &lib.Response{
		StatusCode: 201,
		Header:     map[string][]string{"X-Test": {"v"}},
		Body:       io.NopCloser(bytes.NewBufferString("hi")),
	}}
	require.NoError(t, WriteAnswer(w, answer))
	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "v", w.Header().Get("X-Test"))
	assert.Equal(t, "hi", w.Body.String())
}

func TestWriteAnswer_pong(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteAnswer(w, lib.PongAnswer{}))
	assert.Equal(t, 200, w.Code)
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
	}{
		{lib.HTTPError(404, "No plugin matched"), 404},
		{lib.RuntimeError(lib.LoadFailed, "foo"), 500},
		{lib.NotSupportedError(), 501},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(w, tc.err)
		assert.Equal(t, tc.wantCode, w.Code)
	}
}
