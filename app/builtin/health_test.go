package builtin

import (
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/valor/lib"
)

func TestHealth_OnMsg_http(t *testing.T) {
	d, h := NewHealth()
	assert.Equal(t, "_health", d.Prefix)
	assert.Equal(t, "health", d.Name)

	u, _ := url.Parse("/") //nolint:errcheck
	answer, err := h.OnMsg(context.Background(), lib.HTTPMessage{Request: &lib.Request{Method: "GET", URL: u}})
	require.NoError(t, err)

	a, ok := answer.(lib.HTTPAnswer)
	require.True(t, ok)
	assert.Equal(t, 200, a.Response.StatusCode)

	body, err := io.ReadAll(a.Response.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestHealth_OnMsg_ping(t *testing.T) {
	_, h := NewHealth()
	answer, err := h.OnMsg(context.Background(), lib.PingMessage{})
	require.NoError(t, err)
	assert.IsType(t, lib.PongAnswer{}, answer)
}
