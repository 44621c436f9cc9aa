package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/valor/lib"
)

func TestDummy_Load(t *testing.T) {
	d := Dummy{}
	factory, err := d.Load(context.Background(), lib.Descriptor{Name: "anything", Kind: lib.KindNative})
	require.NoError(t, err)

	h, err := factory(context.Background(), nil)
	require.NoError(t, err)

	answer, err := h.OnMsg(context.Background(), lib.PingMessage{})
	require.NoError(t, err)
	assert.IsType(t, lib.PongAnswer{}, answer)

	answer, err = h.OnMsg(context.Background(), lib.HTTPMessage{})
	require.NoError(t, err)
	assert.IsType(t, lib.PongAnswer{}, answer)
}

func TestChain_fallsThroughKindNotSupported(t *testing.T) {
	native := &Native{PathFor: func(string) string { return "/nonexistent.so" }}
	chain := Chain{native, Dummy{}}

	factory, err := chain.Load(context.Background(), lib.Descriptor{Name: "x", Kind: lib.KindWeb})
	require.NoError(t, err, "native reports KindNotSupported for a non-native descriptor, chain falls through to Dummy")
	_, err = factory(context.Background(), nil)
	require.NoError(t, err)
}

func TestChain_allLoadersFail(t *testing.T) {
	chain := Chain{}
	_, err := chain.Load(context.Background(), lib.Descriptor{Name: "x", Kind: lib.KindNative})
	require.Error(t, err)
	lerr, ok := err.(*lib.Error)
	require.True(t, ok)
	assert.Equal(t, lib.KindNotSupported, lerr.Runtime)
}
