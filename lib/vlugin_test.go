package lib

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ Count int }

func TestContext_SetGet(t *testing.T) {
	c := NewContext()
	_, ok := Get[widget](c)
	assert.False(t, ok)

	c.Set(widget{Count: 3})
	w, ok := Get[widget](c)
	require.True(t, ok)
	assert.Equal(t, 3, w.Count)

	c.Set(widget{Count: 5})
	w, ok = Get[widget](c)
	require.True(t, ok)
	assert.Equal(t, 5, w.Count, "Set overwrites a prior value of the same type")
}

func TestContext_Get_wrongType(t *testing.T) {
	c := NewContext()
	c.Set("a string")
	_, ok := Get[widget](c)
	assert.False(t, ok)
}

type widgetConfig struct {
	Name string `json:"name"`
}

func TestContext_Config(t *testing.T) {
	raw, err := json.Marshal(widgetConfig{Name: "demo"})
	require.NoError(t, err)

	c := NewContext()
	c.WithConfig(raw)

	cfg, err := Config[widgetConfig](c)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
}

func TestContext_Config_empty(t *testing.T) {
	c := NewContext()
	cfg, err := Config[widgetConfig](c)
	require.NoError(t, err)
	assert.Equal(t, widgetConfig{}, cfg)
}

func TestBase_satisfiesHandler(t *testing.T) {
	type h struct{ Base }
	b := &h{Base: NewBase(nil)}
	assert.NotNil(t, b.Ctx())
	assert.NoError(t, b.OnCreate(nil)) //nolint:staticcheck
}

func TestDescriptor_EffectivePrefix(t *testing.T) {
	cases := []struct {
		name string
		d    Descriptor
		want string
	}{
		{"explicit prefix trimmed", Descriptor{Name: "api", Prefix: " /v1/ "}, "v1"},
		{"default from name", Descriptor{Name: "foo"}, "_foo"},
		{"default preserves builtin convention", Descriptor{Name: "health"}, "_health"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.EffectivePrefix())
		})
	}
}
