package lib

import (
	"encoding/json"
	"strings"
)

// Kind tags how a Descriptor's handler is instantiated (§3).
type Kind string

// enum of all descriptor kinds
const (
	KindStatic Kind = "static"
	KindNative Kind = "native"
	KindWeb    Kind = "web"
)

// Descriptor is the serializable definition of a plugin: name, prefix, kind,
// and opaque config. See §3, §6 for the JSON wire schema.
type Descriptor struct {
	Name   string          `json:"name"`
	Prefix string          `json:"prefix,omitempty"`
	Kind   Kind            `json:"type"`
	Path   string          `json:"path,omitempty"`   // set iff Kind == KindNative
	URL    string          `json:"url,omitempty"`    // set iff Kind == KindWeb
	Config json.RawMessage `json:"config,omitempty"` // passed verbatim to the handler
}

// EffectivePrefix returns Prefix trimmed of leading/trailing '/' and spaces,
// or "_"+Name (trimmed the same way) if Prefix is empty - see §6's "Prefix
// convention" and the built-in plugins (_health, _plugins).
func (d Descriptor) EffectivePrefix() string {
	p := d.Prefix
	if p == "" {
		p = "_" + d.Name
	}
	return strings.Trim(strings.TrimSpace(p), "/")
}
