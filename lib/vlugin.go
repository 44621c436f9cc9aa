// Package lib defines the vlugin contract: the Handler interface, its
// per-plugin Context, the Message/Answer sum types exchanged with dispatch,
// the plugin Descriptor, and the Error taxonomy. It is the one package a
// vlugin author, whether building a static, native, or web plugin, needs to
// import.
package lib

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"reflect"
)

// Request follows standard HTTP semantics: method, URL, headers, body.
// Body may be nil for an empty request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.ReadCloser
}

// Response follows standard HTTP semantics: status, headers, body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Message is the tagged union {Http(Request), Ping} (§3). It is expressed as
// a closed interface: HTTPMessage and PingMessage are its only
// implementations.
type Message interface{ isMessage() }

// HTTPMessage carries an inbound Request.
type HTTPMessage struct{ Request *Request }

// PingMessage carries no data; a Handler that receives it must answer Pong.
type PingMessage struct{}

func (HTTPMessage) isMessage() {}
func (PingMessage) isMessage() {}

// Answer is the tagged union {Http(Response), Pong} (§3).
type Answer interface{ isAnswer() }

// HTTPAnswer carries an outbound Response.
type HTTPAnswer struct{ Response *Response }

// PongAnswer is the mandatory reply to PingMessage.
type PongAnswer struct{}

func (HTTPAnswer) isAnswer() {}
func (PongAnswer) isAnswer() {}

// Handler is the behavioral contract every vlugin implements: it owns a
// Context, responds to OnCreate once, and to OnMsg any number of times
// without ever mutating its Context again (§3).
type Handler interface {
	// OnCreate runs exactly once, before the first OnMsg. Implementations
	// may populate their Context here (state, or config consumed from
	// Context.Config).
	OnCreate(ctx context.Context) error

	// OnMsg handles one Message and returns the matching Answer, or an
	// Error. Must not mutate the Handler's Context.
	OnMsg(ctx context.Context, msg Message) (Answer, error)

	// Ctx returns the handler's Context, read-only after OnCreate.
	Ctx() *Context
}

// Context is a typed, key-by-type store plus an optional config slot. It is
// created empty alongside a Handler, mutated only during OnCreate, and
// read-only thereafter (§3, §4.7). It is explicitly not safe for concurrent
// use - the runtime's single-threaded-cooperative model (§5) guarantees it
// never needs to be.
type Context struct {
	values map[reflect.Type]any
	config json.RawMessage
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[reflect.Type]any)}
}

// Set stores value keyed by its exact runtime type, overwriting any prior
// value of that type.
func (c *Context) Set(value any) {
	c.values[reflect.TypeOf(value)] = value
}

// WithConfig sets the config slot; called by the loader/builder during
// construction, before OnCreate runs.
func (c *Context) WithConfig(raw json.RawMessage) {
	c.config = raw
}

// Get retrieves the value of type T, or false if none was Set.
func Get[T any](c *Context) (T, bool) {
	var zero T
	v, ok := c.values[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Config deserializes the stored config into T via JSON. Returns the zero
// value and no error if no config was set.
func Config[T any](c *Context) (T, error) {
	var out T
	if len(c.config) == 0 {
		return out, nil
	}
	err := json.Unmarshal(c.config, &out)
	return out, err
}

// Base is the handler base referenced by §4.7: embed it in a Handler
// implementation to get a ready Context and a no-op OnCreate for free.
type Base struct {
	ctx *Context
}

// NewBase returns a Base with a fresh, empty Context, optionally carrying
// raw config to be read back later via Config[T].
func NewBase(config json.RawMessage) Base {
	c := NewContext()
	c.WithConfig(config)
	return Base{ctx: c}
}

// Ctx satisfies Handler.
func (b *Base) Ctx() *Context { return b.ctx }

// OnCreate satisfies Handler with a no-op; embedders override it when they
// need to set up state.
func (b *Base) OnCreate(context.Context) error { return nil }
