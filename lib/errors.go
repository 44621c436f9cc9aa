package lib

import "fmt"

// ErrorKind distinguishes the three shapes an Error can take: a status-bearing
// protocol error surfaced over HTTP, a registration-time runtime error, or a
// handler telling dispatch it can't deal with the Message it was given.
type ErrorKind int

// enum of all error kinds
const (
	ErrHTTP ErrorKind = iota
	ErrRuntime
	ErrNotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case ErrHTTP:
		return "http"
	case ErrRuntime:
		return "runtime"
	case ErrNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// RuntimeErrorKind enumerates registration-time failures, never surfaced
// as an HTTP status directly - the registry plugin translates them (§4.4).
type RuntimeErrorKind int

// enum of all runtime error kinds
const (
	LoadFailed RuntimeErrorKind = iota
	InstantiateFailed
	AlreadyRegistered
	KindNotSupported
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case LoadFailed:
		return "load_failed"
	case InstantiateFailed:
		return "instantiate_failed"
	case AlreadyRegistered:
		return "already_registered"
	case KindNotSupported:
		return "kind_not_supported"
	default:
		return "unknown"
	}
}

// Error is the vlugin contract's error taxonomy: {Http(status, message),
// Runtime(kind), NotSupported}. Handlers return it from OnMsg; the dispatch
// engine never translates it, only the registry plugin does (§4.4, §7).
type Error struct {
	Kind ErrorKind

	// Status/Message are set when Kind == ErrHTTP.
	Status  int
	Message string

	// Runtime/Name are set when Kind == ErrRuntime. Name is the plugin
	// name (LoadFailed, InstantiateFailed, AlreadyRegistered) or a
	// stringified descriptor kind (KindNotSupported).
	Runtime RuntimeErrorKind
	Name    string
}

// HTTPError builds a protocol error carrying an HTTP status and message.
func HTTPError(status int, message string) *Error {
	return &Error{Kind: ErrHTTP, Status: status, Message: message}
}

// RuntimeError builds a registration-time error for the named plugin or kind.
func RuntimeError(kind RuntimeErrorKind, name string) *Error {
	return &Error{Kind: ErrRuntime, Runtime: kind, Name: name}
}

// NotSupportedError is returned by a handler that received a Message variant
// it can't handle, e.g. the reverse-proxy plugin receiving Ping.
func NotSupportedError() *Error {
	return &Error{Kind: ErrNotSupported}
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case ErrHTTP:
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	case ErrRuntime:
		return fmt.Sprintf("runtime error %s: %s", e.Runtime, e.Name)
	case ErrNotSupported:
		return "message not supported"
	default:
		return "unknown vlugin error"
	}
}
