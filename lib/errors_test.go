package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	err := HTTPError(404, "No plugin matched")
	assert.Equal(t, ErrHTTP, err.Kind)
	assert.Equal(t, 404, err.Status)
	assert.Equal(t, "http 404: No plugin matched", err.Error())
}

func TestRuntimeError(t *testing.T) {
	err := RuntimeError(AlreadyRegistered, "api")
	assert.Equal(t, ErrRuntime, err.Kind)
	assert.Equal(t, "runtime error already_registered: api", err.Error())
}

func TestNotSupportedError(t *testing.T) {
	err := NotSupportedError()
	assert.Equal(t, ErrNotSupported, err.Kind)
	assert.Equal(t, "message not supported", err.Error())
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "http", ErrHTTP.String())
	assert.Equal(t, "runtime", ErrRuntime.String())
	assert.Equal(t, "not_supported", ErrNotSupported.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}

func TestRuntimeErrorKind_String(t *testing.T) {
	assert.Equal(t, "load_failed", LoadFailed.String())
	assert.Equal(t, "instantiate_failed", InstantiateFailed.String())
	assert.Equal(t, "already_registered", AlreadyRegistered.String())
	assert.Equal(t, "kind_not_supported", KindNotSupported.String())
	assert.Equal(t, "unknown", RuntimeErrorKind(99).String())
}
