package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	assert.True(t, IsTransient(NewTransientError(errors.New("overloaded"), 529)))
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	assert.True(t, IsTransient(fmt.Errorf("extraction call failed: %w", inner)))
}

func TestIsTransient_NilError(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_PlainError(t *testing.T) {
	assert.False(t, IsTransient(errors.New("invalid input: missing field")))
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)))
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	assert.True(t, IsTransient(&net.DNSError{IsTimeout: true, Err: "timeout"}))
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	for _, msg := range []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		assert.True(t, IsTransient(errors.New(msg)), msg)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 405, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 500, te.StatusCode)
	assert.Equal(t, "root cause", te.Error())
}
