package proxy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when a parameter is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is returned when a required parameter is nil.
	ErrNilParameter = errors.New("nil parameter")

	// ErrUnauthenticated is returned when a protected backend call has no
	// credential to carry.
	ErrUnauthenticated = errors.New("no authentication token available")

	// ErrUpstream is wrapped by every UpstreamError.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError describes a backend call that failed or answered with an
// error status. It wraps ErrUpstream.
type UpstreamError struct {
	// StatusCode is the status relayed to the caller: the backend's own, or
	// 502/504 when the backend could not be reached.
	StatusCode int

	// Message is the backend's status text or the transport failure.
	Message string

	// Payload is the backend's response body, unchanged.
	Payload []byte
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUpstream, e.StatusCode, e.Message)
}

// Unwrap returns ErrUpstream.
func (e *UpstreamError) Unwrap() error { return ErrUpstream }
