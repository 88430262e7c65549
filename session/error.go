package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrFetchFailed is returned when the backend could not produce a
	// profile for a recognized session.
	ErrFetchFailed = errors.New("unable to fetch profile")
)
