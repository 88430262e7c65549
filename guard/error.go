package guard

import "errors"

var (
	// ErrInvalidParameter is returned when a guard is built from unusable
	// arguments.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is returned when a required parameter is nil.
	ErrNilParameter = errors.New("nil parameter")
)
