package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
)
