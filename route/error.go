package route

import "errors"

var ErrInvalidParameter = errors.New("invalid parameter")
