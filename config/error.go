package config

import "errors"

var (
	// ErrMissingConfig is returned when a required setting is absent.
	ErrMissingConfig = errors.New("missing required config")

	// ErrInvalidConfig is returned when a setting is present but unusable.
	ErrInvalidConfig = errors.New("invalid config")
)
