package provider

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithNow provides an optional func for determining what the current time it
// is. It applies to State and Sessions.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *stOptions:
			v.withNow = now
		case *sessionsOptions:
			v.withNow = now
		}
	}
}

// WithExpirySkew provides an optional skew when checking a State's
// expiration.
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*stOptions); ok {
			v.withExpirySkew = d
		}
	}
}

// WithLogger provides an optional logger for Sessions.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*sessionsOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithStateTTL provides how long a login attempt may take before its state
// expires.
func WithStateTTL(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*sessionsOptions); ok && d > 0 {
			v.withStateTTL = d
		}
	}
}
