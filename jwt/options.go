package jwt

import "time"

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

type evaluatorOptions struct {
	withClockSkew time.Duration
	withNow       func() time.Time
}

func evaluatorDefaults() evaluatorOptions {
	return evaluatorOptions{
		withNow: time.Now,
	}
}

// getEvaluatorOpts gets the defaults and applies the opt overrides passed
// in.
func getEvaluatorOpts(opt ...Option) evaluatorOptions {
	opts := evaluatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClockSkew provides the tolerated clock drift between the token issuer
// and this process. A token expiring within the skew is not usable.
func WithClockSkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *evaluatorOptions:
			v.withClockSkew = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *evaluatorOptions:
			if now != nil {
				v.withNow = now
			}
		}
	}
}
