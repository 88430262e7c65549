package guard

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

// Recorder receives one call per guard outcome.
type Recorder interface {
	GuardDecision(edge, outcome string)
}

type guardOptions struct {
	withLogger   hclog.Logger
	withRecorder Recorder
	withNow      func() time.Time
}

func guardDefaults() guardOptions {
	return guardOptions{
		withLogger: hclog.NewNullLogger(),
		withNow:    time.Now,
	}
}

func getGuardOpts(opt ...Option) guardOptions {
	opts := guardDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides the logger that receives decision traces. Traces are
// emitted at trace level; pass a null logger to suppress them.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*guardOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithRecorder provides an optional outcome recorder, typically
// metrics.Default.
func WithRecorder(r Recorder) Option {
	return func(o interface{}) {
		if v, ok := o.(*guardOptions); ok {
			v.withRecorder = r
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is when evaluating token expiry.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*guardOptions); ok && now != nil {
			v.withNow = now
		}
	}
}
