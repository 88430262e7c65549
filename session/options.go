package session

import "github.com/hashicorp/go-hclog"

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

type serviceOptions struct {
	withLogger hclog.Logger
	withCache  Cache
}

func serviceDefaults() serviceOptions {
	return serviceOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getServiceOpts(opt ...Option) serviceOptions {
	opts := serviceDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withCache == nil {
		opts.withCache = NewMemoryCache(DefaultCacheSize, DefaultCacheTTL)
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*serviceOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithCache replaces the default MemoryCache.
func WithCache(c Cache) Option {
	return func(o interface{}) {
		if v, ok := o.(*serviceOptions); ok && c != nil {
			v.withCache = c
		}
	}
}
