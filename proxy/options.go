package proxy

import (
	"net/http"
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

// Recorder receives proxy metrics.
type Recorder interface {
	ProxyRequest(method string, status int, elapsed time.Duration)
	Credential(kind string)
}

type proxyOptions struct {
	withLogger     hclog.Logger
	withRecorder   Recorder
	withHTTPClient *http.Client
}

func proxyDefaults() proxyOptions {
	return proxyOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getProxyOpts(opt ...Option) proxyOptions {
	opts := proxyDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides the logger for request summaries and failures.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*proxyOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithRecorder provides an optional metrics recorder, typically
// metrics.Default.
func WithRecorder(r Recorder) Option {
	return func(o interface{}) {
		if v, ok := o.(*proxyOptions); ok {
			v.withRecorder = r
		}
	}
}

// WithHTTPClient replaces the backend client built from the configuration.
// The client's timeout bounds every backend call.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*proxyOptions); ok && c != nil {
			v.withHTTPClient = c
		}
	}
}
