package config

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

type loadOptions struct {
	withEnvFiles    []string
	withEnvironment map[string]string
}

func loadDefaults() loadOptions {
	return loadOptions{
		withEnvFiles: []string{".env"},
	}
}

func getLoadOpts(opt ...Option) loadOptions {
	opts := loadDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEnvFiles provides the dotenv files loaded before the environment is
// parsed. Files that do not exist are skipped. Values already present in the
// process environment are never overridden.
func WithEnvFiles(files ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loadOptions); ok {
			o.withEnvFiles = files
		}
	}
}

// WithEnvironment parses the given variables instead of the process
// environment. No dotenv files are read when it is used.
func WithEnvironment(vars map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loadOptions); ok {
			o.withEnvironment = vars
		}
	}
}
