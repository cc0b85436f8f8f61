package repository

// Option configures a Store implementation.
type Option func(*options)

type options struct {
	maxRecords int
}

// defaultMaxRecords bounds history when no retention is configured.
const defaultMaxRecords = 10000

// WithMaxRecords caps how many records are retained; older ones are pruned.
// Zero or negative keeps the default.
func WithMaxRecords(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRecords = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxRecords: defaultMaxRecords}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
