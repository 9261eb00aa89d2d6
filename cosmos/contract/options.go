package contract

// CallOption tunes a single state changing call.
type CallOption func(*callOptions)

type callOptions struct {
	kind     string
	gasLimit uint64
}

func newCallOptions(kind string, opts []CallOption) *callOptions {
	options := &callOptions{kind: kind}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithGasLimit skips simulation and uses a fixed gas limit.
func WithGasLimit(gasLimit uint64) CallOption {
	return func(o *callOptions) {
		o.gasLimit = gasLimit
	}
}
