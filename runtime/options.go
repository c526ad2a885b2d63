package runtime

import (
	"time"

	"github.com/mohae/deepcopy"
)

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	// Address is the control-plane host:port. When empty the engine
	// falls back to the AWS_LAMBDA_RUNTIME_API environment variable.
	Address     string
	MaxAttempts int
	BackoffBase time.Duration
	DebugMode   bool
}

var defaultOptions = &Options{
	MaxAttempts: 5,
	BackoffBase: 100 * time.Millisecond,
	DebugMode:   false,
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	options.init(opts...)
	return options
}

func (o *Options) init(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
}

// WithAddress sets the control-plane address (host:port).
func WithAddress(addr string) Option {
	return OptionFunc(func(o *Options) {
		o.Address = addr
	})
}

// WithMaxAttempts sets the per-operation attempt budget of the
// control-plane client.
func WithMaxAttempts(n int) Option {
	return OptionFunc(func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	})
}

// WithBackoffBase sets the client's initial retry backoff.
func WithBackoffBase(d time.Duration) Option {
	return OptionFunc(func(o *Options) {
		if d > 0 {
			o.BackoffBase = d
		}
	})
}

// WithDebugMode enables or disables debug mode
func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}
