package emulator

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
	// FunctionARN is handed to the runtime in the invoked-function-arn
	// header of every event.
	FunctionARN string
	// Timeout controls the deadline header: every event's deadline is
	// enqueue time plus Timeout.
	Timeout time.Duration
	// QueueSize bounds the number of events waiting for a runtime poll.
	QueueSize   int
	ReleaseMode bool
	DebugMode   bool
}

var defaultOptions = &Options{
	FunctionARN: "arn:aws:lambda:us-east-1:000000000000:function:local",
	Timeout:     30 * time.Second,
	QueueSize:   64,
	ReleaseMode: true,
	DebugMode:   false,
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(options)
		}
	}
	return options
}

// WithFunctionARN sets the ARN reported to the runtime.
func WithFunctionARN(arn string) Option {
	return OptionFunc(func(o *Options) {
		o.FunctionARN = arn
	})
}

// WithTimeout sets the per-invocation deadline window.
func WithTimeout(d time.Duration) Option {
	return OptionFunc(func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	})
}

// WithQueueSize sets the pending-invocation queue capacity.
func WithQueueSize(n int) Option {
	return OptionFunc(func(o *Options) {
		if n > 0 {
			o.QueueSize = n
		}
	})
}

// WithReleaseMode toggles gin release mode.
func WithReleaseMode(release bool) Option {
	return OptionFunc(func(o *Options) {
		o.ReleaseMode = release
	})
}

// WithDebugMode enables or disables debug mode
func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}
