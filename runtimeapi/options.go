package runtimeapi

import (
	"net/http"
	"time"

	"github.com/mohae/deepcopy"
)

// HTTPClient is the transport used for runtime API requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options 客户端配置选项
type Options struct {
	HTTPClient     HTTPClient
	BaseURL        string
	DefaultTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	DebugMode      bool
}

// Option 配置选项接口
type Option interface {
	Apply(o *Options)
}

// OptionFunc 配置选项函数类型
type OptionFunc func(*Options)

// Apply 实现 Option 接口
func (f OptionFunc) Apply(o *Options) { f(o) }

var defaultOptions = &Options{
	DefaultTimeout: 30 * time.Second,
	MaxAttempts:    5,
	BackoffBase:    100 * time.Millisecond,
}

// NewOptions 创建新的配置选项
func NewOptions(opts ...Option) *Options {
	o := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	if o.HTTPClient == nil {
		// No Timeout on the shared client: the next-event call is a long
		// poll and must be allowed to block indefinitely.
		o.HTTPClient = &http.Client{}
	}
	return o
}

// WithHTTPClient 设置 HTTP 客户端
func WithHTTPClient(client HTTPClient) Option {
	return OptionFunc(func(o *Options) {
		o.HTTPClient = client
	})
}

// WithBaseURL 设置基础 URL
func WithBaseURL(url string) Option {
	return OptionFunc(func(o *Options) {
		o.BaseURL = url
	})
}

// WithAddress sets the base URL from a host:port runtime API address,
// as handed to the process in AWS_LAMBDA_RUNTIME_API.
func WithAddress(addr string) Option {
	return OptionFunc(func(o *Options) {
		o.BaseURL = "http://" + addr
	})
}

// WithDefaultTimeout 设置上报操作的超时时间
func WithDefaultTimeout(timeout time.Duration) Option {
	return OptionFunc(func(o *Options) {
		o.DefaultTimeout = timeout
	})
}

// WithMaxAttempts sets the total number of attempts (first try included)
// for a wire operation that keeps failing at the connection level.
func WithMaxAttempts(n int) Option {
	return OptionFunc(func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	})
}

// WithBackoffBase sets the delay before the first retry. Each further
// retry doubles it. No jitter: the client is the sole consumer of this
// private endpoint.
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
