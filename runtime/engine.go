package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/aura-studio/bootstrap/invocation"
	"github.com/aura-studio/bootstrap/runtimeapi"
)

// EnvRuntimeAPI carries the control-plane address (host:port) the
// platform hands to the process at start.
const EnvRuntimeAPI = "AWS_LAMBDA_RUNTIME_API"

// Error types submitted with error reports.
const (
	errorTypeInit     = "Runtime.InitError"
	errorTypeContext  = "Runtime.ContextDecodeError"
	errorTypeHandler  = "Runtime.HandlerError"
	errorTypeTooLarge = "Runtime.ResponseTooLarge"
	errorTypeReport   = "Runtime.ResponseRejected"
)

// Engine is the runtime loop: it fetches the next invocation event
// from the control plane, assembles the execution context from the
// response headers, drives the handler behind a panic-proof boundary,
// and reports exactly one outcome per fetched invocation.
type Engine struct {
	*Options
	client  *runtimeapi.Client
	handler Handler
	static  *invocation.StaticContext
	running atomic.Int32
}

// NewEngine creates a new Engine instance with the given options.
// The engine starts in running state by default.
func NewEngine(handler Handler, opts ...Option) *Engine {
	e := &Engine{
		Options: NewOptions(opts...),
		handler: handler,
	}
	if e.Address == "" {
		e.Address = os.Getenv(EnvRuntimeAPI)
	}
	e.client = runtimeapi.NewClient(
		runtimeapi.WithAddress(e.Address),
		runtimeapi.WithMaxAttempts(e.MaxAttempts),
		runtimeapi.WithBackoffBase(e.BackoffBase),
		runtimeapi.WithDebugMode(e.DebugMode),
	)
	e.running.Store(1)
	return e
}

// Start marks the engine as running.
func (e *Engine) Start() {
	e.running.Store(1)
}

// Stop makes the engine leave the loop after the in-flight invocation
// has been fully reported. There is no way to abort an in-flight
// handler call.
func (e *Engine) Stop() {
	e.running.Store(0)
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	return e.running.Load() == 1
}

// Run executes the runtime loop until the engine is stopped or a
// non-recoverable failure occurs. Under normal operation it never
// returns: one invocation is fetched, processed and reported at a
// time, strictly in order.
func (e *Engine) Run(ctx context.Context) error {
	static, err := invocation.StaticFromEnv()
	if err != nil {
		return e.reportInitError(ctx, err)
	}
	e.static = static

	if e.DebugMode {
		log.Printf("[Runtime] Cold start: function=%s version=%s memory=%dMB api=%s",
			static.FunctionName, static.FunctionVersion, static.MemoryLimitInMB, e.Address)
	}

	for e.IsRunning() {
		if err := e.processNext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// processNext runs one full cycle: fetch, assemble, invoke, report.
func (e *Engine) processNext(ctx context.Context) error {
	resp, err := e.client.Next(ctx)
	if err != nil {
		// A control plane that cannot hand out events is nothing the
		// loop can route around, and there is no request id to report
		// a per-invocation error against.
		return e.reportInitError(ctx, fmt.Errorf("runtime: fetch next invocation: %w", err))
	}

	requestID, err := invocation.RequestID(resp.Headers)
	if err != nil {
		return e.reportInitError(ctx, err)
	}

	if e.DebugMode {
		log.Printf("[Runtime] Invocation %s: %d byte event", requestID, len(resp.Body))
	}

	ictx, err := invocation.Assemble(e.static, resp.Headers)
	if err != nil {
		// The request id is independently validated above and stays
		// trustworthy even when the rest of the context is not; user
		// logic is never invoked with a partial context.
		return e.reportError(ctx, requestID, errorTypeContext, err.Error())
	}
	ictx.PropagateTrace()

	payload, err := e.invoke(ctx, ictx, resp.Body)
	if err != nil {
		if e.DebugMode {
			log.Printf("[Runtime] Invocation %s failed: %v", requestID, err)
		}
		return e.reportError(ctx, requestID, errorTypeHandler, err.Error())
	}

	err = e.client.ReportResponse(ctx, requestID, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, runtimeapi.ErrPayloadTooLarge):
		// Recoverable: rewrite the oversized result into an error
		// report for the same request id, never retry the submission.
		return e.reportError(ctx, requestID, errorTypeTooLarge,
			"response payload exceeds the maximum size accepted by the control plane")
	default:
		return e.reportError(ctx, requestID, errorTypeReport, err.Error())
	}
}

// invoke drives the handler under the assembled execution context.
// Any panic raised by user logic is converted into an ordinary error
// here: a terminated process could neither report the failure nor
// serve later invocations in the same container.
func (e *Engine) invoke(ctx context.Context, ic *invocation.Context, event []byte) (payload []byte, err error) {
	gctx, cancel := ic.NewGoContext(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return e.handler.Invoke(gctx, event)
}

// reportError submits a per-invocation error report. The loop
// continues afterwards; only a failure of the report itself, the last
// resort, propagates and terminates the loop.
func (e *Engine) reportError(ctx context.Context, requestID, errorType, message string) error {
	if e.DebugMode {
		log.Printf("[Runtime] Invocation %s error report: %s: %s", requestID, errorType, message)
	}
	errObj := runtimeapi.NewErrorObject(errorType, message)
	if err := e.client.ReportError(ctx, requestID, errObj); err != nil {
		return fmt.Errorf("runtime: report error for invocation %s: %w", requestID, err)
	}
	return nil
}

// reportInitError submits an initialization error and returns the
// cause so the caller halts. Used for every failure that has no
// request id to report against.
func (e *Engine) reportInitError(ctx context.Context, cause error) error {
	if e.DebugMode {
		log.Printf("[Runtime] Init error report: %v", cause)
	}
	errObj := runtimeapi.NewErrorObject(errorTypeInit, cause.Error())
	if err := e.client.ReportInitError(ctx, errObj); err != nil {
		return fmt.Errorf("runtime: report init error: %v (cause: %w)", err, cause)
	}
	return cause
}
