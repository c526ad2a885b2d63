package invocation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// TraceEnv is the process-wide environment variable read by tracing
// instrumentation. It is overwritten before user logic runs and never
// cleared, so a missing trace id leaves the previous invocation's
// value in place.
const TraceEnv = "_X_AMZN_TRACE_ID"

// ErrContextDecode wraps every per-field decode failure during
// assembly. The caller reports it against the request id; no partial
// context ever escapes.
var ErrContextDecode = errors.New("invocation: unable to decode context from event response")

// Context is the execution context for exactly one invocation: the
// process-wide static context merged with the fields decoded from the
// next-event response headers. It is read-only for user logic and
// discarded once the invocation's outcome is reported.
type Context struct {
	Static *StaticContext

	RequestID          string
	TraceID            string // empty when not provided
	InvokedFunctionARN string // empty when not provided
	Deadline           time.Time
	ClientContext      *lambdacontext.ClientContext
	Identity           *lambdacontext.CognitoIdentity
}

// Assemble decodes every dynamic field independently and merges them
// with the static context. It fails as a whole: if any field is
// invalid, no context is returned at all. Partial contexts handed to
// user logic would be silent correctness bugs, worse than an explicit
// upstream failure.
func Assemble(static *StaticContext, header http.Header) (*Context, error) {
	requestID, err := RequestID(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}
	traceID, _, err := optionalValue(header, HeaderTraceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}
	arn, _, err := optionalValue(header, HeaderFunctionARN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}
	dl, _, err := deadline(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}
	cc, err := clientContext(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}
	ci, err := cognitoIdentity(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextDecode, err)
	}

	return &Context{
		Static:             static,
		RequestID:          requestID,
		TraceID:            traceID,
		InvokedFunctionARN: arn,
		Deadline:           dl,
		ClientContext:      cc,
		Identity:           ci,
	}, nil
}

// PropagateTrace publishes the trace id into TraceEnv. Must run before
// user logic executes; the loop is strictly sequential, so the next
// invocation simply overwrites the value.
func (c *Context) PropagateTrace() {
	if c.TraceID != "" {
		os.Setenv(TraceEnv, c.TraceID)
	}
}

// NewGoContext derives the context.Context handed to user logic. It
// carries a lambdacontext.LambdaContext so handlers written against
// aws-lambda-go read the same request metadata, and the invocation
// deadline when one was provided. The loop itself never cancels an
// in-flight invocation; the deadline is information for the handler.
func (c *Context) NewGoContext(parent context.Context) (context.Context, context.CancelFunc) {
	lc := &lambdacontext.LambdaContext{
		AwsRequestID:       c.RequestID,
		InvokedFunctionArn: c.InvokedFunctionARN,
	}
	if c.ClientContext != nil {
		lc.ClientContext = *c.ClientContext
	}
	if c.Identity != nil {
		lc.Identity = *c.Identity
	}

	ctx := lambdacontext.NewContext(parent, lc)
	if !c.Deadline.IsZero() {
		return context.WithDeadline(ctx, c.Deadline)
	}
	return context.WithCancel(ctx)
}
