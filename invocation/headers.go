package invocation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Headers carried by the next-event response. The control plane may
// send each optional header zero or one times; a second instance is a
// protocol violation, not extra data.
const (
	HeaderRequestID       = "Lambda-Runtime-Aws-Request-Id"
	HeaderTraceID         = "Lambda-Runtime-Trace-Id"
	HeaderFunctionARN     = "Lambda-Runtime-Invoked-Function-Arn"
	HeaderDeadlineMS      = "Lambda-Runtime-Deadline-Ms"
	HeaderClientContext   = "Lambda-Runtime-Client-Context"
	HeaderCognitoIdentity = "Lambda-Runtime-Cognito-Identity"
)

// RequestID extracts the required request id header. Exactly one
// instance must be present; anything else leaves the loop with no id
// to report against and is escalated by the caller.
func RequestID(h http.Header) (string, error) {
	vs := h.Values(HeaderRequestID)
	switch {
	case len(vs) > 1:
		return "", fmt.Errorf("invocation: header %s appears %d times", HeaderRequestID, len(vs))
	case len(vs) == 0 || vs[0] == "":
		return "", fmt.Errorf("invocation: header %s missing", HeaderRequestID)
	}
	return vs[0], nil
}

// optionalValue returns the single instance of an optional header.
// Zero instances is a successful decode of "not provided" (ok=false,
// err=nil); two or more instances is a decode failure. Absent and
// invalid are distinct outcomes and must stay that way.
func optionalValue(h http.Header, key string) (string, bool, error) {
	vs := h.Values(key)
	switch len(vs) {
	case 0:
		return "", false, nil
	case 1:
		return vs[0], true, nil
	default:
		return "", false, fmt.Errorf("invocation: header %s appears %d times", key, len(vs))
	}
}

// deadline decodes the deadline header, a decimal count of milliseconds
// since the Unix epoch, into an absolute time with millisecond
// precision. Absent is reported as the zero time with ok=false.
func deadline(h http.Header) (time.Time, bool, error) {
	v, ok, err := optionalValue(h, HeaderDeadlineMS)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invocation: header %s: invalid milliseconds %q", HeaderDeadlineMS, v)
	}
	return time.UnixMilli(ms), true, nil
}

// clientContext decodes the client-context blob. A present value that
// does not parse is a failure, never treated as absent.
func clientContext(h http.Header) (*lambdacontext.ClientContext, error) {
	v, ok, err := optionalValue(h, HeaderClientContext)
	if err != nil || !ok {
		return nil, err
	}
	var cc lambdacontext.ClientContext
	if err := json.Unmarshal([]byte(v), &cc); err != nil {
		return nil, fmt.Errorf("invocation: header %s: %w", HeaderClientContext, err)
	}
	return &cc, nil
}

// cognitoIdentity decodes the identity blob under the same rules as
// clientContext.
func cognitoIdentity(h http.Header) (*lambdacontext.CognitoIdentity, error) {
	v, ok, err := optionalValue(h, HeaderCognitoIdentity)
	if err != nil || !ok {
		return nil, err
	}
	var ci lambdacontext.CognitoIdentity
	if err := json.Unmarshal([]byte(v), &ci); err != nil {
		return nil, fmt.Errorf("invocation: header %s: %w", HeaderCognitoIdentity, err)
	}
	return &ci, nil
}
