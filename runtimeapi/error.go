package runtimeapi

import (
	"errors"
	"fmt"
)

// ErrorObject is the wire shape the control plane accepts on the error
// and init/error endpoints.
type ErrorObject struct {
	ErrorMessage string   `json:"errorMessage"`
	ErrorType    string   `json:"errorType"`
	StackTrace   []string `json:"stackTrace"`
}

// NewErrorObject builds an ErrorObject with a non-nil stack trace so the
// serialized form always carries "stackTrace": [].
func NewErrorObject(errorType, message string) *ErrorObject {
	return &ErrorObject{
		ErrorMessage: message,
		ErrorType:    errorType,
		StackTrace:   []string{},
	}
}

// ErrPayloadTooLarge is returned by ReportResponse when the control
// plane rejects the result with 413. The caller is expected to rewrite
// the outcome into an error report for the same request id.
var ErrPayloadTooLarge = errors.New("runtimeapi: response payload too large")

// StatusError is an application-level rejection: the control plane was
// reachable but answered with a non-2xx status. It is never retried.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("runtimeapi: %s returned status %d", e.Op, e.StatusCode)
}
