package runtimeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const apiVersion = "2018-06-01"

const (
	contentTypeJSON  = "application/json"
	contentTypeError = "application/vnd.aws.lambda.error+json"
)

// Response HTTP 响应
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client speaks the runtime API: it fetches the next invocation event
// and reports results and errors back to the control plane.
type Client struct {
	*Options
}

// NewClient 创建新的客户端实例
func NewClient(opts ...Option) *Client {
	return &Client{
		Options: NewOptions(opts...),
	}
}

// Next long-polls the control plane for the next invocation event. It
// blocks until an event is available. The response headers carry the
// per-invocation context fields; the body is the event payload.
func (c *Client) Next(ctx context.Context) (*Response, error) {
	resp, err := c.do(ctx, http.MethodGet, "/runtime/invocation/next", nil, "", false)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp.StatusCode) {
		return nil, &StatusError{Op: "next", StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// ReportResponse submits a successful result for the given request id.
//
// The control plane's answer is classified three ways: 2xx is success,
// 413 is ErrPayloadTooLarge (the caller converts it into an error
// report for the same request id), any other non-2xx is a StatusError.
func (c *Client) ReportResponse(ctx context.Context, requestID string, payload []byte) error {
	path := "/runtime/invocation/" + requestID + "/response"
	resp, err := c.do(ctx, http.MethodPost, path, payload, contentTypeJSON, true)
	if err != nil {
		return err
	}
	switch {
	case is2xx(resp.StatusCode):
		return nil
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	default:
		return &StatusError{Op: "response", StatusCode: resp.StatusCode}
	}
}

// ReportError submits a structured error for the given request id.
func (c *Client) ReportError(ctx context.Context, requestID string, errObj *ErrorObject) error {
	path := "/runtime/invocation/" + requestID + "/error"
	return c.reportError(ctx, "error", path, errObj)
}

// ReportInitError submits a structured error to the initialization
// endpoint. Used when no request id exists to report against.
func (c *Client) ReportInitError(ctx context.Context, errObj *ErrorObject) error {
	return c.reportError(ctx, "init/error", "/runtime/init/error", errObj)
}

func (c *Client) reportError(ctx context.Context, op, path string, errObj *ErrorObject) error {
	body, err := json.Marshal(errObj)
	if err != nil {
		return fmt.Errorf("runtimeapi: marshal error object: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, body, contentTypeError, true)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

// do issues a request, retrying connection-level failures with
// exponential backoff (BackoffBase, doubled per retry, MaxAttempts
// total). Application-level statuses are returned to the caller as-is
// and never retried.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, timed bool) (*Response, error) {
	var lastErr error
	backoff := c.BackoffBase
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if attempt > 1 {
			if c.DebugMode {
				log.Printf("[RuntimeAPI] %s %s attempt %d/%d after %v: %v", method, path, attempt, c.MaxAttempts, backoff, lastErr)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		resp, err := c.doOnce(ctx, method, path, body, contentType, timed)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("runtimeapi: %s %s failed after %d attempts: %w", method, path, c.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, contentType string, timed bool) (*Response, error) {
	url := c.BaseURL + "/" + apiVersion + path

	// Report operations are bounded by DefaultTimeout; the next-event
	// long poll is not.
	if timed && c.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DefaultTimeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
