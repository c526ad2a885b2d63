package runtimeapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-studio/bootstrap/runtimeapi"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// flakyTransport fails the first n calls at the connection level and
// then delegates to the inner transport.
type flakyTransport struct {
	failures int32
	calls    int32
	inner    runtimeapi.HTTPClient
}

func (t *flakyTransport) Do(req *http.Request) (*http.Response, error) {
	call := atomic.AddInt32(&t.calls, 1)
	if call <= atomic.LoadInt32(&t.failures) {
		return nil, fmt.Errorf("connection refused (call %d)", call)
	}
	if t.inner == nil {
		return nil, errors.New("no inner transport")
	}
	return t.inner.Do(req)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNextReturnsHeadersAndBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2018-06-01/runtime/invocation/next" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Lambda-Runtime-Aws-Request-Id", "abc123")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"name":"World"}`)
	})

	c := runtimeapi.NewClient(runtimeapi.WithBaseURL(srv.URL))
	resp, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if got := resp.Headers.Get("Lambda-Runtime-Aws-Request-Id"); got != "abc123" {
		t.Errorf("request id header = %q", got)
	}
	if string(resp.Body) != `{"name":"World"}` {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestRetrySucceedsBeforeExhaustion(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	transport := &flakyTransport{failures: 3, inner: http.DefaultClient}
	c := runtimeapi.NewClient(
		runtimeapi.WithBaseURL(srv.URL),
		runtimeapi.WithHTTPClient(transport),
		runtimeapi.WithBackoffBase(time.Millisecond),
	)

	if _, err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next error after 3 transient failures: %v", err)
	}
	if got := atomic.LoadInt32(&transport.calls); got != 4 {
		t.Errorf("transport calls = %d, want 4", got)
	}
}

func TestRetryExhaustsAfterFiveAttempts(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	c := runtimeapi.NewClient(
		runtimeapi.WithBaseURL("http://127.0.0.1:0"),
		runtimeapi.WithHTTPClient(transport),
		runtimeapi.WithBackoffBase(time.Millisecond),
	)

	start := time.Now()
	_, err := c.Next(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&transport.calls); got != 5 {
		t.Errorf("transport calls = %d, want 5", got)
	}
	if !strings.Contains(err.Error(), "after 5 attempts") {
		t.Errorf("error = %v, want attempt count in message", err)
	}
	// Backoff doubles per retry: 1 + 2 + 4 + 8 = 15 base units minimum.
	if elapsed < 15*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 15ms of backoff", elapsed)
	}
}

// Given an operation that fails transiently N times and then succeeds,
// the operation succeeds exactly when N < 5.
func TestRetryPolicyProperty(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("succeeds iff transient failures < 5", prop.ForAll(
		func(n int) bool {
			transport := &flakyTransport{failures: int32(n), inner: http.DefaultClient}
			c := runtimeapi.NewClient(
				runtimeapi.WithBaseURL(srv.URL),
				runtimeapi.WithHTTPClient(transport),
				runtimeapi.WithBackoffBase(time.Microsecond),
			)
			err := c.ReportResponse(context.Background(), "abc123", []byte(`"ok"`))
			if n < 5 {
				return err == nil
			}
			return err != nil
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestReportResponseClassification(t *testing.T) {
	var status int32 = http.StatusOK
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	})

	c := runtimeapi.NewClient(
		runtimeapi.WithBaseURL(srv.URL),
		runtimeapi.WithBackoffBase(time.Millisecond),
	)

	// 2xx is success.
	atomic.StoreInt32(&status, http.StatusAccepted)
	if err := c.ReportResponse(context.Background(), "abc123", nil); err != nil {
		t.Errorf("2xx: err = %v, want nil", err)
	}

	// 413 is the one recoverable application error.
	atomic.StoreInt32(&status, http.StatusRequestEntityTooLarge)
	if err := c.ReportResponse(context.Background(), "abc123", nil); !errors.Is(err, runtimeapi.ErrPayloadTooLarge) {
		t.Errorf("413: err = %v, want ErrPayloadTooLarge", err)
	}

	// Everything else is a non-recoverable application error.
	atomic.StoreInt32(&status, http.StatusInternalServerError)
	err := c.ReportResponse(context.Background(), "abc123", nil)
	var se *runtimeapi.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("500: err = %v, want StatusError", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", se.StatusCode)
	}
}

// Application-level statuses are never retried: the three-way
// classification (2xx / 413 / other) holds for a single attempt.
func TestReportResponseStatusProperty(t *testing.T) {
	var status int32 = http.StatusOK
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	})

	c := runtimeapi.NewClient(
		runtimeapi.WithBaseURL(srv.URL),
		runtimeapi.WithBackoffBase(time.Microsecond),
	)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("status classification is three-way and unretried", prop.ForAll(
		func(s int) bool {
			atomic.StoreInt32(&status, int32(s))
			atomic.StoreInt32(&calls, 0)
			err := c.ReportResponse(context.Background(), "abc123", nil)
			if atomic.LoadInt32(&calls) != 1 {
				return false
			}
			switch {
			case s >= 200 && s < 300:
				return err == nil
			case s == http.StatusRequestEntityTooLarge:
				return errors.Is(err, runtimeapi.ErrPayloadTooLarge)
			default:
				var se *runtimeapi.StatusError
				return errors.As(err, &se) && se.StatusCode == s
			}
		},
		gen.IntRange(200, 599),
	))

	properties.TestingRun(t)
}

func TestReportErrorWireContract(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	c := runtimeapi.NewClient(runtimeapi.WithBaseURL(srv.URL))
	errObj := runtimeapi.NewErrorObject("Runtime.HandlerError", "boom")
	if err := c.ReportError(context.Background(), "abc123", errObj); err != nil {
		t.Fatalf("ReportError error: %v", err)
	}

	if gotPath != "/2018-06-01/runtime/invocation/abc123/error" {
		t.Errorf("path = %q", gotPath)
	}
	if gotContentType != "application/vnd.aws.lambda.error+json" {
		t.Errorf("content type = %q", gotContentType)
	}

	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if decoded["errorMessage"] != "boom" || decoded["errorType"] != "Runtime.HandlerError" {
		t.Errorf("error body = %s", gotBody)
	}
	trace, ok := decoded["stackTrace"].([]any)
	if !ok || len(trace) != 0 {
		t.Errorf("stackTrace = %v, want empty array", decoded["stackTrace"])
	}
}

func TestReportInitErrorPath(t *testing.T) {
	var gotPath string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	})

	c := runtimeapi.NewClient(runtimeapi.WithBaseURL(srv.URL))
	if err := c.ReportInitError(context.Background(), runtimeapi.NewErrorObject("Runtime.InitError", "no env")); err != nil {
		t.Fatalf("ReportInitError error: %v", err)
	}
	if gotPath != "/2018-06-01/runtime/init/error" {
		t.Errorf("path = %q", gotPath)
	}
}

// Exhausted retries on error reports propagate the underlying network
// failure instead of being swallowed.
func TestReportErrorExhaustionPropagates(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	c := runtimeapi.NewClient(
		runtimeapi.WithBaseURL("http://127.0.0.1:0"),
		runtimeapi.WithHTTPClient(transport),
		runtimeapi.WithBackoffBase(time.Microsecond),
	)

	err := c.ReportError(context.Background(), "abc123", runtimeapi.NewErrorObject("Runtime.HandlerError", "boom"))
	if err == nil {
		t.Fatal("Expected propagation of exhausted error report")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want underlying network failure in chain", err)
	}
}
