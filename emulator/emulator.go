// Package emulator is a local stand-in for the Lambda control plane.
// It serves the runtime API surface a bootstrap process polls, plus an
// RIE-style synchronous invoke endpoint for local development and
// end-to-end tests.
package emulator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type result struct {
	payload []byte
	errored bool
}

// pending is one enqueued invocation waiting to be polled by the
// runtime and completed through the response or error endpoint.
type pending struct {
	id      string
	payload []byte
	done    chan result
}

// Engine is the emulator core: a bounded queue of pending invocations
// plus the gin routes that move them through the runtime protocol.
type Engine struct {
	*Options
	*gin.Engine

	queue chan *pending

	mu       sync.Mutex
	inflight map[string]*pending
	initErr  []byte
}

// NewEngine creates a new emulator Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		Options:  NewOptions(opts...),
		inflight: make(map[string]*pending),
	}
	e.queue = make(chan *pending, e.QueueSize)

	if e.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	e.Engine = gin.New()
	e.Engine.Use(gin.Recovery())

	e.InstallHandlers()
	return e
}

// Invoke enqueues an event payload and blocks until the function
// reports an outcome. The second return value is true when the
// function reported an error; the payload is then the structured
// error object tagged with the request id.
func (e *Engine) Invoke(ctx context.Context, payload []byte) ([]byte, bool, error) {
	p := &pending{
		id:      uuid.NewString(),
		payload: payload,
		done:    make(chan result, 1),
	}

	select {
	case e.queue <- p:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	if e.DebugMode {
		log.Printf("[Emulator] Enqueued invocation %s (%d bytes)", p.id, len(payload))
	}

	select {
	case res := <-p.done:
		if res.errored {
			body, err := sjson.SetBytes(res.payload, "requestId", p.id)
			if err != nil {
				body = res.payload
			}
			if e.DebugMode {
				log.Printf("[Emulator] Invocation %s errored: %s", p.id, gjson.GetBytes(res.payload, "errorType").String())
			}
			return body, true, nil
		}
		return res.payload, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// LastInitError returns the most recent error body posted to the
// init/error endpoint, or nil.
func (e *Engine) LastInitError() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initErr
}

// take removes a pending invocation from the in-flight table.
func (e *Engine) take(requestID string) (*pending, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.inflight[requestID]
	if !ok {
		return nil, fmt.Errorf("emulator: unknown request id: %s", requestID)
	}
	delete(e.inflight, requestID)
	return p, nil
}

func (e *Engine) track(p *pending) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[p.id] = p
}
