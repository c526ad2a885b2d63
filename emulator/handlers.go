package emulator

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/aura-studio/bootstrap/invocation"
)

// InstallHandlers sets up the runtime API routes and the synchronous
// invoke endpoint. This method is called automatically by NewEngine.
func (e *Engine) InstallHandlers() {
	e.GET("/2018-06-01/runtime/invocation/next", e.NextEvent)
	e.POST("/2018-06-01/runtime/invocation/:id/response", e.InvocationResponse)
	e.POST("/2018-06-01/runtime/invocation/:id/error", e.InvocationError)
	e.POST("/2018-06-01/runtime/init/error", e.InitError)

	e.POST("/2015-03-31/functions/function/invocations", e.Invocations)
}

// NextEvent hands the oldest pending invocation to the polling
// runtime, blocking until one is available. Context fields travel as
// response headers, the event payload as the body.
func (e *Engine) NextEvent(c *gin.Context) {
	select {
	case p := <-e.queue:
		e.track(p)
		deadline := time.Now().Add(e.Timeout)
		c.Header(invocation.HeaderRequestID, p.id)
		c.Header(invocation.HeaderDeadlineMS, strconv.FormatInt(deadline.UnixMilli(), 10))
		c.Header(invocation.HeaderFunctionARN, e.FunctionARN)
		if e.DebugMode {
			log.Printf("[Emulator] Handed out invocation %s", p.id)
		}
		c.Data(http.StatusOK, "application/json", p.payload)
	case <-c.Request.Context().Done():
		c.Status(http.StatusServiceUnavailable)
	}
}

// InvocationResponse completes a pending invocation with a successful
// result.
func (e *Engine) InvocationResponse(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p, err := e.take(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.done <- result{payload: body}
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// InvocationError completes a pending invocation with a structured
// error object.
func (e *Engine) InvocationError(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p, err := e.take(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if e.DebugMode {
		log.Printf("[Emulator] Invocation %s reported error type %s", p.id, gjson.GetBytes(body, "errorType").String())
	}
	p.done <- result{payload: body, errored: true}
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// InitError records an initialization error reported by a runtime
// that could not start.
func (e *Engine) InitError(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	e.mu.Lock()
	e.initErr = body
	e.mu.Unlock()
	log.Printf("[Emulator] Init error: %s: %s",
		gjson.GetBytes(body, "errorType").String(),
		gjson.GetBytes(body, "errorMessage").String())
	c.JSON(http.StatusAccepted, gin.H{"status": "OK"})
}

// Invocations is the RIE-style synchronous invoke endpoint: it
// enqueues the posted payload and waits for the function's outcome.
// Error outcomes are flagged with the X-Amz-Function-Error header.
func (e *Engine) Invocations(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	// The runtime contract guarantees the event body is valid JSON;
	// the control plane is where that guarantee is enforced.
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	payload, errored, err := e.Invoke(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if errored {
		c.Header("X-Amz-Function-Error", "Unhandled")
	}
	c.Data(http.StatusOK, "application/json", payload)
}
