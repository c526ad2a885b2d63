package runtime

import (
	"context"
	"log"
)

// engine is the global engine variable for the runtime package.
var engine *Engine

// Start creates an Engine for the handler and runs the runtime loop.
// It blocks for the lifetime of the process and terminates it when a
// non-recoverable failure occurs.
func Start(handler Handler, opts ...Option) {
	engine = NewEngine(handler, opts...)
	if err := engine.Run(context.Background()); err != nil {
		log.Fatalf("[Runtime] %v", err)
	}
}

// StartHandler wraps a typed, context-aware function and runs it.
func StartHandler[I, O any](fn func(context.Context, I) (O, error), opts ...Option) {
	Start(NewHandler(fn), opts...)
}

// Close stops the engine after the in-flight invocation completes.
func Close() {
	if engine != nil {
		engine.Stop()
	}
}
