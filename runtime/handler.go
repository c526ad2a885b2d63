package runtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler is the canonical shape the engine drives: execution context
// plus raw event payload in, serialized result or failure out. The
// loop is ignorant of how a handler was authored; adapters below wrap
// the narrower conventions into this one interface.
type Handler interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as
// handlers.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Invoke calls f(ctx, payload).
func (f HandlerFunc) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// NewHandler wraps a typed, fallible, context-aware function. The
// event payload is decoded into I and the result serialized from O
// with encoding/json.
func NewHandler[I, O any](fn func(context.Context, I) (O, error)) Handler {
	return HandlerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		var in I
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("runtime: unmarshal event: %w", err)
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("runtime: marshal result: %w", err)
		}
		return data, nil
	})
}

// NewSimpleHandler wraps a typed fallible function that does not take
// a context.
func NewSimpleHandler[I, O any](fn func(I) (O, error)) Handler {
	return NewHandler(func(_ context.Context, in I) (O, error) {
		return fn(in)
	})
}

// NewPureHandler wraps a typed function that cannot fail.
func NewPureHandler[I, O any](fn func(I) O) Handler {
	return NewHandler(func(_ context.Context, in I) (O, error) {
		return fn(in), nil
	})
}

// NewEventHandler wraps a typed function invoked only for its effects;
// the reported result is JSON null.
func NewEventHandler[I any](fn func(context.Context, I) error) Handler {
	return NewHandler(func(ctx context.Context, in I) (any, error) {
		return nil, fn(ctx, in)
	})
}
