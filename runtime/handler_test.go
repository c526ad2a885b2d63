package runtime

import (
	"context"
	"errors"
	"testing"
)

type greetIn struct {
	Name string `json:"name"`
}

type greetOut struct {
	Greeting string `json:"greeting"`
}

func TestNewHandlerRoundTrip(t *testing.T) {
	h := NewHandler(func(_ context.Context, in greetIn) (greetOut, error) {
		return greetOut{Greeting: "Hello " + in.Name + "!"}, nil
	})

	out, err := h.Invoke(context.Background(), []byte(`{"name":"World"}`))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(out) != `{"greeting":"Hello World!"}` {
		t.Errorf("out = %s", out)
	}
}

func TestNewHandlerInvalidEvent(t *testing.T) {
	h := NewHandler(func(_ context.Context, in greetIn) (greetOut, error) {
		t.Error("handler invoked with undecodable event")
		return greetOut{}, nil
	})

	if _, err := h.Invoke(context.Background(), []byte(`{broken`)); err == nil {
		t.Error("Expected error for undecodable event payload")
	}
}

func TestNewHandlerPropagatesError(t *testing.T) {
	want := errors.New("no greeting today")
	h := NewHandler(func(_ context.Context, _ greetIn) (greetOut, error) {
		return greetOut{}, want
	})

	_, err := h.Invoke(context.Background(), []byte(`{}`))
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestNewSimpleHandler(t *testing.T) {
	h := NewSimpleHandler(func(in greetIn) (greetOut, error) {
		return greetOut{Greeting: "Hi " + in.Name}, nil
	})

	out, err := h.Invoke(context.Background(), []byte(`{"name":"Ada"}`))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(out) != `{"greeting":"Hi Ada"}` {
		t.Errorf("out = %s", out)
	}
}

func TestNewPureHandler(t *testing.T) {
	h := NewPureHandler(func(in greetIn) string {
		return in.Name
	})

	out, err := h.Invoke(context.Background(), []byte(`{"name":"Ada"}`))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(out) != `"Ada"` {
		t.Errorf("out = %s", out)
	}
}

func TestNewEventHandler(t *testing.T) {
	var seen string
	h := NewEventHandler(func(_ context.Context, in greetIn) error {
		seen = in.Name
		return nil
	})

	out, err := h.Invoke(context.Background(), []byte(`{"name":"Ada"}`))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if seen != "Ada" {
		t.Errorf("seen = %q", seen)
	}
	if string(out) != "null" {
		t.Errorf("out = %s, want null", out)
	}
}

func TestHandlerFunc(t *testing.T) {
	h := HandlerFunc(func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	out, err := h.Invoke(context.Background(), []byte(`{"echo":true}`))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(out) != `{"echo":true}` {
		t.Errorf("out = %s", out)
	}
}
