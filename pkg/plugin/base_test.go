package plugin

import (
	"context"
	"testing"
)

func TestBaseHandlerRegistration(t *testing.T) {
	b := NewBase(NewDescriptor("x"))

	if _, ok := b.Handler("execute"); ok {
		t.Error("no default handlers expected")
	}

	called := false
	b.HandleFunc("execute", func(context.Context, *Event, ...string) error {
		called = true
		return nil
	})
	fn, ok := b.Handler("execute")
	if !ok {
		t.Fatal("registered handler did not resolve")
	}
	if err := fn(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("resolved handler is not the registered one")
	}
}

func TestBaseUnbound(t *testing.T) {
	b := NewBase(NewDescriptor("x"))

	if b.Host() != nil {
		t.Error("Host() must be nil before binding")
	}

	ran := false
	b.Synchronize("lock", func() { ran = true })
	if !ran {
		t.Error("unbound Synchronize must run fn directly")
	}

	cfg := b.Config()
	if cfg == nil {
		t.Fatal("unbound Config() must not be nil")
	}
	if cfg.IsSet("anything") || cfg.GetString("anything") != "" {
		t.Error("unbound Config() must be empty")
	}

	if b.Logger() == nil {
		t.Error("unbound Logger() must not be nil")
	}
}
