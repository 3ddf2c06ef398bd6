package plugin

import (
	"time"

	"go.uber.org/zap"
)

// Base is the embeddable per-instance runtime. It holds the shared
// type-level descriptor, the handler table the binder resolves against, and
// (after binding) the host reference. Handlers are registered at
// construction time, before Bind; the table is not safe for concurrent
// mutation afterwards.
//
// There are no default "execute" or "listen" handlers: a rule routed to a
// name that was never registered degrades to a missing-handler warning at
// dispatch time, which is exactly what the defaults existed to produce.
type Base struct {
	desc     *Descriptor
	host     Host
	handlers map[string]HandlerFunc
}

// NewBase creates the runtime for one instance of the described type.
func NewBase(d *Descriptor) *Base {
	return &Base{
		desc:     d,
		handlers: make(map[string]HandlerFunc),
	}
}

// Descriptor returns the shared type-level declaration.
func (b *Base) Descriptor() *Descriptor { return b.desc }

// Handler resolves a declared handler name.
func (b *Base) Handler(name string) (HandlerFunc, bool) {
	fn, ok := b.handlers[name]
	return fn, ok
}

// HandleFunc registers the handler a declared rule's method name resolves
// to. Call during construction, before the instance is bound.
func (b *Base) HandleFunc(name string, fn HandlerFunc) {
	b.handlers[name] = fn
}

// AttachHost stores the host reference. Called once by the binder.
func (b *Base) AttachHost(h Host) { b.host = h }

// Host returns the host this instance is bound to, nil before binding.
func (b *Base) Host() Host { return b.host }

// Synchronize runs fn under the host's named mutex. A pure passthrough; an
// unbound instance runs fn directly.
func (b *Base) Synchronize(name string, fn func()) {
	if b.host == nil {
		fn()
		return
	}
	b.host.Synchronize(name, fn)
}

// Config returns the host's option store for this instance's type, or an
// empty store when unbound or unconfigured.
func (b *Base) Config() Options {
	if b.host == nil {
		return emptyOptions{}
	}
	return b.host.PluginOptions(b.desc.Name())
}

// Logger returns the host logger named for this plugin, or a no-op logger
// when unbound.
func (b *Base) Logger() *zap.Logger {
	if b.host == nil {
		return zap.NewNop()
	}
	return b.host.Logger().Named(b.desc.Name())
}

// emptyOptions is the store an unbound instance sees.
type emptyOptions struct{}

func (emptyOptions) IsSet(string) bool                { return false }
func (emptyOptions) Get(string) any                   { return nil }
func (emptyOptions) GetString(string) string          { return "" }
func (emptyOptions) GetInt(string) int                { return 0 }
func (emptyOptions) GetBool(string) bool              { return false }
func (emptyOptions) GetDuration(string) time.Duration { return 0 }
