// Package registry tracks the plugins bound to one host: registration
// binds an instance's declaration against the dispatcher, unregistration
// tears its subscriptions down again.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tmn/cinch/pkg/plugin"
)

// Registry manages the bound plugin set for a single host.
type Registry struct {
	mu     sync.Mutex
	host   plugin.Host
	logger *zap.Logger
	bound  map[string]func() // plugin name -> unbind
	order  []string
}

// New creates a registry binding against the given host.
func New(host plugin.Host, logger *zap.Logger) *Registry {
	return &Registry{
		host:   host,
		logger: logger,
		bound:  make(map[string]func()),
	}
}

// Register binds p against the host. A plugin whose required options are
// not configured is skipped: the condition is logged by the binder and
// reported here, but it must not stop the host from registering the rest.
func (r *Registry) Register(p plugin.Plugin) error {
	name := p.Descriptor().Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.bound[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}

	unbind, err := plugin.Bind(r.host, p)
	if err != nil {
		if errors.Is(err, plugin.ErrMissingRequiredOptions) {
			return fmt.Errorf("plugin %q skipped: %w", name, err)
		}
		return fmt.Errorf("binding plugin %q: %w", name, err)
	}

	r.bound[name] = unbind
	r.order = append(r.order, name)
	r.logger.Info("plugin registered", zap.String("name", name))
	return nil
}

// Unregister removes the named plugin's subscriptions. Reports whether the
// plugin was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	unbind, ok := r.bound[name]
	if !ok {
		return false
	}
	unbind()
	delete(r.bound, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info("plugin unregistered", zap.String("name", name))
	return true
}

// UnregisterAll tears down every bound plugin in reverse registration
// order.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		r.bound[name]()
		delete(r.bound, name)
		r.logger.Info("plugin unregistered", zap.String("name", name))
	}
	r.order = nil
}

// Names returns the bound plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
