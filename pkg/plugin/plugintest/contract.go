// Package plugintest provides shared contract tests that verify any
// plugin.Plugin implementation declares itself coherently and binds
// cleanly. Every plugin's test file should call TestPluginContract.
package plugintest

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tmn/cinch/pkg/match"
	"github.com/tmn/cinch/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.Host = (*Host)(nil)

// TestPluginContract runs behavioral contract tests against a plugin
// implementation. Call it from the plugin's _test.go:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return echo.New() })
//	}
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()

	t.Run("descriptor_has_name", func(t *testing.T) {
		d := factory().Descriptor()
		if d == nil {
			t.Fatal("Descriptor() must not be nil")
		}
		if d.Name() == "" {
			t.Error("Descriptor().Name() must not be empty")
		}
	})

	t.Run("descriptor_shared_across_instances", func(t *testing.T) {
		if factory().Descriptor() != factory().Descriptor() {
			t.Error("instances must share one type-level descriptor")
		}
	})

	t.Run("binds_cleanly", func(t *testing.T) {
		h := NewHost()
		unbind, err := plugin.Bind(h, factory())
		if err != nil {
			t.Fatalf("Bind() error = %v", err)
		}
		unbind()
		if n := h.SubscriptionCount(); n != 0 {
			t.Errorf("after unbind, %d subscriptions remain, want 0", n)
		}
	})

	t.Run("hook_methods_resolve", func(t *testing.T) {
		p := factory()
		for _, h := range p.Descriptor().HooksFor("") {
			if _, ok := p.Handler(h.Method); !ok {
				t.Errorf("hook method %q has no registered handler", h.Method)
			}
		}
	})

	t.Run("command_methods_resolve", func(t *testing.T) {
		p := factory()
		for _, c := range p.Descriptor().Commands() {
			method := "ctcp_" + strings.ToLower(c)
			if _, ok := p.Handler(method); !ok {
				t.Errorf("command %q has no handler %q", c, method)
			}
		}
	})
}

// Host is a recording plugin.Host for tests.
type Host struct {
	Subs        []Sub
	ConnectSubs []func(ctx context.Context)
	Timers      []Timer
	Opts        map[string]plugin.Options
	Prefix      match.Component
	Suffix      match.Component
	Log         *zap.Logger
}

// Sub records one On registration.
type Sub struct {
	Cat     plugin.Category
	Spec    *match.Spec
	Fn      plugin.HandlerFunc
	removed bool
}

// Timer records one ScheduleTimer call.
type Timer struct {
	Interval time.Duration
	Threaded bool
	Fn       plugin.TimerFunc
}

// NewHost creates a recording host with a development logger and no
// configured options.
func NewHost() *Host {
	logger, _ := zap.NewDevelopment()
	return &Host{
		Opts: make(map[string]plugin.Options),
		Log:  logger,
	}
}

func (h *Host) On(cat plugin.Category, spec *match.Spec, fn plugin.HandlerFunc) func() {
	h.Subs = append(h.Subs, Sub{Cat: cat, Spec: spec, Fn: fn})
	i := len(h.Subs) - 1
	return func() { h.Subs[i].removed = true }
}

func (h *Host) OnConnect(fn func(ctx context.Context)) func() {
	h.ConnectSubs = append(h.ConnectSubs, fn)
	i := len(h.ConnectSubs) - 1
	return func() { h.ConnectSubs[i] = nil }
}

// FireConnect invokes every registered connect callback once.
func (h *Host) FireConnect(ctx context.Context) {
	for _, fn := range h.ConnectSubs {
		if fn != nil {
			fn(ctx)
		}
	}
}

func (h *Host) ScheduleTimer(interval time.Duration, threaded bool, fn plugin.TimerFunc) {
	h.Timers = append(h.Timers, Timer{Interval: interval, Threaded: threaded, Fn: fn})
}

func (h *Host) PluginOptions(name string) plugin.Options {
	if o, ok := h.Opts[name]; ok {
		return o
	}
	return emptyOptions{}
}

func (h *Host) DefaultPrefix() match.Component { return h.Prefix }
func (h *Host) DefaultSuffix() match.Component { return h.Suffix }

func (h *Host) Synchronize(_ string, fn func()) { fn() }

func (h *Host) Logger() *zap.Logger { return h.Log }

// SubscriptionCount returns the number of live (not unsubscribed)
// registrations.
func (h *Host) SubscriptionCount() int {
	n := 0
	for _, s := range h.Subs {
		if !s.removed {
			n++
		}
	}
	return n
}

// ByCategory returns the live subscriptions of one category.
func (h *Host) ByCategory(cat plugin.Category) []Sub {
	var out []Sub
	for _, s := range h.Subs {
		if !s.removed && s.Cat == cat {
			out = append(out, s)
		}
	}
	return out
}

type emptyOptions struct{}

func (emptyOptions) IsSet(string) bool                { return false }
func (emptyOptions) Get(string) any                   { return nil }
func (emptyOptions) GetString(string) string          { return "" }
func (emptyOptions) GetInt(string) int                { return 0 }
func (emptyOptions) GetBool(string) bool              { return false }
func (emptyOptions) GetDuration(string) time.Duration { return 0 }
