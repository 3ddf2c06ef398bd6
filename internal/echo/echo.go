// Package echo is the reference cinch plugin. It exercises every
// declaration form: a match rule with captures, a listener, a CTCP
// command, a pre-hook and a timer.
package echo

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tmn/cinch/pkg/match"
	"github.com/tmn/cinch/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.Plugin = (*Module)(nil)

var (
	descOnce sync.Once
	desc     *plugin.Descriptor
)

// descriptor is the type-level declaration, built once and shared by every
// instance.
func descriptor() *plugin.Descriptor {
	descOnce.Do(func() {
		d := plugin.NewDescriptor("echo")
		d.SetHelp("echo <text> repeats text back at you")
		d.Match(match.Regexp(regexp.MustCompile(`echo (.+)`)), plugin.WithArgs(1))
		d.ListenTo([]plugin.Category{plugin.Private})
		d.OnCommand("version")
		d.Hook(plugin.PreHook, plugin.WithMethod("count"), plugin.AppliesTo(plugin.GroupMatch))
		d.Timer(time.Minute, plugin.WithMethod("tick"), plugin.NotThreaded())
		desc = d
	})
	return desc
}

// Module echoes matched text back to its origin.
type Module struct {
	*plugin.Base

	mu      sync.Mutex
	echoed  int
	version string
}

// New creates an echo instance.
func New() *Module {
	m := &Module{Base: plugin.NewBase(descriptor()), version: "cinch-echo 0.1.0"}
	m.HandleFunc("execute", m.execute)
	m.HandleFunc("listen", m.listen)
	m.HandleFunc("ctcp_version", m.ctcpVersion)
	m.HandleFunc("count", m.count)
	m.HandleFunc("tick", m.tick)
	return m
}

// Echoed returns how many match dispatches the pre-hook has counted.
func (m *Module) Echoed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.echoed
}

func (m *Module) execute(ctx context.Context, e *plugin.Event, args ...string) error {
	if len(args) == 0 {
		return nil
	}
	reply := args[0]
	if shout := m.Config().GetBool("shout"); shout {
		reply = strings.ToUpper(reply)
	}
	return e.Reply(ctx, reply)
}

func (m *Module) listen(_ context.Context, e *plugin.Event, _ ...string) error {
	m.Logger().Debug("private message",
		zap.String("nick", e.Nick),
		zap.String("text", e.Text),
	)
	return nil
}

func (m *Module) ctcpVersion(ctx context.Context, e *plugin.Event, _ ...string) error {
	return e.Reply(ctx, m.version)
}

func (m *Module) count(_ context.Context, _ *plugin.Event, _ ...string) error {
	m.Synchronize("echo.count", func() {
		m.mu.Lock()
		m.echoed++
		m.mu.Unlock()
	})
	return nil
}

func (m *Module) tick(_ context.Context, _ *plugin.Event, _ ...string) error {
	m.Logger().Debug("heartbeat", zap.Int("echoed", m.Echoed()))
	return nil
}
