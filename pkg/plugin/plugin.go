// Package plugin provides the public SDK for cinch plugins. A plugin type
// declares its behavior once in a Descriptor (which message patterns it
// matches, which raw events it listens to, its timers, CTCP commands and
// hook brackets); Bind compiles that declaration into live subscriptions
// against a Host dispatcher when an instance is attached.
package plugin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmn/cinch/pkg/match"
)

// Category identifies a class of inbound events. The vocabulary covers raw
// protocol command names and numeric replies (registered verbatim, e.g.
// "PRIVMSG" or "001") plus the synthetic categories below.
type Category string

// Synthetic event categories.
const (
	Message Category = "message" // any PRIVMSG, channel or private
	Channel Category = "channel" // channel PRIVMSG
	Private Category = "private" // direct PRIVMSG
	CTCP    Category = "ctcp"    // CTCP request embedded in a PRIVMSG
	Action  Category = "action"  // CTCP ACTION
	Error   Category = "error"   // protocol ERROR
	Connect Category = "connect" // lifecycle: fired once per successful connection
)

// Event is the transport-level message handed to dispatch closures. The
// host dispatcher constructs it; this core only routes it.
type Event struct {
	ID          string
	Command     string // raw protocol command or numeric reply
	Nick        string // originating nick, if any
	Channel     string // empty for private messages
	Text        string
	CTCPCommand string // set when the event carries a CTCP request
	Time        time.Time

	// Replier, when set by the host, lets handlers respond on the
	// originating event.
	Replier Replier
}

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(command, nick, channel, text string) *Event {
	return &Event{
		ID:      uuid.New().String(),
		Command: command,
		Nick:    nick,
		Channel: channel,
		Text:    text,
		Time:    time.Now(),
	}
}

// Reply sends text back on the originating event via the host's replier.
func (e *Event) Reply(ctx context.Context, text string) error {
	if e.Replier == nil {
		return fmt.Errorf("event %s has no replier", e.ID)
	}
	return e.Replier.Reply(ctx, e, text)
}

// Replier delivers replies for events. Implemented by the host transport.
type Replier interface {
	Reply(ctx context.Context, e *Event, text string) error
}

// HandlerFunc processes a dispatched event. args carries the captured
// arguments (regexp capture groups for matchers), already adapted to the
// rule's declared argument contract. Timer-routed handlers receive a nil
// event and no args.
type HandlerFunc func(ctx context.Context, e *Event, args ...string) error

// TimerFunc is the block form of a timer target.
type TimerFunc func(ctx context.Context)

// Plugin is a live plugin instance. Descriptor returns the type-level
// declaration (shared across instances, read-only after declaration time);
// Handler resolves a declared handler name to the instance's registered
// function. Embedding Base provides both.
type Plugin interface {
	Descriptor() *Descriptor
	Handler(name string) (HandlerFunc, bool)
}

// HostAttacher is an optional capability: instances implementing it receive
// their host reference at bind time. Base implements it.
type HostAttacher interface {
	AttachHost(h Host)
}

// Options is read-only access to a plugin's configured options, scoped to
// one plugin type. Wraps Viper in the default host, replaceable in tests.
type Options interface {
	IsSet(key string) bool
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
}

// Host is the dispatcher-side boundary the binder registers against.
type Host interface {
	// On registers handler to run when an event of the given category
	// matches spec. spec may be nil for pure category listeners. The
	// returned function removes the subscription.
	On(cat Category, spec *match.Spec, handler HandlerFunc) (unsubscribe func())

	// OnConnect registers a lifecycle callback fired once per successful
	// connection (and again after each reconnect).
	OnConnect(fn func(ctx context.Context)) (unsubscribe func())

	// ScheduleTimer begins invoking fn every interval for the rest of the
	// host's lifetime. When threaded, each invocation runs in its own
	// goroutine.
	ScheduleTimer(interval time.Duration, threaded bool, fn TimerFunc)

	// PluginOptions returns the option store scoped to the named plugin
	// type. Never nil; an unconfigured plugin gets an empty store.
	PluginOptions(name string) Options

	// DefaultPrefix and DefaultSuffix are the host-global fallbacks used
	// when a descriptor declares no prefix or suffix of its own.
	DefaultPrefix() match.Component
	DefaultSuffix() match.Component

	// Synchronize runs fn while holding the named host mutex.
	Synchronize(name string, fn func())

	// Logger is the host's diagnostic sink.
	Logger() *zap.Logger
}

// NameOf derives a plugin name from a value's dynamic type: the lower-cased
// last path segment of its type name. Convenience for plugins that name
// their descriptor after the implementing type.
func NameOf(v any) string {
	t := fmt.Sprintf("%T", v)
	t = strings.TrimLeft(t, "*")
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return strings.ToLower(t)
}
