package plugin

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmn/cinch/pkg/match"
)

// ArgsAll marks a match rule whose handler accepts every captured argument
// unmodified. It is the default argument contract.
const ArgsAll = -1

// MatchRule binds a message pattern to a handler name.
type MatchRule struct {
	Pattern   match.Component
	UsePrefix bool
	UseSuffix bool
	Method    string

	// Args is the handler's declared extra-argument count: n > 0 passes the
	// first n captures, 0 passes none, negative (ArgsAll) passes all.
	Args int
}

// ListenRule binds a raw event category to a handler name.
type ListenRule struct {
	Category Category
	Method   string
}

// TimerRule binds a recurring invocation to a handler name or a function.
type TimerRule struct {
	Interval time.Duration
	Method   string
	Fn       TimerFunc // used instead of Method when non-nil
	Threaded bool

	// registered flips true the first time the host's connect event fires,
	// and never resets, so reconnects cannot schedule the timer twice.
	registered atomic.Bool
}

// HookPhase selects when a hook runs relative to the handler invocation.
type HookPhase string

// Hook phases.
const (
	PreHook  HookPhase = "pre"
	PostHook HookPhase = "post"
)

// HookGroup names the dispatch categories a hook applies to.
type HookGroup string

// Hook groups.
const (
	GroupMatch  HookGroup = "match"
	GroupListen HookGroup = "listen"
	GroupCTCP   HookGroup = "ctcp"
)

// HookRule is a cross-cutting callback bracketing handler invocations.
type HookRule struct {
	Phase  HookPhase
	Groups []HookGroup
	Method string
}

// Descriptor is one plugin type's declared behavior. It is populated once
// at type-definition time through the declaration API and read-only
// thereafter; instances share it by reference. Declaration calls are
// additive: each call appends, nothing deduplicates.
type Descriptor struct {
	name      string
	prefix    match.Component
	suffix    match.Component
	hasPrefix bool
	hasSuffix bool
	reactOn   Category
	helpText  string
	required  []string
	matchers  []MatchRule
	listeners []ListenRule
	timers    []*TimerRule
	commands  []string
	hooks     map[HookPhase][]HookRule
}

// NewDescriptor creates a descriptor for the named plugin type. The name is
// lower-cased; it doubles as the default match pattern and the key into the
// host's option store.
func NewDescriptor(name string) *Descriptor {
	return &Descriptor{
		name:  strings.ToLower(name),
		hooks: make(map[HookPhase][]HookRule),
	}
}

// RuleOption customizes a single declaration call.
type RuleOption func(*ruleOptions)

type ruleOptions struct {
	method    string
	usePrefix bool
	useSuffix bool
	args      int
	threaded  bool
	groups    []HookGroup
	fn        TimerFunc
}

// WithMethod routes the rule to the named handler.
func WithMethod(name string) RuleOption {
	return func(o *ruleOptions) { o.method = name }
}

// WithoutPrefix exempts a match rule from the effective prefix.
func WithoutPrefix() RuleOption {
	return func(o *ruleOptions) { o.usePrefix = false }
}

// WithoutSuffix exempts a match rule from the effective suffix.
func WithoutSuffix() RuleOption {
	return func(o *ruleOptions) { o.useSuffix = false }
}

// WithArgs declares the handler's extra-argument count for a match rule.
func WithArgs(n int) RuleOption {
	return func(o *ruleOptions) { o.args = n }
}

// NotThreaded runs a timer inline on the scheduler goroutine instead of
// spawning one per tick.
func NotThreaded() RuleOption {
	return func(o *ruleOptions) { o.threaded = false }
}

// AppliesTo restricts a hook to the given dispatch groups.
func AppliesTo(groups ...HookGroup) RuleOption {
	return func(o *ruleOptions) { o.groups = groups }
}

// WithFunc supplies a timer target directly, in place of a handler name.
func WithFunc(fn TimerFunc) RuleOption {
	return func(o *ruleOptions) { o.fn = fn }
}

// Match appends a message pattern rule. Defaults: the effective prefix and
// suffix apply, the handler is "execute", and all captured arguments are
// passed through.
func (d *Descriptor) Match(pattern match.Component, opts ...RuleOption) *Descriptor {
	o := ruleOptions{method: "execute", usePrefix: true, useSuffix: true, args: ArgsAll}
	for _, opt := range opts {
		opt(&o)
	}
	d.matchers = append(d.matchers, MatchRule{
		Pattern:   pattern,
		UsePrefix: o.usePrefix,
		UseSuffix: o.useSuffix,
		Method:    o.method,
		Args:      o.args,
	})
	return d
}

// ListenTo appends one listen rule per category. The default handler is
// "listen".
func (d *Descriptor) ListenTo(cats []Category, opts ...RuleOption) *Descriptor {
	o := ruleOptions{method: "listen"}
	for _, opt := range opts {
		opt(&o)
	}
	for _, cat := range cats {
		d.listeners = append(d.listeners, ListenRule{Category: cat, Method: o.method})
	}
	return d
}

// OnCommand declares an out-of-band CTCP command. The name is stored
// upper-cased; the handler name is always derived at dispatch time as
// "ctcp_" plus the lower-cased command.
func (d *Descriptor) OnCommand(name string) *Descriptor {
	d.commands = append(d.commands, strings.ToUpper(name))
	return d
}

// Timer appends a recurring-invocation rule. Defaults: the handler is
// "timer" and each tick runs in its own goroutine. Method-routed timer
// handlers are invoked with a nil event and no arguments.
func (d *Descriptor) Timer(interval time.Duration, opts ...RuleOption) *Descriptor {
	o := ruleOptions{method: "timer", threaded: true}
	for _, opt := range opts {
		opt(&o)
	}
	d.timers = append(d.timers, &TimerRule{
		Interval: interval,
		Method:   o.method,
		Fn:       o.fn,
		Threaded: o.threaded,
	})
	return d
}

// Hook appends a cross-cutting callback for the phase. Defaults: the
// handler is "hook" and it applies to every dispatch group.
func (d *Descriptor) Hook(phase HookPhase, opts ...RuleOption) *Descriptor {
	o := ruleOptions{
		method: "hook",
		groups: []HookGroup{GroupMatch, GroupListen, GroupCTCP},
	}
	for _, opt := range opts {
		opt(&o)
	}
	d.hooks[phase] = append(d.hooks[phase], HookRule{
		Phase:  phase,
		Groups: o.groups,
		Method: o.method,
	})
	return d
}

// Set assigns one scalar descriptor attribute by key. Recognized keys:
// "help", "prefix", "suffix", "react_on", "plugin_name" and
// "required_options". Unknown keys and mistyped values fail with
// ErrInvalidArgument.
func (d *Descriptor) Set(key string, value any) error {
	switch key {
	case "help":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: help wants a string, got %T", ErrInvalidArgument, value)
		}
		d.SetHelp(s)
	case "prefix":
		c, ok := toComponent(value)
		if !ok {
			return fmt.Errorf("%w: prefix wants a string, regexp or predicate, got %T", ErrInvalidArgument, value)
		}
		d.SetPrefix(c)
	case "suffix":
		c, ok := toComponent(value)
		if !ok {
			return fmt.Errorf("%w: suffix wants a string, regexp or predicate, got %T", ErrInvalidArgument, value)
		}
		d.SetSuffix(c)
	case "react_on":
		switch v := value.(type) {
		case Category:
			d.SetReactOn(v)
		case string:
			d.SetReactOn(Category(v))
		default:
			return fmt.Errorf("%w: react_on wants a category, got %T", ErrInvalidArgument, value)
		}
	case "plugin_name":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: plugin_name wants a string, got %T", ErrInvalidArgument, value)
		}
		d.SetName(s)
	case "required_options":
		switch v := value.(type) {
		case []string:
			d.SetRequiredOptions(v...)
		case string:
			d.SetRequiredOptions(v)
		default:
			return fmt.Errorf("%w: required_options wants strings, got %T", ErrInvalidArgument, value)
		}
	default:
		return fmt.Errorf("%w: unknown descriptor key %q", ErrInvalidArgument, key)
	}
	return nil
}

// SetMap assigns several attributes at once, stopping at the first bad key.
func (d *Descriptor) SetMap(attrs map[string]any) error {
	for k, v := range attrs {
		if err := d.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func toComponent(v any) (match.Component, bool) {
	switch t := v.(type) {
	case match.Component:
		return t, true
	case string:
		return match.Literal(t), true
	case *regexp.Regexp:
		return match.Regexp(t), true
	case func(string) bool:
		return match.Predicate(t), true
	default:
		return match.Component{}, false
	}
}

// Name returns the plugin type's name.
func (d *Descriptor) Name() string { return d.name }

// SetName renames the plugin type (lower-cased).
func (d *Descriptor) SetName(name string) *Descriptor {
	d.name = strings.ToLower(name)
	return d
}

// Prefix returns the declared prefix and whether one was declared. An
// undeclared prefix falls back to the host default at bind time; a declared
// empty prefix suppresses it.
func (d *Descriptor) Prefix() (match.Component, bool) { return d.prefix, d.hasPrefix }

// SetPrefix declares the message prefix.
func (d *Descriptor) SetPrefix(c match.Component) *Descriptor {
	d.prefix = c
	d.hasPrefix = true
	return d
}

// Suffix returns the declared suffix and whether one was declared.
func (d *Descriptor) Suffix() (match.Component, bool) { return d.suffix, d.hasSuffix }

// SetSuffix declares the message suffix.
func (d *Descriptor) SetSuffix(c match.Component) *Descriptor {
	d.suffix = c
	d.hasSuffix = true
	return d
}

// ReactOn returns the category match rules are registered under; Message
// when not declared.
func (d *Descriptor) ReactOn() Category {
	if d.reactOn == "" {
		return Message
	}
	return d.reactOn
}

// SetReactOn scopes match rules to a category (message, channel or private).
func (d *Descriptor) SetReactOn(cat Category) *Descriptor {
	d.reactOn = cat
	return d
}

// Help returns the declared help text, empty when none.
func (d *Descriptor) Help() string { return d.helpText }

// SetHelp declares the help text served at "help <name>".
func (d *Descriptor) SetHelp(text string) *Descriptor {
	d.helpText = text
	return d
}

// RequiredOptions returns the option names the host must configure before
// this plugin type binds.
func (d *Descriptor) RequiredOptions() []string { return d.required }

// SetRequiredOptions appends to the required option names.
func (d *Descriptor) SetRequiredOptions(names ...string) *Descriptor {
	d.required = append(d.required, names...)
	return d
}

// Matchers returns the declared match rules in declaration order.
func (d *Descriptor) Matchers() []MatchRule { return d.matchers }

// Listeners returns the declared listen rules in declaration order.
func (d *Descriptor) Listeners() []ListenRule { return d.listeners }

// Timers returns the declared timer rules in declaration order.
func (d *Descriptor) Timers() []*TimerRule { return d.timers }

// Commands returns the declared CTCP command names, upper-cased, in
// declaration order.
func (d *Descriptor) Commands() []string { return d.commands }
