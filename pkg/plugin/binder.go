package plugin

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tmn/cinch/pkg/match"
)

// missingHandlerWarnEvery throttles the warning emitted when a dispatch is
// routed to a handler the instance never registered, so a hot matcher
// cannot flood the log.
const missingHandlerWarnEvery = 10 // seconds

// Bind compiles the plugin's descriptor into live subscriptions on the
// host. It runs once per instance, synchronously, in this order: required
// option gate, listeners, matchers (synthesizing the default rule when none
// are declared), CTCP commands, timers, help.
//
// The option gate is all or nothing: any missing required option logs one
// diagnostic, registers nothing and returns ErrMissingRequiredOptions. The
// caller should treat that as a skipped plugin, not a fatal condition.
//
// The returned function removes every subscription Bind registered.
func Bind(host Host, p Plugin) (unbind func(), err error) {
	d := p.Descriptor()
	name := d.Name()
	if name == "" {
		return nil, fmt.Errorf("%w: descriptor has no plugin name", ErrInvalidArgument)
	}
	log := host.Logger().Named(name)

	if ha, ok := p.(HostAttacher); ok {
		ha.AttachHost(host)
	}

	// 1. Option gate.
	opts := host.PluginOptions(name)
	var missing []string
	for _, req := range d.RequiredOptions() {
		if opts == nil || !opts.IsSet(req) {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		log.Warn("plugin not bound: required options not configured",
			zap.String("plugin", name),
			zap.Strings("missing", missing),
		)
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredOptions, strings.Join(missing, ", "))
	}

	var unsubs []func()
	teardown := func() {
		for _, u := range unsubs {
			u()
		}
	}

	// 2. Listeners.
	for _, l := range d.Listeners() {
		unsubs = append(unsubs, host.On(l.Category, nil, listenerClosure(p, l, log)))
	}

	// 3. Matchers.
	rules := d.Matchers()
	if len(rules) == 0 {
		rules = []MatchRule{defaultMatchRule(name)}
	}
	for _, r := range rules {
		spec, cerr := compileRule(host, d, r)
		if cerr != nil {
			teardown()
			return nil, fmt.Errorf("plugin %s: %w", name, cerr)
		}
		unsubs = append(unsubs, host.On(d.ReactOn(), spec, matcherClosure(p, r, log)))
	}

	// 4. CTCP commands.
	for _, c := range d.Commands() {
		spec, cerr := match.Compile(match.Component{}, match.Literal(c), match.Component{})
		if cerr != nil {
			teardown()
			return nil, fmt.Errorf("plugin %s: %w", name, cerr)
		}
		unsubs = append(unsubs, host.On(CTCP, spec, commandClosure(p, c)))
	}

	// 5. Timers.
	for _, t := range d.Timers() {
		unsubs = append(unsubs, host.OnConnect(timerConnectClosure(host, p, t, log)))
	}

	// 6. Help.
	if text := d.Help(); text != "" {
		spec, cerr := compileHelp(host, d)
		if cerr != nil {
			teardown()
			return nil, fmt.Errorf("plugin %s: %w", name, cerr)
		}
		// Closes over the text, not the instance; no hook bracketing.
		unsubs = append(unsubs, host.On(Message, spec, func(ctx context.Context, e *Event, _ ...string) error {
			return e.Reply(ctx, text)
		}))
	}

	log.Debug("plugin bound",
		zap.Int("listeners", len(d.Listeners())),
		zap.Int("matchers", len(rules)),
		zap.Int("commands", len(d.Commands())),
		zap.Int("timers", len(d.Timers())),
	)
	return teardown, nil
}

// defaultMatchRule is synthesized when a type declares no match rules: the
// plugin name, prefixed and suffixed, routed to "execute" with no extra
// arguments.
func defaultMatchRule(name string) MatchRule {
	return MatchRule{
		Pattern:   match.Literal(name),
		UsePrefix: true,
		UseSuffix: true,
		Method:    "execute",
		Args:      0,
	}
}

// effectivePrefix resolves a rule's prefix: the descriptor's own when
// declared, else the host-global default.
func effectivePrefix(host Host, d *Descriptor) match.Component {
	if c, ok := d.Prefix(); ok {
		return c
	}
	return host.DefaultPrefix()
}

func effectiveSuffix(host Host, d *Descriptor) match.Component {
	if c, ok := d.Suffix(); ok {
		return c
	}
	return host.DefaultSuffix()
}

func compileRule(host Host, d *Descriptor, r MatchRule) (*match.Spec, error) {
	var prefix, suffix match.Component
	if r.UsePrefix {
		prefix = effectivePrefix(host, d)
	}
	if r.UseSuffix {
		suffix = effectiveSuffix(host, d)
	}
	return match.Compile(prefix, r.Pattern, suffix)
}

func compileHelp(host Host, d *Descriptor) (*match.Spec, error) {
	return match.Compile(
		effectivePrefix(host, d),
		match.Literal("help "+d.Name()),
		effectiveSuffix(host, d),
	)
}

// missingHandlerClosure replaces the dispatch target when the instance has
// no handler under the rule's name. It only warns, throttled; the event is
// otherwise dropped and no error reaches the host.
func missingHandlerClosure(method string, log *zap.Logger) HandlerFunc {
	limit := rate.NewLimiter(rate.Limit(1.0/missingHandlerWarnEvery), 1)
	return func(_ context.Context, _ *Event, _ ...string) error {
		if limit.Allow() {
			log.Warn("dispatch dropped: no handler registered under this name",
				zap.String("method", method),
			)
		}
		return nil
	}
}

// listenerClosure builds the dispatch target for a listen rule. The handler
// is resolved once, here; raw events bracketed by listen-group hooks.
func listenerClosure(p Plugin, l ListenRule, log *zap.Logger) HandlerFunc {
	fn, ok := p.Handler(l.Method)
	if !ok {
		return missingHandlerClosure(l.Method, log)
	}
	return func(ctx context.Context, e *Event, args ...string) error {
		if err := RunHooks(ctx, p, PreHook, GroupListen, e); err != nil {
			return err
		}
		if err := fn(ctx, e, args...); err != nil {
			return err
		}
		return RunHooks(ctx, p, PostHook, GroupListen, e)
	}
}

// matcherClosure builds the dispatch target for a match rule, adapting the
// captured arguments to the rule's declared contract.
func matcherClosure(p Plugin, r MatchRule, log *zap.Logger) HandlerFunc {
	fn, ok := p.Handler(r.Method)
	if !ok {
		return missingHandlerClosure(r.Method, log)
	}
	return func(ctx context.Context, e *Event, args ...string) error {
		adapted := adaptArgs(args, r.Args)
		if err := RunHooks(ctx, p, PreHook, GroupMatch, e); err != nil {
			return err
		}
		if err := fn(ctx, e, adapted...); err != nil {
			return err
		}
		return RunHooks(ctx, p, PostHook, GroupMatch, e)
	}
}

// adaptArgs applies the declared extra-argument contract: n > 0 keeps the
// first n captures (fewer when fewer were captured), n == 0 keeps none, and
// a negative n passes everything through.
func adaptArgs(args []string, n int) []string {
	switch {
	case n < 0:
		return args
	case n == 0:
		return nil
	case n >= len(args):
		return args
	default:
		return args[:n]
	}
}

// commandClosure builds the dispatch target for a CTCP command. The handler
// name is derived, never stored; a missing handler is a programmer error
// surfaced through the dispatch error path, not swallowed.
func commandClosure(p Plugin, command string) HandlerFunc {
	method := "ctcp_" + strings.ToLower(command)
	return func(ctx context.Context, e *Event, args ...string) error {
		fn, ok := p.Handler(method)
		if !ok {
			return fmt.Errorf("%w: ctcp command handler %q", ErrMissingHandler, method)
		}
		if err := RunHooks(ctx, p, PreHook, GroupCTCP, e); err != nil {
			return err
		}
		if err := fn(ctx, e, args...); err != nil {
			return err
		}
		return RunHooks(ctx, p, PostHook, GroupCTCP, e)
	}
}

// timerConnectClosure schedules the timer on the first connect only. The
// compare-and-swap keeps reconnect storms from scheduling twice.
func timerConnectClosure(host Host, p Plugin, t *TimerRule, log *zap.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		if !t.registered.CompareAndSwap(false, true) {
			return
		}
		fn := t.Fn
		if fn == nil {
			handler, ok := p.Handler(t.Method)
			if !ok {
				warn := missingHandlerClosure(t.Method, log)
				fn = func(ctx context.Context) { _ = warn(ctx, nil) }
			} else {
				fn = func(ctx context.Context) {
					if err := handler(ctx, nil); err != nil {
						log.Warn("timer handler failed",
							zap.String("method", t.Method),
							zap.Error(err),
						)
					}
				}
			}
		}
		host.ScheduleTimer(t.Interval, t.Threaded, fn)
		log.Debug("timer scheduled",
			zap.Duration("interval", t.Interval),
			zap.Bool("threaded", t.Threaded),
		)
	}
}
