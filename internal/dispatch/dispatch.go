// Package dispatch provides an in-memory implementation of the plugin.Host
// boundary: subscription storage keyed by event category, match-spec
// evaluation, connect-lifecycle fan-out, timer scheduling and the named
// mutexes behind Synchronize. Handlers run in the caller's goroutine;
// panics are recovered and logged, never propagated into the feed loop.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tmn/cinch/internal/options"
	"github.com/tmn/cinch/pkg/match"
	"github.com/tmn/cinch/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.Host = (*Dispatcher)(nil)

type subscription struct {
	id   string
	spec *match.Spec
	fn   plugin.HandlerFunc
}

type connectSub struct {
	id string
	fn func(ctx context.Context)
}

// Dispatcher routes events to bound plugin closures.
type Dispatcher struct {
	logger *zap.Logger
	cfg    *viper.Viper

	mu      sync.RWMutex
	subs    map[plugin.Category][]subscription
	connect []connectSub

	syncMu    sync.Mutex
	syncLocks map[string]*sync.Mutex

	replier plugin.Replier

	// errLimit throttles handler-error log lines.
	errLimit *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher. cfg supplies the host-global plugin prefix and
// suffix ("plugins.prefix", "plugins.suffix") and the per-plugin option
// subtrees ("plugins.<name>"); nil is allowed and means no configuration.
func New(logger *zap.Logger, cfg *viper.Viper) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger:    logger,
		cfg:       cfg,
		subs:      make(map[plugin.Category][]subscription),
		syncLocks: make(map[string]*sync.Mutex),
		errLimit:  rate.NewLimiter(rate.Every(time.Second), 10),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetReplier installs the transport used for Event.Reply.
func (d *Dispatcher) SetReplier(r plugin.Replier) {
	d.mu.Lock()
	d.replier = r
	d.mu.Unlock()
}

// On registers a handler for events of cat matching spec (nil spec matches
// every event of the category). Returns an unsubscribe function.
func (d *Dispatcher) On(cat plugin.Category, spec *match.Spec, handler plugin.HandlerFunc) (unsubscribe func()) {
	id := uuid.New().String()
	d.mu.Lock()
	d.subs[cat] = append(d.subs[cat], subscription{id: id, spec: spec, fn: handler})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.subs[cat]
		for i, e := range entries {
			if e.id == id {
				d.subs[cat] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// OnConnect registers a lifecycle callback fired on every Connected call.
func (d *Dispatcher) OnConnect(fn func(ctx context.Context)) (unsubscribe func()) {
	id := uuid.New().String()
	d.mu.Lock()
	d.connect = append(d.connect, connectSub{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, e := range d.connect {
			if e.id == id {
				d.connect = append(d.connect[:i], d.connect[i+1:]...)
				return
			}
		}
	}
}

// Connected fires the connect lifecycle: registered callbacks first, then a
// synthetic event to subscribers of the connect category.
func (d *Dispatcher) Connected(ctx context.Context) {
	d.mu.RLock()
	callbacks := make([]connectSub, len(d.connect))
	copy(callbacks, d.connect)
	d.mu.RUnlock()

	for _, c := range callbacks {
		c.fn(ctx)
	}

	d.Dispatch(ctx, plugin.NewEvent("CONNECT", "", "", ""))
}

// Dispatch routes an event to every subscription whose category the event
// raises and whose spec matches. Handler errors and panics are logged and
// counted; they never stop the remaining deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, e *plugin.Event) {
	if e.Replier == nil {
		d.mu.RLock()
		e.Replier = d.replier
		d.mu.RUnlock()
	}

	for _, cat := range categoriesFor(e) {
		d.mu.RLock()
		entries := make([]subscription, len(d.subs[cat]))
		copy(entries, d.subs[cat])
		d.mu.RUnlock()

		subject := subjectFor(cat, e)
		for _, s := range entries {
			var args []string
			if s.spec != nil {
				captures, ok := s.spec.Match(subject)
				if !ok {
					continue
				}
				args = captures
			}
			dispatchesTotal.WithLabelValues(string(cat)).Inc()
			d.safeCall(ctx, cat, e, s, args)
		}
	}
}

func (d *Dispatcher) safeCall(ctx context.Context, cat plugin.Category, e *plugin.Event, s subscription, args []string) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanicsTotal.Inc()
			d.logger.Error("handler panicked",
				zap.String("category", string(cat)),
				zap.String("event", e.ID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := s.fn(ctx, e, args...); err != nil {
		handlerErrorsTotal.WithLabelValues(string(cat)).Inc()
		if d.errLimit.Allow() {
			d.logger.Warn("handler failed",
				zap.String("category", string(cat)),
				zap.String("event", e.ID),
				zap.Error(err),
			)
		}
	}
}

// ScheduleTimer starts a recurring invocation that runs until Stop. When
// threaded, each tick runs in its own goroutine.
func (d *Dispatcher) ScheduleTimer(interval time.Duration, threaded bool, fn plugin.TimerFunc) {
	timersScheduled.Inc()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if threaded {
					go fn(d.ctx)
				} else {
					fn(d.ctx)
				}
			}
		}
	}()
}

// PluginOptions returns the option store for the named plugin type, backed
// by the "plugins.<name>" configuration subtree.
func (d *Dispatcher) PluginOptions(name string) plugin.Options {
	if d.cfg == nil {
		return options.FromViper(nil)
	}
	return options.FromViper(d.cfg.Sub("plugins." + name))
}

// DefaultPrefix returns the host-global plugin prefix.
func (d *Dispatcher) DefaultPrefix() match.Component {
	if d.cfg == nil {
		return match.Component{}
	}
	return match.Literal(d.cfg.GetString("plugins.prefix"))
}

// DefaultSuffix returns the host-global plugin suffix.
func (d *Dispatcher) DefaultSuffix() match.Component {
	if d.cfg == nil {
		return match.Component{}
	}
	return match.Literal(d.cfg.GetString("plugins.suffix"))
}

// Synchronize runs fn while holding the named mutex, creating it on first
// use.
func (d *Dispatcher) Synchronize(name string, fn func()) {
	d.syncMu.Lock()
	l, ok := d.syncLocks[name]
	if !ok {
		l = &sync.Mutex{}
		d.syncLocks[name] = l
	}
	d.syncMu.Unlock()

	l.Lock()
	defer l.Unlock()
	fn()
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *zap.Logger { return d.logger }

// Stop cancels all scheduled timers and waits for their goroutines.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// categoriesFor derives the category set an event raises: its raw command
// or numeric verbatim, plus the synthetic categories.
func categoriesFor(e *plugin.Event) []plugin.Category {
	cats := []plugin.Category{plugin.Category(e.Command)}

	switch strings.ToUpper(e.Command) {
	case "PRIVMSG":
		switch {
		case e.CTCPCommand == "ACTION":
			cats = append(cats, plugin.Action)
		case e.CTCPCommand != "":
			cats = append(cats, plugin.CTCP)
		default:
			cats = append(cats, plugin.Message)
			if e.Channel != "" {
				cats = append(cats, plugin.Channel)
			} else {
				cats = append(cats, plugin.Private)
			}
		}
	case "ERROR":
		cats = append(cats, plugin.Error)
	case "CONNECT":
		cats = append(cats, plugin.Connect)
	}
	return cats
}

// subjectFor picks the text a spec is evaluated against: the CTCP command
// for ctcp dispatches, the message body otherwise.
func subjectFor(cat plugin.Category, e *plugin.Event) string {
	if cat == plugin.CTCP {
		return e.CTCPCommand
	}
	return e.Text
}
