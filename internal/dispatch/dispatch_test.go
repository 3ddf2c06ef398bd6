package dispatch

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tmn/cinch/pkg/match"
	"github.com/tmn/cinch/pkg/plugin"
)

func testConfig() *viper.Viper {
	v := viper.New()
	v.Set("plugins.prefix", "!")
	v.Set("plugins.echo.shout", true)
	return v
}

func channelEvent(text string) *plugin.Event {
	return plugin.NewEvent("PRIVMSG", "nick", "#chan", text)
}

func TestOnDispatchUnsubscribe(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	calls := 0
	unsub := d.On(plugin.Message, nil, func(context.Context, *plugin.Event, ...string) error {
		calls++
		return nil
	})

	ctx := context.Background()
	d.Dispatch(ctx, channelEvent("hello"))
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}

	unsub()
	d.Dispatch(ctx, channelEvent("hello again"))
	if calls != 1 {
		t.Errorf("handler ran after unsubscribe, calls = %d", calls)
	}
}

func TestDispatchSpecMatching(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	spec := match.MustCompile(match.Literal("!"), match.Regexp(regexp.MustCompile(`echo (.+)`)), match.Component{})
	var got []string
	calls := 0
	d.On(plugin.Message, spec, func(_ context.Context, _ *plugin.Event, args ...string) error {
		calls++
		got = args
		return nil
	})

	ctx := context.Background()
	d.Dispatch(ctx, channelEvent("unrelated"))
	if calls != 0 {
		t.Fatal("handler ran for a non-matching event")
	}

	d.Dispatch(ctx, channelEvent("!echo hi there"))
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if len(got) != 1 || got[0] != "hi there" {
		t.Errorf("captures = %v, want [hi there]", got)
	}
}

func TestCategoriesFor(t *testing.T) {
	ctcp := plugin.NewEvent("PRIVMSG", "n", "", "")
	ctcp.CTCPCommand = "VERSION"
	action := plugin.NewEvent("PRIVMSG", "n", "#c", "waves")
	action.CTCPCommand = "ACTION"

	cases := []struct {
		name string
		e    *plugin.Event
		want []plugin.Category
	}{
		{"channel_message", plugin.NewEvent("PRIVMSG", "n", "#c", "hi"),
			[]plugin.Category{"PRIVMSG", plugin.Message, plugin.Channel}},
		{"private_message", plugin.NewEvent("PRIVMSG", "n", "", "hi"),
			[]plugin.Category{"PRIVMSG", plugin.Message, plugin.Private}},
		{"ctcp", ctcp, []plugin.Category{"PRIVMSG", plugin.CTCP}},
		{"action", action, []plugin.Category{"PRIVMSG", plugin.Action}},
		{"error", plugin.NewEvent("ERROR", "", "", "closing"),
			[]plugin.Category{"ERROR", plugin.Error}},
		{"connect", plugin.NewEvent("CONNECT", "", "", ""),
			[]plugin.Category{"CONNECT", plugin.Connect}},
		{"numeric", plugin.NewEvent("001", "", "", "welcome"),
			[]plugin.Category{"001"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := categoriesFor(tc.e)
			if len(got) != len(tc.want) {
				t.Fatalf("categoriesFor() = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("categoriesFor()[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSubjectFor(t *testing.T) {
	e := plugin.NewEvent("PRIVMSG", "n", "", "ignored body")
	e.CTCPCommand = "PING"
	if got := subjectFor(plugin.CTCP, e); got != "PING" {
		t.Errorf("subjectFor(ctcp) = %q, want the CTCP command", got)
	}
	if got := subjectFor(plugin.Message, e); got != "ignored body" {
		t.Errorf("subjectFor(message) = %q, want the text", got)
	}
}

func TestConnectedFanout(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	callbacks := 0
	d.OnConnect(func(context.Context) { callbacks++ })

	events := 0
	d.On(plugin.Connect, nil, func(context.Context, *plugin.Event, ...string) error {
		events++
		return nil
	})

	ctx := context.Background()
	d.Connected(ctx)
	d.Connected(ctx)
	if callbacks != 2 {
		t.Errorf("connect callback ran %d times, want 2 (once per connect)", callbacks)
	}
	if events != 2 {
		t.Errorf("connect subscriber ran %d times, want 2", events)
	}
}

type recordingReplier struct {
	texts []string
}

func (r *recordingReplier) Reply(_ context.Context, _ *plugin.Event, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func TestDispatchAssignsReplier(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	r := &recordingReplier{}
	d.SetReplier(r)
	d.On(plugin.Message, nil, func(ctx context.Context, e *plugin.Event, _ ...string) error {
		return e.Reply(ctx, "pong")
	})

	d.Dispatch(context.Background(), channelEvent("ping"))
	if len(r.texts) != 1 || r.texts[0] != "pong" {
		t.Errorf("replies = %v, want [pong]", r.texts)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	d.On(plugin.Message, nil, func(context.Context, *plugin.Event, ...string) error {
		panic("boom")
	})
	survived := false
	d.On(plugin.Message, nil, func(context.Context, *plugin.Event, ...string) error {
		survived = true
		return nil
	})

	d.Dispatch(context.Background(), channelEvent("hi"))
	if !survived {
		t.Error("a panicking handler stopped later deliveries")
	}
}

func TestScheduleTimerAndStop(t *testing.T) {
	d := New(zap.NewNop(), nil)

	var ticks atomic.Int32
	d.ScheduleTimer(10*time.Millisecond, false, func(context.Context) {
		ticks.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	d.Stop()

	got := ticks.Load()
	if got == 0 {
		t.Fatal("timer never ticked")
	}
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != got {
		t.Error("timer ticked after Stop")
	}
}

func TestPluginOptions(t *testing.T) {
	d := New(zap.NewNop(), testConfig())
	defer d.Stop()

	opts := d.PluginOptions("echo")
	if !opts.IsSet("shout") || !opts.GetBool("shout") {
		t.Error("configured plugin option not visible")
	}

	empty := d.PluginOptions("missing")
	if empty == nil {
		t.Fatal("PluginOptions must never return nil")
	}
	if empty.IsSet("anything") {
		t.Error("unconfigured plugin must get an empty store")
	}
}

func TestDefaultPrefix(t *testing.T) {
	d := New(zap.NewNop(), testConfig())
	defer d.Stop()

	spec := match.MustCompile(d.DefaultPrefix(), match.Literal("go"), d.DefaultSuffix())
	if _, ok := spec.Match("!go"); !ok {
		t.Error("default prefix must come from plugins.prefix")
	}
	if _, ok := spec.Match("go"); ok {
		t.Error("configured prefix must be required")
	}
}

func TestSynchronize(t *testing.T) {
	d := New(zap.NewNop(), nil)
	defer d.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Synchronize("counter", func() { counter++ })
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50 increments under the named mutex", counter)
	}
}
