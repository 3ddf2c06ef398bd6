// Command cinch runs a demo host: it binds the echo plugin against the
// in-memory dispatcher, fires the connect lifecycle and feeds stdin lines
// through the dispatcher as channel messages. Lines starting with "/msg "
// are dispatched as private messages instead.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tmn/cinch/internal/config"
	"github.com/tmn/cinch/internal/dispatch"
	"github.com/tmn/cinch/internal/echo"
	"github.com/tmn/cinch/internal/registry"
	"github.com/tmn/cinch/pkg/plugin"
)

// consoleReplier prints replies to stdout.
type consoleReplier struct{}

func (consoleReplier) Reply(_ context.Context, e *plugin.Event, text string) error {
	target := e.Channel
	if target == "" {
		target = e.Nick
	}
	_, err := fmt.Printf(">> %s: %s\n", target, text)
	return err
}

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	d := dispatch.New(logger.Named("dispatch"), v)
	d.SetReplier(consoleReplier{})
	defer d.Stop()

	reg := registry.New(d, logger.Named("registry"))
	if err := reg.Register(echo.New()); err != nil {
		logger.Warn("plugin registration failed", zap.Error(err))
	}

	ctx := context.Background()
	d.Connected(ctx)
	logger.Info("connected; type messages, /msg <text> for private, ctrl-d to quit",
		zap.Strings("plugins", reg.Names()),
	)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e := plugin.NewEvent("PRIVMSG", "console", "#console", line)
		if rest, ok := strings.CutPrefix(line, "/msg "); ok {
			e = plugin.NewEvent("PRIVMSG", "console", "", rest)
		}
		d.Dispatch(ctx, e)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading stdin", zap.Error(err))
	}

	reg.UnregisterAll()
}
