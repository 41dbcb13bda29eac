package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/channels/telegram"
	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/internal/mcp"
	"github.com/nextlevelbuilder/tgrelay/internal/relay"
	"github.com/nextlevelbuilder/tgrelay/internal/tracing"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay and serve MCP tools (stdio by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve MCP over streamable HTTP on this address instead of stdio (e.g. :8931)")
	return cmd
}

func runServe(parent context.Context, listen string) error {
	setupLogging()
	if parent == nil {
		parent = context.Background()
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "path", cfgPath, "error", err)
		fmt.Fprintf(os.Stderr, "\n  Run 'tgrelay onboard' to create a configuration.\n")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		tp = tracing.Noop()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	stores, err := openStores(storeConfig(cfg))
	if err != nil {
		slog.Error("failed to open queue", "driver", cfg.Queue.Driver, "error", err)
		return err
	}
	defer stores.Close()

	tg, err := telegram.New(cfg.Telegram)
	if err != nil {
		slog.Error("failed to create telegram client", "error", err)
		return err
	}

	msgBus := bus.New()
	msgBus.Subscribe("event-log", logEvent)

	poller := relay.NewPoller(tg, stores.Queue, msgBus, relay.PollerConfig{
		AuthorizedUserID: int64(cfg.Telegram.UserID),
		PollTimeoutSec:   cfg.Telegram.PollTimeoutSec,
		PollLimit:        cfg.Telegram.PollLimit,
		PollInterval:     cfg.Telegram.PollInterval(),
	}, relay.WithPollerTracer(tp.Tracer()))

	drainer := relay.NewDrainer(stores.Queue, tg, msgBus,
		int64(cfg.Telegram.UserID), cfg.Relay.DrainInterval(),
		relay.WithDrainerTracer(tp.Tracer()))

	srv := mcp.NewServer(stores.Queue, msgBus, Version,
		mcp.WithTracer(tp.Tracer()),
		mcp.WithDefaultCount(cfg.Relay.FetchDefaultCount),
	)

	slog.Info("tgrelay starting",
		"version", Version,
		"config", cfgPath,
		"queue", cfg.Queue.Driver,
		"authorized_user", int64(cfg.Telegram.UserID),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return drainer.Run(gctx) })
	g.Go(func() error {
		var err error
		if listen != "" {
			err = srv.ServeHTTP(gctx, listen)
		} else {
			err = srv.ServeStdio(gctx, os.Stdin, os.Stdout)
		}
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		// The host closed stdin: shut the relay down with it.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("tgrelay stopped with error", "error", err)
		return err
	}
	slog.Info("tgrelay stopped")
	return nil
}

// logEvent writes each relay event through slog.
func logEvent(e bus.Event) {
	switch p := e.Payload.(type) {
	case bus.InboundPayload:
		slog.Debug("relay event", "event", e.Name, "update_id", p.UpdateID, "message_id", p.MessageID,
			"preview", channels.Truncate(p.Content, 40))
	case bus.OutboundPayload:
		slog.Debug("relay event", "event", e.Name, "message_id", p.MessageID,
			"preview", channels.Truncate(p.Content, 40))
	case bus.ErrorPayload:
		level := slog.LevelWarn
		if e.Name == protocol.EventStorageError {
			level = slog.LevelError
		}
		slog.Log(context.Background(), level, "relay event", "event", e.Name,
			"component", p.Component, "message_id", p.MessageID, "error", p.Error())
	default:
		slog.Debug("relay event", "event", e.Name)
	}
}
