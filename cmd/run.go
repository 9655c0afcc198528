package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawrelay/internal/bridge"
	"github.com/nextlevelbuilder/clawrelay/internal/channels"
	slackchan "github.com/nextlevelbuilder/clawrelay/internal/channels/slack"
	"github.com/nextlevelbuilder/clawrelay/internal/channels/telegram"
	"github.com/nextlevelbuilder/clawrelay/internal/config"
	"github.com/nextlevelbuilder/clawrelay/internal/gateway"
)

func runCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and bridge exec approvals",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
			runBridge()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runBridge() {
	cfg := loadConfigOrExit()

	registry := channels.NewRegistry()

	var svc *bridge.Service
	gw := gateway.NewClient(gateway.Config{
		URL:   cfg.Gateway.URL,
		Token: cfg.Gateway.Token,
	}, func(ctx context.Context, event string, payload json.RawMessage) {
		svc.HandleEvent(ctx, event, payload)
	})

	svc = bridge.NewService(gw, registry, cfg.Approvals.TTLDuration())
	svc.SetConfigFlags(bridge.ConfigFlags{
		GatewayTokenSet: cfg.Gateway.Token != "",
		Channels: []bridge.ChannelConfigFlag{
			{
				Name:       channels.Telegram,
				Configured: cfg.Channels.Telegram.Token != "" && cfg.Channels.Telegram.ChatID != 0,
				Enabled:    cfg.Channels.Telegram.Enabled,
			},
			{
				Name:       channels.Slack,
				Configured: cfg.Channels.Slack.BotToken != "" && cfg.Channels.Slack.Channel != "",
				Enabled:    cfg.Channels.Slack.Enabled,
			},
		},
	})

	var tg *telegram.Channel
	if cfg.Channels.Telegram.Enabled {
		var err error
		tg, err = startTelegram(cfg.Channels.Telegram, svc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting telegram channel: %s\n", err)
			os.Exit(1)
		}
		registry.Register(tg)
	}
	var sl *slackchan.Channel
	if cfg.Channels.Slack.Enabled {
		sl = slackchan.New(slackchan.Config{
			BotToken: cfg.Channels.Slack.BotToken,
			Channel:  cfg.Channels.Slack.Channel,
		})
		registry.Register(sl)
	}
	if len(registry.Names()) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no channels enabled, nothing to bridge")
		os.Exit(1)
	}

	svc.Start()
	gw.Start()

	watcher := startConfigWatcher(cfg)

	slog.Info("clawrelay running",
		"gateway", cfg.Gateway.URL,
		"channels", registry.Names(),
		"ttl", cfg.Approvals.TTLDuration(),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	if watcher != nil {
		watcher.Stop()
	}
	gw.Close()
	if tg != nil {
		tg.Stop()
	}
	if sl != nil {
		sl.Stop()
	}
	svc.Stop()
}

func startTelegram(cfg config.TelegramConfig, svc *bridge.Service) (*telegram.Channel, error) {
	tg, err := telegram.New(telegram.Config{Token: cfg.Token, ChatID: cfg.ChatID})
	if err != nil {
		return nil, err
	}
	tg.SetResolver(svc.Resolver())
	tg.SetStatusProvider(func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return svc.StatusText(ctx)
	})
	if err := tg.Start(); err != nil {
		return nil, err
	}
	return tg, nil
}

// startConfigWatcher watches the config file and logs changes that need a
// restart to apply, so operators notice drift.
func startConfigWatcher(current *config.Config) *config.Watcher {
	watcher, err := config.NewWatcher(resolveConfigPath())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return nil
	}

	watcher.OnChange(func(next *config.Config) {
		if next.Channels.Telegram.Enabled != current.Channels.Telegram.Enabled ||
			next.Channels.Slack.Enabled != current.Channels.Slack.Enabled {
			slog.Warn("channel enablement changed in config; restart to apply")
		}
		if next.Approvals.TTLDuration() != current.Approvals.TTLDuration() {
			slog.Warn("approval TTL changed in config; restart to apply",
				"current", current.Approvals.TTLDuration(), "new", next.Approvals.TTLDuration())
		}
	})

	if err := watcher.Start(); err != nil {
		slog.Warn("config watcher failed to start", "error", err)
		return nil
	}
	return watcher
}
