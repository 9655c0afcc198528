package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	slackchan "github.com/nextlevelbuilder/clawrelay/internal/channels/slack"
	"github.com/nextlevelbuilder/clawrelay/internal/channels/telegram"
	"github.com/nextlevelbuilder/clawrelay/internal/config"
	"github.com/nextlevelbuilder/clawrelay/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and channel reachability",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("clawrelay doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
		return
	}
	fmt.Println(" (OK)")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    URL:    %s\n", cfg.Gateway.URL)
	fmt.Printf("    Token:  %s\n", maskSecret(cfg.Gateway.Token))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println()
	fmt.Println("  Channels:")
	checkTelegram(ctx, cfg.Channels.Telegram)
	checkSlack(ctx, cfg.Channels.Slack)

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkTelegram(ctx context.Context, cfg config.TelegramConfig) {
	if !cfg.Enabled {
		fmt.Println("    Telegram: disabled")
		return
	}
	tg, err := telegram.New(telegram.Config{Token: cfg.Token, ChatID: cfg.ChatID})
	if err != nil {
		fmt.Printf("    Telegram: error (%s)\n", err)
		return
	}
	defer tg.Stop()
	if err := tg.Healthy(ctx); err != nil {
		fmt.Printf("    Telegram: unreachable (%s)\n", err)
		return
	}
	fmt.Printf("    Telegram: OK (chat %d)\n", cfg.ChatID)
}

func checkSlack(ctx context.Context, cfg config.SlackConfig) {
	if !cfg.Enabled {
		fmt.Println("    Slack:    disabled")
		return
	}
	sl := slackchan.New(slackchan.Config{BotToken: cfg.BotToken, Channel: cfg.Channel})
	defer sl.Stop()
	if err := sl.Healthy(ctx); err != nil {
		fmt.Printf("    Slack:    unreachable (%s)\n", err)
		return
	}
	fmt.Printf("    Slack:    OK (channel %s)\n", cfg.Channel)
}

func maskSecret(s string) string {
	if s == "" {
		return "(not configured)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
