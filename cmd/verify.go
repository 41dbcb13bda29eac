package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/channels/telegram"
	"github.com/nextlevelbuilder/tgrelay/internal/config"
)

const verifyTimeout = 15 * time.Second

// verifyBot calls getMe with the given Telegram settings.
func verifyBot(ctx context.Context, tc config.TelegramConfig) (channels.Identity, error) {
	client, err := telegram.New(tc)
	if err != nil {
		return channels.Identity{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	return client.GetSelf(ctx)
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the Telegram bot token with getMe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Telegram.Token == "" {
				fmt.Println("✗ Bot token is missing in configuration")
				fmt.Println("  Run 'tgrelay onboard' or set TGRELAY_TELEGRAM_TOKEN")
				return &config.ConfigurationError{Field: "telegram.token", Reason: "is required"}
			}

			me, err := verifyBot(cmd.Context(), cfg.Telegram)
			if err != nil {
				fmt.Printf("✗ Failed to connect to Telegram: %v\n", err)
				return err
			}
			fmt.Printf("✓ Bot connected: @%s (%s)\n", me.Username, me.FirstName)
			if cfg.Telegram.UserID <= 0 {
				fmt.Println("! Authorized user id is not set; inbound messages will be ignored")
			} else {
				fmt.Printf("  Authorized user: %d\n", int64(cfg.Telegram.UserID))
			}
			return nil
		},
	}
}
