package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/config"
)

var botTokenPattern = regexp.MustCompile(`^\d+:[\w-]{35}$`)

func onboardCmd() *cobra.Command {
	var (
		hostConfig     string
		nonInteractive bool
	)
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup: bot token, authorized user, queue location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if nonInteractive || canAutoOnboard() {
				return runAutoOnboard(cmd.Context(), cfgPath)
			}
			return runOnboard(cmd.Context(), cfgPath, hostConfig)
		},
	}
	cmd.Flags().StringVar(&hostConfig, "host-config", config.DefaultHostConfigPath, "MCP host configuration file to register with")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "configure from TGRELAY_* environment variables only")
	return cmd
}

// canAutoOnboard returns true when both credentials come from the
// environment (e.g. Docker), so no prompt is needed.
func canAutoOnboard() bool {
	return os.Getenv("TGRELAY_TELEGRAM_TOKEN") != "" && os.Getenv("TGRELAY_TELEGRAM_USER_ID") != ""
}

func validateToken(s string) error {
	if !botTokenPattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("expected a token like 123456789:ABC... from @BotFather")
	}
	return nil
}

func validateUserID(s string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return errors.New("expected a positive numeric Telegram user id")
	}
	return nil
}

func runOnboard(ctx context.Context, cfgPath, hostConfig string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}

	token := cfg.Telegram.Token
	userID := ""
	if cfg.Telegram.UserID > 0 {
		userID = strconv.FormatInt(int64(cfg.Telegram.UserID), 10)
	}
	queuePath := cfg.Queue.Path
	register := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Create a bot with @BotFather and paste its token.").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(validateToken),
			huh.NewInput().
				Title("Your Telegram user id").
				Description("Only messages from this user are relayed. @userinfobot can tell you yours.").
				Value(&userID).
				Validate(validateUserID),
			huh.NewInput().
				Title("Queue database").
				Value(&queuePath),
			huh.NewConfirm().
				Title("Register tgrelay with your MCP host?").
				Description(config.ExpandHome(hostConfig)).
				Value(&register),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Onboarding cancelled.")
			return nil
		}
		return err
	}

	id, _ := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	cfg.Telegram.Token = strings.TrimSpace(token)
	cfg.Telegram.UserID = config.FlexibleInt64(id)
	if strings.TrimSpace(queuePath) != "" {
		cfg.Queue.Path = strings.TrimSpace(queuePath)
	}

	if err := saveAndVerify(ctx, cfgPath, cfg); err != nil {
		return err
	}
	if register {
		return runRegister(hostConfig)
	}
	return nil
}

// runAutoOnboard performs non-interactive setup from environment variables.
func runAutoOnboard(ctx context.Context, cfgPath string) error {
	fmt.Println("Auto-onboard: environment variables detected, running non-interactive setup...")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Auto-onboard: %v\n", err)
		return err
	}
	return saveAndVerify(ctx, cfgPath, cfg)
}

func saveAndVerify(ctx context.Context, cfgPath string, cfg *config.Config) error {
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", config.ExpandHome(cfgPath))

	me, err := verifyBot(ctx, cfg.Telegram)
	if err != nil {
		fmt.Printf("✗ Failed to connect to Telegram: %v\n", err)
		return err
	}
	fmt.Printf("✓ Connected to Telegram bot: @%s\n", me.Username)
	return nil
}
