package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/tgrelay/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tgrelay",
	Short: "Telegram to MCP message relay",
	Long: "tgrelay lets an MCP host exchange text messages with a single authorized Telegram user. " +
		"Messages in both directions pass through a durable FIFO queue.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), "")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.tgrelay/config.json or $TGRELAY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tgrelay %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("TGRELAY_CONFIG"); v != "" {
		return v
	}
	return config.DefaultConfigPath
}

// setupLogging installs the default slog logger. Output goes to stderr:
// stdout belongs to the MCP stdio transport.
func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
