package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/internal/mcp"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/store/migrations"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration, queue and Telegram connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	fmt.Println("tgrelay doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", config.ExpandHome(cfgPath))
	if _, err := os.Stat(config.ExpandHome(cfgPath)); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	masked := cfg.MaskedCopy()
	fmt.Println()
	fmt.Println("  Telegram:")
	fmt.Printf("    %-12s %s\n", "Token:", orNotSet(masked.Telegram.Token))
	if cfg.Telegram.UserID > 0 {
		fmt.Printf("    %-12s %d\n", "User:", int64(cfg.Telegram.UserID))
	} else {
		fmt.Printf("    %-12s (not configured)\n", "User:")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("    %-12s %s\n", "Config:", err)
	}
	if cfg.Telegram.Token != "" {
		me, err := verifyBot(ctx, cfg.Telegram)
		if err != nil {
			fmt.Printf("    %-12s FAILED (%s)\n", "Bot:", err)
		} else {
			fmt.Printf("    %-12s @%s (OK)\n", "Bot:", me.Username)
		}
	}

	// Queue
	fmt.Println()
	fmt.Println("  Queue:")
	fmt.Printf("    %-12s %s\n", "Driver:", cfg.Queue.Driver)
	sc := storeConfig(cfg)
	if sc.Driver == "postgres" {
		fmt.Printf("    %-12s %s\n", "DSN:", orNotSet(masked.Queue.PostgresDSN))
	} else {
		fmt.Printf("    %-12s %s\n", "Path:", sc.Path)
	}
	checkQueue(ctx, sc)

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkQueue(ctx context.Context, sc store.StoreConfig) {
	db, backend, err := openRawDB(sc)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	s, err := migrations.Check(db, backend)
	db.Close()
	if err != nil {
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", err)
		return
	}
	fmt.Printf("    %-12s %s\n", "Schema:", migrations.Describe(s))
	if !s.Compatible {
		return
	}

	stores, err := openStores(sc)
	if err != nil {
		fmt.Printf("    %-12s OPEN FAILED (%s)\n", "Status:", err)
		return
	}
	defer stores.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := stores.Queue.Stats(ctx)
	if err != nil {
		fmt.Printf("    %-12s FAILED (%s)\n", "Stats:", err)
		return
	}
	fmt.Printf("    %-12s %d inbound, %d outbound pending; %d processed\n", "Messages:",
		st.PendingInbound, st.PendingOutbound, st.Processed)

	probe, err := mcp.NewServer(stores.Queue, bus.Discard{}, Version).Probe(ctx)
	if err != nil {
		fmt.Printf("    %-12s FAILED (%s)\n", "MCP:", err)
		return
	}
	fmt.Printf("    %-12s %s %s, tools %v\n", "MCP:", probe.ServerName, probe.ServerVersion, probe.Tools)
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
