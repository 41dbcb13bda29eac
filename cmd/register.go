package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

func registerCmd() *cobra.Command {
	var hostConfig string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register tgrelay as an MCP server in the host's JSON config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(hostConfig)
		},
	}
	cmd.Flags().StringVar(&hostConfig, "host-config", config.DefaultHostConfigPath, "MCP host configuration file")
	return cmd
}

func runRegister(hostConfig string) error {
	entry, err := selfServerEntry()
	if err != nil {
		return err
	}
	changed, err := config.RegisterMCPServer(hostConfig, protocol.ServerName, entry)
	if err != nil {
		fmt.Printf("✗ Failed to register MCP server: %v\n", err)
		return err
	}
	if !changed {
		fmt.Printf("✓ MCP server already registered in %s\n", config.ExpandHome(hostConfig))
		return nil
	}
	fmt.Printf("✓ MCP server registered in %s\n", config.ExpandHome(hostConfig))
	fmt.Println("  Restart your MCP host to use the integration.")
	return nil
}

// selfServerEntry describes how a host should launch this binary.
// An explicit --config is passed through so the host uses the same file.
func selfServerEntry() (config.MCPServerEntry, error) {
	exe, err := os.Executable()
	if err != nil {
		return config.MCPServerEntry{}, fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	entry := config.MCPServerEntry{Command: exe, Args: []string{"serve"}}
	if cfgFile != "" {
		abs, err := filepath.Abs(config.ExpandHome(cfgFile))
		if err == nil {
			entry.Args = append(entry.Args, "--config", abs)
		}
	}
	return entry, nil
}
