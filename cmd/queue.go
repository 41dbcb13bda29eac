package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the message queue",
	}
	cmd.AddCommand(queueStatsCmd())
	cmd.AddCommand(queuePeekCmd())
	return cmd
}

func withQueue(fn func(q store.MessageQueue) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	stores, err := openStores(storeConfig(cfg))
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(stores.Queue)
}

func queueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending and processed message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(func(q store.MessageQueue) error {
				s, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("  %-18s %d\n", "Pending inbound:", s.PendingInbound)
				fmt.Printf("  %-18s %d\n", "Pending outbound:", s.PendingOutbound)
				fmt.Printf("  %-18s %d\n", "Processed:", s.Processed)
				return nil
			})
		},
	}
}

func queuePeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Show the oldest unprocessed message without consuming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(func(q store.MessageQueue) error {
				m, err := q.Peek(cmd.Context())
				if err != nil {
					return err
				}
				if m == nil {
					fmt.Println("Queue is empty.")
					return nil
				}
				fmt.Printf("  %-10s %d\n", "ID:", m.ID)
				fmt.Printf("  %-10s %s\n", "Direction:", m.Direction)
				fmt.Printf("  %-10s %s\n", "Queued:", m.CreatedAt().Format(time.RFC3339))
				fmt.Printf("  %-10s %s\n", "Content:", channels.Truncate(m.Content, 200))
				return nil
			})
		},
	}
}
