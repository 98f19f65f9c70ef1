package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show conversation history for a chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			source, _ := cmd.Flags().GetString("source")
			chatID, _ := cmd.Flags().GetString("chat-id")
			limit, _ := cmd.Flags().GetInt("limit")
			search, _ := cmd.Flags().GetString("search")
			role, _ := cmd.Flags().GetString("role")

			mgr := history.NewManager(cfg.HistoryDir())
			entries, err := mgr.Query(source, chatIDValue(chatID), history.QueryOptions{
				Limit:  limit,
				Search: search,
				Role:   role,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no history")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "[%s] %s: %s\n", e.Timestamp, e.Role, e.Text)
			}
			return nil
		},
	}
	cmd.Flags().String("source", "telegram", "Platform the conversation belongs to")
	cmd.Flags().String("chat-id", "", "Conversation to show")
	cmd.Flags().Int("limit", 20, "Maximum entries")
	cmd.Flags().String("search", "", "Substring filter")
	cmd.Flags().String("role", "", "Only entries with this role: user|assistant")
	cmd.MarkFlagRequired("chat-id")
	return cmd
}
