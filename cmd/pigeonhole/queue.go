package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/history"
	"github.com/featherline/pigeonhole/internal/lifecycle"
)

func newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Write a message record into the inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			source, _ := cmd.Flags().GetString("source")
			chatID, _ := cmd.Flags().GetString("chat-id")
			text, _ := cmd.Flags().GetString("text")
			typ, _ := cmd.Flags().GetString("type")
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
			}

			raw, err := lifecycle.NewRecord(id, source, chatIDValue(chatID), typ, text, nil)
			if err != nil {
				return err
			}
			msg, err := q.Enqueue(raw)
			if err != nil {
				return err
			}
			if err := history.NewManager(cfg.HistoryDir()).Record(source, chatIDValue(chatID), "user", text); err != nil {
				slog.Warn("failed to record history", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().String("source", "telegram", "Originating platform")
	cmd.Flags().String("chat-id", "", "Conversation the message belongs to")
	cmd.Flags().String("text", "", "Message text")
	cmd.Flags().String("type", "text", "Message type: text|voice|photo|document")
	cmd.Flags().String("id", "", "Record id (generated when empty)")
	cmd.MarkFlagRequired("chat-id")
	cmd.MarkFlagRequired("text")
	return cmd
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue a reply in the outbox for adapter delivery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			source, _ := cmd.Flags().GetString("source")
			chatID, _ := cmd.Flags().GetString("chat-id")
			text, _ := cmd.Flags().GetString("text")
			threadTS, _ := cmd.Flags().GetString("thread-ts")

			id, err := q.SendReply(lifecycle.Reply{
				Source:   source,
				ChatID:   chatIDValue(chatID),
				Text:     text,
				ThreadTS: threadTS,
			})
			if err != nil {
				return err
			}
			if err := history.NewManager(cfg.HistoryDir()).Record(source, chatIDValue(chatID), "assistant", text); err != nil {
				slog.Warn("failed to record history", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reply %s queued\n", id)
			return nil
		},
	}
	cmd.Flags().String("source", "telegram", "Platform to deliver through")
	cmd.Flags().String("chat-id", "", "Destination conversation")
	cmd.Flags().String("text", "", "Reply text")
	cmd.Flags().String("thread-ts", "", "Slack thread timestamp to reply under")
	cmd.MarkFlagRequired("chat-id")
	cmd.MarkFlagRequired("text")
	return cmd
}

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List pending messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			sources, _ := cmd.Flags().GetStringSlice("source")

			msgs, err := q.CheckInbox(limit, sources...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "inbox empty")
				return nil
			}
			for _, m := range msgs {
				retry := ""
				if m.RetryCount > 0 {
					retry = fmt.Sprintf("  retry=%d", m.RetryCount)
				}
				fmt.Fprintf(out, "%s  [%s] chat=%s%s  %s\n", m.ID, m.Source, m.ChatID, retry, preview(m.Text, 60))
			}
			fmt.Fprintf(out, "%d pending\n", len(msgs))
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Maximum messages to list")
	cmd.Flags().StringSlice("source", nil, "Only list messages from these platforms")
	return cmd
}

func newClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <message-id>",
		Short: "Move a message from inbox to processing and print its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			msg, err := q.Claim(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(msg.Raw))
			return nil
		},
	}
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <message-id>",
		Short: "Archive a message as processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			if err := q.Commit(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		},
	}
}

func newFailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <message-id>",
		Short: "Record a processing failure and schedule the retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			cause, _ := cmd.Flags().GetString("error")
			if err := q.Fail(args[0], cause); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failed %s: %s\n", args[0], cause)
			return nil
		},
	}
	cmd.Flags().String("error", "failed during processing", "Failure cause recorded on the message")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the recovery sweeps once: stale claims and due retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stale, err := q.RecoverStaleProcessing(cfg.Lifecycle.StaleAfter())
			if err != nil {
				return err
			}
			for _, id := range stale {
				fmt.Fprintf(out, "stale: %s\n", id)
			}
			retried, err := q.RecoverRetryable()
			if err != nil {
				return err
			}
			for _, id := range retried {
				fmt.Fprintf(out, "retry: %s\n", id)
			}
			fmt.Fprintf(out, "requeued %d stale, %d retryable\n", len(stale), len(retried))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count messages per lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			st, err := q.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintf(out, "inbox:      %d\n", st.Inbox)
			fmt.Fprintf(out, "processing: %d\n", st.Processing)
			fmt.Fprintf(out, "failed:     %d (%d retryable, %d dead-lettered)\n", st.Failed, st.Retryable, st.DeadLettered)
			fmt.Fprintf(out, "processed:  %d\n", st.Processed)
			fmt.Fprintf(out, "outbox:     %d\n", st.Outbox)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print stats as JSON")
	return cmd
}

// preview renders text as a single trimmed line capped at n bytes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > n {
		return text[:n-3] + "..."
	}
	return text
}
