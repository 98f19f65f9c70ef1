package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/featherline/pigeonhole/internal/lifecycle"
)

// formatMessages renders messages for the agent, one block per message.
func formatMessages(msgs []lifecycle.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s):\n", len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n[%s] id=%s chat=%s", m.Source, m.ID, m.ChatID)
		if m.Type != "" && m.Type != "text" {
			fmt.Fprintf(&b, " type=%s", m.Type)
		}
		if m.RetryCount > 0 {
			fmt.Fprintf(&b, " retry=%d", m.RetryCount)
		}
		b.WriteString("\n")
		if m.Timestamp != "" {
			fmt.Fprintf(&b, "time: %s\n", m.Timestamp)
		}
		fmt.Fprintf(&b, "> %s\n", m.Text)
	}
	b.WriteString("\nClaim a message before working on it, then mark_processed or mark_failed.")
	return b.String()
}

type WaitForMessagesTool struct {
	queue *lifecycle.Queue
}

func NewWaitForMessagesTool(q *lifecycle.Queue) *WaitForMessagesTool {
	return &WaitForMessagesTool{queue: q}
}

func (t *WaitForMessagesTool) Name() string { return "wait_for_messages" }
func (t *WaitForMessagesTool) Description() string {
	return "Block until new messages arrive. Returns immediately if messages are already pending, otherwise waits for an arrival or the timeout. Use this as the core of the processing loop: wait, process, repeat."
}
func (t *WaitForMessagesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timeout": {"type": "integer", "description": "Maximum seconds to wait. Default 300."},
			"source": {"type": "string", "description": "Only wake for this source (telegram, slack, ...). Empty for all."}
		}
	}`)
}

func (t *WaitForMessagesTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Timeout int    `json:"timeout"`
		Source  string `json:"source"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if p.Timeout <= 0 {
		p.Timeout = 300
	}

	var sources []string
	if p.Source != "" {
		sources = append(sources, p.Source)
	}
	result, err := t.queue.Wait(ctx, time.Duration(p.Timeout)*time.Second, sources...)
	if err != nil {
		return "", err
	}
	if result.TimedOut {
		return fmt.Sprintf("No messages received in the last %d seconds. Call wait_for_messages again to continue waiting.", p.Timeout), nil
	}
	return formatMessages(result.Messages), nil
}

type CheckInboxTool struct {
	queue *lifecycle.Queue
}

func NewCheckInboxTool(q *lifecycle.Queue) *CheckInboxTool {
	return &CheckInboxTool{queue: q}
}

func (t *CheckInboxTool) Name() string { return "check_inbox" }
func (t *CheckInboxTool) Description() string {
	return "List pending messages without waiting. Prefer wait_for_messages in the main loop."
}
func (t *CheckInboxTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"source": {"type": "string", "description": "Filter by source (telegram, slack, ...). Empty for all."},
			"limit": {"type": "integer", "description": "Maximum messages to return. Default 10."}
		}
	}`)
}

func (t *CheckInboxTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Source string `json:"source"`
		Limit  int    `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	var sources []string
	if p.Source != "" {
		sources = append(sources, p.Source)
	}
	msgs, err := t.queue.CheckInbox(p.Limit, sources...)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "Inbox is empty.", nil
	}
	return formatMessages(msgs), nil
}

type ClaimMessageTool struct {
	queue *lifecycle.Queue
}

func NewClaimMessageTool(q *lifecycle.Queue) *ClaimMessageTool {
	return &ClaimMessageTool{queue: q}
}

func (t *ClaimMessageTool) Name() string { return "claim_message" }
func (t *ClaimMessageTool) Description() string {
	return "Take exclusive ownership of a pending message before working on it. A claimed message is invisible to other consumers until you mark it processed or failed."
}
func (t *ClaimMessageTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "The message ID to claim"}
		},
		"required": ["message_id"]
	}`)
}

func (t *ClaimMessageTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.MessageID == "" {
		return "", fmt.Errorf("message_id is required")
	}

	msg, err := t.queue.Claim(p.MessageID)
	if err != nil {
		return "", fmt.Errorf("failed to claim %s: %w", p.MessageID, err)
	}
	return fmt.Sprintf("Claimed %s from %s (chat %s):\n> %s\n\nFinish with mark_processed or mark_failed.",
		msg.ID, msg.Source, msg.ChatID, msg.Text), nil
}

type MarkProcessedTool struct {
	queue *lifecycle.Queue
}

func NewMarkProcessedTool(q *lifecycle.Queue) *MarkProcessedTool {
	return &MarkProcessedTool{queue: q}
}

func (t *MarkProcessedTool) Name() string { return "mark_processed" }
func (t *MarkProcessedTool) Description() string {
	return "Mark a message as handled and archive it."
}
func (t *MarkProcessedTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "The message ID to mark as processed"}
		},
		"required": ["message_id"]
	}`)
}

func (t *MarkProcessedTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.MessageID == "" {
		return "", fmt.Errorf("message_id is required")
	}

	if err := t.queue.Commit(p.MessageID); err != nil {
		return "", fmt.Errorf("failed to mark %s processed: %w", p.MessageID, err)
	}
	return fmt.Sprintf("Message archived: %s", p.MessageID), nil
}

type MarkFailedTool struct {
	queue *lifecycle.Queue
}

func NewMarkFailedTool(q *lifecycle.Queue) *MarkFailedTool {
	return &MarkFailedTool{queue: q}
}

func (t *MarkFailedTool) Name() string { return "mark_failed" }
func (t *MarkFailedTool) Description() string {
	return "Mark a message as failed. It will be retried later with backoff, or dead-lettered after too many attempts."
}
func (t *MarkFailedTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "The message ID to mark as failed"},
			"error": {"type": "string", "description": "What went wrong. Recorded on the message."}
		},
		"required": ["message_id"]
	}`)
}

func (t *MarkFailedTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.MessageID == "" {
		return "", fmt.Errorf("message_id is required")
	}
	if p.Error == "" {
		p.Error = "failed during processing"
	}

	if err := t.queue.Fail(p.MessageID, p.Error); err != nil {
		return "", fmt.Errorf("failed to mark %s failed: %w", p.MessageID, err)
	}
	return fmt.Sprintf("Message moved to the failed queue: %s", p.MessageID), nil
}

type MessageStatsTool struct {
	queue *lifecycle.Queue
}

func NewMessageStatsTool(q *lifecycle.Queue) *MessageStatsTool {
	return &MessageStatsTool{queue: q}
}

func (t *MessageStatsTool) Name() string { return "get_message_stats" }
func (t *MessageStatsTool) Description() string {
	return "Get message counts per lifecycle stage, with failed split into retryable and dead-lettered."
}
func (t *MessageStatsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *MessageStatsTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	st, err := t.queue.Stats()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Inbox: %d\nProcessing: %d\nFailed: %d (%d retryable, %d dead-lettered)\nProcessed: %d\nOutbox: %d",
		st.Inbox, st.Processing, st.Failed, st.Retryable, st.DeadLettered, st.Processed, st.Outbox), nil
}
