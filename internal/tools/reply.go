package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/featherline/pigeonhole/internal/history"
	"github.com/featherline/pigeonhole/internal/lifecycle"
)

type SendReplyTool struct {
	queue   *lifecycle.Queue
	history *history.Manager // optional
}

func NewSendReplyTool(q *lifecycle.Queue, h *history.Manager) *SendReplyTool {
	return &SendReplyTool{queue: q, history: h}
}

func (t *SendReplyTool) Name() string { return "send_reply" }
func (t *SendReplyTool) Description() string {
	return "Queue a reply for delivery back to the original platform. The reply is durable: it survives restarts and is removed only once actually sent."
}
func (t *SendReplyTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"chat_id": {
				"oneOf": [{"type": "integer"}, {"type": "string"}],
				"description": "The chat to reply to, from the original message."
			},
			"text": {"type": "string", "description": "The reply text."},
			"source": {"type": "string", "description": "Platform to reply via (telegram, slack, ...). Default telegram."},
			"buttons": {
				"type": "array",
				"description": "Optional inline keyboard: rows of {text, callback_data} buttons."
			},
			"thread_ts": {"type": "string", "description": "Slack thread timestamp to reply in, if any."}
		},
		"required": ["chat_id", "text"]
	}`)
}

func (t *SendReplyTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		ChatID   any             `json:"chat_id"`
		Text     string          `json:"text"`
		Source   string          `json:"source"`
		Buttons  json.RawMessage `json:"buttons"`
		ThreadTS string          `json:"thread_ts"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Source == "" {
		p.Source = "telegram"
	}

	id, err := t.queue.SendReply(lifecycle.Reply{
		Source:   p.Source,
		ChatID:   p.ChatID,
		Text:     p.Text,
		Buttons:  p.Buttons,
		ThreadTS: p.ThreadTS,
	})
	if err != nil {
		return "", err
	}

	// The reply is already queued; a history write failure is not worth
	// failing the tool over.
	if t.history != nil {
		if err := t.history.Record(p.Source, p.ChatID, "assistant", p.Text); err != nil {
			slog.Warn("failed to record reply in history", "error", err)
		}
	}

	preview := p.Text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return fmt.Sprintf("Reply %s queued for %s (chat %v):\n%s", id, p.Source, p.ChatID, preview), nil
}
