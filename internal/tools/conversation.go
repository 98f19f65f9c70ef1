package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/featherline/pigeonhole/internal/history"
)

type ConversationHistoryTool struct {
	history *history.Manager
}

func NewConversationHistoryTool(h *history.Manager) *ConversationHistoryTool {
	return &ConversationHistoryTool{history: h}
}

func (t *ConversationHistoryTool) Name() string { return "get_conversation_history" }
func (t *ConversationHistoryTool) Description() string {
	return "Scroll back through a conversation: received messages and sent replies, newest first, with paging and text search."
}
func (t *ConversationHistoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"chat_id": {
				"oneOf": [{"type": "integer"}, {"type": "string"}],
				"description": "The conversation's chat ID."
			},
			"source": {"type": "string", "description": "Platform the conversation is on. Default telegram."},
			"search": {"type": "string", "description": "Case-insensitive text filter."},
			"limit": {"type": "integer", "description": "Maximum entries to return. Default 20, max 100."},
			"offset": {"type": "integer", "description": "Entries to skip from the newest end, for paging."},
			"direction": {"type": "string", "description": "received, sent, or all. Default all."}
		},
		"required": ["chat_id"]
	}`)
}

func (t *ConversationHistoryTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		ChatID    any    `json:"chat_id"`
		Source    string `json:"source"`
		Search    string `json:"search"`
		Limit     int    `json:"limit"`
		Offset    int    `json:"offset"`
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.ChatID == nil {
		return "", fmt.Errorf("chat_id is required")
	}
	if p.Source == "" {
		p.Source = "telegram"
	}
	if p.Limit > 100 {
		p.Limit = 100
	}

	role := ""
	switch p.Direction {
	case "", "all":
	case "received":
		role = "user"
	case "sent":
		role = "assistant"
	default:
		return "", fmt.Errorf("invalid direction %q: use received, sent, or all", p.Direction)
	}

	entries, err := t.history.Query(p.Source, p.ChatID, history.QueryOptions{
		Limit:  p.Limit,
		Offset: p.Offset,
		Search: p.Search,
		Role:   role,
	})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No conversation history found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d entries (newest first):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n[%s] %s: %s", e.Timestamp, e.Role, e.Text)
	}
	return b.String(), nil
}
