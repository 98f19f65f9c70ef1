package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Message is a read view over a record document. Raw holds the complete
// original bytes; fields this code does not model survive every transition
// because moves are renames and mutations edit Raw in place.
type Message struct {
	ID         string
	Source     string
	ChatID     string // rendered as a string whatever the JSON type
	Text       string
	Type       string
	Timestamp  string
	RetryCount int64
	Raw        []byte
}

func parseMessage(id string, raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return Message{}, fmt.Errorf("%w: %s", ErrMalformed, id)
	}
	return Message{
		ID:         id,
		Source:     gjson.GetBytes(raw, "source").String(),
		ChatID:     gjson.GetBytes(raw, "chat_id").String(),
		Text:       gjson.GetBytes(raw, "text").String(),
		Type:       gjson.GetBytes(raw, "type").String(),
		Timestamp:  gjson.GetBytes(raw, "timestamp").String(),
		RetryCount: gjson.GetBytes(raw, "_retry_count").Int(),
		Raw:        raw,
	}, nil
}

// NewRecord assembles a message record document. chatID may be a string or
// a number (Telegram chat ids are numeric, Slack's are strings) and is
// written as given. Extra fields merge in verbatim without overriding the
// core ones.
func NewRecord(id, source string, chatID any, typ, text string, extra map[string]any) ([]byte, error) {
	doc := map[string]any{
		"id":        id,
		"source":    source,
		"chat_id":   chatID,
		"type":      typ,
		"text":      text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		if _, taken := doc[k]; !taken {
			doc[k] = v
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: marshal record: %w", err)
	}
	return raw, nil
}

// setFields applies several sjson edits to raw, preserving every field it
// does not touch.
func setFields(raw []byte, fields map[string]any) ([]byte, error) {
	var err error
	for k, v := range fields {
		raw, err = sjson.SetBytes(raw, k, v)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: set %s: %w", k, err)
		}
	}
	return raw, nil
}
