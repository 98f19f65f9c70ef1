package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/sjson"

	"github.com/featherline/pigeonhole/internal/store"
)

// maxReplyText caps reply length at the strictest platform limit
// (Telegram's 4096); longer texts are truncated with an ellipsis.
const maxReplyText = 4096

// Reply is an outgoing message for an adapter to deliver. Buttons and
// ThreadTS pass through verbatim for the adapter to render.
type Reply struct {
	Source   string
	ChatID   any // string or number, written as given
	Text     string
	Buttons  json.RawMessage // optional rows of {text, callback_data}
	ThreadTS string          // optional Slack thread anchor
}

// SendReply validates a reply and writes it atomically into the outbox,
// keyed <epoch-millis>_<source> so adapters can filter by suffix. Outbox
// entries are outside the state machine: the adapter deletes the file once
// delivered, and that deletion is the only acknowledgment.
func (q *Queue) SendReply(r Reply) (string, error) {
	if r.ChatID == nil || r.ChatID == "" {
		return "", fmt.Errorf("%w: chat_id is required", ErrInvalidReply)
	}
	if r.Text == "" {
		return "", fmt.Errorf("%w: text is required", ErrInvalidReply)
	}
	if !q.replySources[r.Source] {
		return "", fmt.Errorf("%w: unroutable source %q", ErrInvalidReply, r.Source)
	}

	text := r.Text
	if len(text) > maxReplyText {
		text = text[:maxReplyText-3] + "..."
	}

	id := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), r.Source)
	doc, err := json.Marshal(map[string]any{
		"id":        id,
		"source":    r.Source,
		"chat_id":   r.ChatID,
		"text":      text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("lifecycle: marshal reply: %w", err)
	}
	if len(r.Buttons) > 0 {
		doc, err = sjson.SetRawBytes(doc, "buttons", r.Buttons)
		if err != nil {
			return "", fmt.Errorf("lifecycle: attach buttons: %w", err)
		}
	}
	if r.ThreadTS != "" {
		doc, err = sjson.SetBytes(doc, "thread_ts", r.ThreadTS)
		if err != nil {
			return "", fmt.Errorf("lifecycle: attach thread_ts: %w", err)
		}
	}

	if err := q.store.Write(store.Outbox, id, doc); err != nil {
		return "", err
	}
	return id, nil
}
