package bus

import "encoding/json"

// InboundMessage is a message as an adapter received it, before it becomes
// a durable record. Extra carries adapter-specific fields (file paths,
// callback ids, thread anchors) that ride the record untouched.
type InboundMessage struct {
	Source     string         // originating adapter ("telegram", "slack", ...)
	SenderID   string         // platform sender identifier
	ChatID     any            // chat identifier; numeric for Telegram, string for Slack
	Text       string         // text content or media placeholder
	Type       string         // "text", "voice", "photo", "document", "callback"
	PlatformID string         // platform message id; becomes the record id suffix
	Extra      map[string]any // passthrough fields for the record
}

// OutboundMessage is a reply read back out of the outbox, addressed to one
// adapter. RecordID names the outbox file so the dispatcher can drop it
// once the send succeeds.
type OutboundMessage struct {
	RecordID string          // outbox filename stem
	Source   string          // target adapter
	ChatID   any             // target chat
	Text     string          // text content
	Buttons  json.RawMessage // optional inline keyboard rows
	ThreadTS string          // optional Slack thread anchor
}
