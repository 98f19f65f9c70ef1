package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/featherline/pigeonhole/internal/lifecycle"
	"github.com/featherline/pigeonhole/internal/store"
)

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscribeVoiceTool transcribes a claimed voice message and writes the
// transcript back into the record, replacing the placeholder text. The
// record must be in processing: transcribing is part of handling a claim.
type TranscribeVoiceTool struct {
	queue       *lifecycle.Queue
	transcriber Transcriber // nil when no API key is configured
}

func NewTranscribeVoiceTool(q *lifecycle.Queue, tr Transcriber) *TranscribeVoiceTool {
	return &TranscribeVoiceTool{queue: q, transcriber: tr}
}

func (t *TranscribeVoiceTool) Name() string { return "transcribe_voice" }
func (t *TranscribeVoiceTool) Description() string {
	return "Transcribe a claimed voice message with Whisper and replace its placeholder text with the transcript. Use for messages with type=voice."
}
func (t *TranscribeVoiceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "The claimed voice message's ID"}
		},
		"required": ["message_id"]
	}`)
}

func (t *TranscribeVoiceTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.MessageID == "" {
		return "", fmt.Errorf("message_id is required")
	}
	if t.transcriber == nil {
		return "", fmt.Errorf("transcription is not configured: set an OpenAI API key")
	}

	st := t.queue.Store()
	raw, err := st.Read(store.Processing, p.MessageID)
	if err != nil {
		return "", fmt.Errorf("message %s is not being processed (claim it first): %w", p.MessageID, err)
	}

	if typ := gjson.GetBytes(raw, "type").String(); typ != "voice" {
		return "", fmt.Errorf("message %s is type %q, not a voice message", p.MessageID, typ)
	}
	if existing := gjson.GetBytes(raw, "transcription").String(); existing != "" {
		return fmt.Sprintf("Already transcribed:\n%s", existing), nil
	}
	audioPath := gjson.GetBytes(raw, "file_path").String()
	if audioPath == "" {
		return "", fmt.Errorf("message %s has no audio file on record", p.MessageID)
	}

	transcript, err := t.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	if transcript == "" {
		return "", fmt.Errorf("transcription returned no text")
	}

	updated, err := sjson.SetBytes(raw, "text", transcript)
	if err == nil {
		updated, err = sjson.SetBytes(updated, "transcription", transcript)
	}
	if err == nil {
		updated, err = sjson.SetBytes(updated, "transcribed_at", time.Now().UTC().Format(time.RFC3339))
	}
	if err != nil {
		return "", fmt.Errorf("failed to update record: %w", err)
	}
	if err := st.Write(store.Processing, p.MessageID, updated); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	return fmt.Sprintf("Transcription complete:\n%s", transcript), nil
}
