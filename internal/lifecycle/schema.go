package lifecycle

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// recordSchema is the producer-edge contract: what a record must carry to
// enter the inbox. additionalProperties stays open, since unknown fields
// are opaque pass-through everywhere downstream.
const recordSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"source": {"type": "string", "minLength": 1},
		"chat_id": {"type": ["string", "integer", "number"]},
		"text": {"type": "string"},
		"type": {"enum": ["text", "voice", "photo", "document", "image", "callback"]},
		"timestamp": {"type": "string"}
	},
	"required": ["id", "source", "chat_id", "text", "timestamp"],
	"additionalProperties": true
}`

func compileRecordSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(recordSchema))
	if err != nil {
		return nil, fmt.Errorf("lifecycle: parse record schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("record.json", doc); err != nil {
		return nil, fmt.Errorf("lifecycle: add record schema: %w", err)
	}
	sch, err := c.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("lifecycle: compile record schema: %w", err)
	}
	return sch, nil
}

// validateRecord checks raw against the producer contract. Lifecycle
// transitions never re-validate; only enqueue calls this.
func (q *Queue) validateRecord(raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return ErrMalformed
	}
	if err := q.schema.Validate(inst); err != nil {
		return fmt.Errorf("lifecycle: invalid record: %w", err)
	}
	return nil
}
