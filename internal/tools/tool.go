// Package tools exposes the message lifecycle and its supporting services
// as named, JSON-schema-described tools for an external agent. Results are
// human-readable strings; failures come back as formatted tool errors.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface all tools must implement
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage // JSON Schema
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}
