package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/featherline/pigeonhole/internal/memory"
)

type RememberTool struct {
	store *memory.Store
}

func NewRememberTool(s *memory.Store) *RememberTool {
	return &RememberTool{store: s}
}

func (t *RememberTool) Name() string { return "remember" }
func (t *RememberTool) Description() string {
	return "Save a fact to long-term memory for later retrieval with memory_search."
}
func (t *RememberTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "The fact to remember."},
			"category": {"type": "string", "description": "Optional grouping label (preference, contact, ...)."}
		},
		"required": ["text"]
	}`)
}

func (t *RememberTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if err := t.store.Add(p.Text, p.Category); err != nil {
		return "", err
	}
	return "Remembered.", nil
}

type MemorySearchTool struct {
	store *memory.Store
}

func NewMemorySearchTool(s *memory.Store) *MemorySearchTool {
	return &MemorySearchTool{store: s}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }
func (t *MemorySearchTool) Description() string {
	return "Search long-term memory. Combines semantic similarity with keyword matching; works keyword-only when embeddings are unavailable."
}
func (t *MemorySearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "What to look for."},
			"limit": {"type": "integer", "description": "Maximum results. Default 5."}
		},
		"required": ["query"]
	}`)
}

func (t *MemorySearchTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	results, err := t.store.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No matching memories.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d matching memories:\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "\n(%.2f) %s", r.Score, r.Text)
		if r.Category != "" {
			fmt.Fprintf(&b, " [%s]", r.Category)
		}
	}
	return b.String(), nil
}
