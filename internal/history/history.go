// Package history keeps an append-only conversation log per chat, one
// JSONL file per (source, chat) pair. It is bookkeeping for the operator
// and the history tool; the message lifecycle never reads it.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is one logged message.
type Entry struct {
	Role      string `json:"role"` // "user" or "assistant"
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// QueryOptions page and filter a conversation log.
type QueryOptions struct {
	Limit       int    // max entries returned; <= 0 means 20
	Offset      int    // entries skipped from the newest end
	Search      string // case-insensitive substring filter
	Role        string // keep only entries with this role; empty keeps all
	OldestFirst bool   // reverse the default newest-first order
}

// Manager handles the conversation files under one directory.
type Manager struct {
	dataDir string
	mu      sync.Mutex
}

func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// convFilename replaces unsafe characters for use as a filename. Numeric
// chat ids format as plain digits whatever Go type they arrive in, so a
// JSON-decoded float64 and a native int64 name the same conversation.
func convFilename(source string, chatID any) string {
	id := fmt.Sprintf("%v", chatID)
	if f, ok := chatID.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		id = strconv.FormatInt(int64(f), 10)
	}
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return r.Replace(source+"_"+id) + ".jsonl"
}

// Record appends one entry to the conversation log.
func (m *Manager) Record(source string, chatID any, role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	path := filepath.Join(m.dataDir, convFilename(source, chatID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	entry := Entry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// Query returns a page of a conversation, newest first by default. A
// missing log is an empty conversation, not an error.
func (m *Manager) Query(source string, chatID any, opts QueryOptions) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll(filepath.Join(m.dataDir, convFilename(source, chatID)))
	if err != nil {
		return nil, err
	}

	if opts.Search != "" || opts.Role != "" {
		needle := strings.ToLower(opts.Search)
		kept := entries[:0]
		for _, e := range entries {
			if opts.Role != "" && e.Role != opts.Role {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(e.Text), needle) {
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	// Files are appended oldest-first; flip unless asked not to.
	if !opts.OldestFirst {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return []Entry{}, nil
		}
		entries = entries[opts.Offset:]
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Conversations lists the known conversation keys, sorted.
func (m *Manager) Conversations() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirents, err := os.ReadDir(m.dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".jsonl"))
	}
	sort.Strings(keys)
	return keys, nil
}

// readAll loads a log oldest-first, skipping lines that do not parse.
func (m *Manager) readAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
