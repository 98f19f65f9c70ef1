// Package memory is the assistant's long-term memory: append-only JSONL
// entries searched with a blend of embedding similarity and keyword
// overlap. Embeddings come from the providers package and are cached by
// content hash, so a missing API key just narrows search to keywords.
package memory

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Embedder is the slice of the provider surface search needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Entry is one remembered fact.
type Entry struct {
	Text      string `json:"text"`
	Category  string `json:"category,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ScoredEntry pairs an entry with its search score in [0, 1].
type ScoredEntry struct {
	Entry
	Score float64 `json:"score"`
}

// Store owns the entries file and the embedding cache.
type Store struct {
	entriesPath     string
	cachePath       string
	embedder        Embedder // nil means keyword-only search
	embeddingWeight float64
	keywordWeight   float64
	mu              sync.Mutex
}

type Options struct {
	EntriesPath     string
	CachePath       string
	Embedder        Embedder
	EmbeddingWeight float64 // default 0.7
	KeywordWeight   float64 // default 0.3
}

func NewStore(opts Options) *Store {
	ew, kw := opts.EmbeddingWeight, opts.KeywordWeight
	if ew <= 0 && kw <= 0 {
		ew, kw = 0.7, 0.3
	}
	return &Store{
		entriesPath:     opts.EntriesPath,
		cachePath:       opts.CachePath,
		embedder:        opts.Embedder,
		embeddingWeight: ew,
		keywordWeight:   kw,
	}
}

// Add appends a fact to the memory log.
func (s *Store) Add(text, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("memory: empty text")
	}
	if err := os.MkdirAll(filepath.Dir(s.entriesPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.entriesPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(Entry{
		Text:      text,
		Category:  category,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Search returns the limit best-matching entries, best first. Embedding
// and keyword scores blend by the configured weights; entries scoring zero
// are dropped.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]ScoredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	embScores := s.embeddingScores(ctx, query, entries)

	ew, kw := s.embeddingWeight, s.keywordWeight
	if embScores == nil {
		ew, kw = 0, 1 // keyword-only degradation
	}
	total := ew + kw

	scored := make([]ScoredEntry, 0, len(entries))
	for i, e := range entries {
		score := kw * keywordScore(query, e.Text)
		if embScores != nil {
			score += ew * embScores[i]
		}
		score /= total
		if score > 0 {
			scored = append(scored, ScoredEntry{Entry: e, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// embeddingScores returns one cosine similarity per entry, or nil when
// embeddings are unavailable (no provider, or the provider failed).
func (s *Store) embeddingScores(ctx context.Context, query string, entries []Entry) []float64 {
	if s.embedder == nil {
		return nil
	}

	cache := s.loadCache()

	// Collect texts whose vectors we do not have yet; the query always
	// needs a fresh one.
	missing := []string{query}
	for _, e := range entries {
		if _, ok := cache[contentHash(e.Text)]; !ok {
			missing = append(missing, e.Text)
		}
	}

	vectors, err := s.embedder.Embed(ctx, missing)
	if err != nil {
		slog.Warn("embedding unavailable, falling back to keyword search", "error", err)
		return nil
	}
	queryVec := vectors[0]
	for i, text := range missing[1:] {
		cache[contentHash(text)] = vectors[i+1]
	}
	if len(missing) > 1 {
		s.saveCache(cache)
	}

	scores := make([]float64, len(entries))
	for i, e := range entries {
		if vec, ok := cache[contentHash(e.Text)]; ok {
			scores[i] = cosine(queryVec, vec)
		}
	}
	return scores
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// keywordScore is the fraction of query words present in text.
func keywordScore(query, text string) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0
	}
	textWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		textWords[strings.Trim(w, ".,!?;:\"'()")] = true
	}
	hits := 0
	for _, w := range queryWords {
		if textWords[strings.Trim(w, ".,!?;:\"'()")] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryWords))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *Store) loadEntries() ([]Entry, error) {
	f, err := os.Open(s.entriesPath)
	if os.IsNotExist(err) {
		return nil, nil
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
	return entries, scanner.Err()
}

func (s *Store) loadCache() map[string][]float32 {
	cache := make(map[string][]float32)
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		slog.Warn("embedding cache unreadable, starting fresh", "path", s.cachePath)
		return make(map[string][]float32)
	}
	return cache
}

func (s *Store) saveCache(cache map[string][]float32) {
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(s.cachePath, data, 0o644); err != nil {
		slog.Warn("failed to persist embedding cache", "error", err)
	}
}
