// Package providers wraps the OpenAI-compatible services the relay leans
// on: Whisper for voice transcription and the embeddings endpoint for
// memory search. Both are optional; an empty API key yields a nil provider
// and callers degrade gracefully.
package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultTranscriptionModel = "whisper-1"
	defaultEmbeddingModel     = "text-embedding-3-small"
)

type Options struct {
	APIKey             string
	BaseURL            string // optional OpenAI-compatible endpoint override
	TranscriptionModel string
	EmbeddingModel     string
}

// OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	client             *openai.Client
	transcriptionModel string
	embeddingModel     string
}

// NewOpenAIProvider returns nil when no API key is configured.
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	if opts.APIKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	transcriptionModel := opts.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = defaultTranscriptionModel
	}
	embeddingModel := opts.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &OpenAIProvider{
		client:             openai.NewClientWithConfig(cfg),
		transcriptionModel: transcriptionModel,
		embeddingModel:     embeddingModel,
	}
}

// Transcribe sends an audio file to the Whisper endpoint and returns the
// transcript text.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.transcriptionModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

// Embed returns one embedding vector per input text, in input order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
