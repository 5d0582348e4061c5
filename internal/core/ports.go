package core

import (
	"context"

	"gwi.com/docchat/internal/store"
)

// Embedder maps text to a fixed-length vector. Documents and questions share
// the same embedder so their vectors are comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a bounded continuation of a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// TextExtractor reads the raw text of a staged document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// VectorIndex is one logical operation per call against the vector store.
// Query returns an empty slice, not an error, when nothing matches.
// Delete of an absent id is a no-op.
type VectorIndex interface {
	Upsert(ctx context.Context, entry store.VectorEntry) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]store.Match, error)
	Delete(ctx context.Context, id string) error
}

// DocumentRegistry maps a chat name to the vector that backs it.
// GetDocument returns (nil, nil) when the chat name is unknown.
type DocumentRegistry interface {
	PutDocument(ctx context.Context, rec store.DocumentRecord) error
	GetDocument(ctx context.Context, chatName string) (*store.DocumentRecord, error)
}

type QuestionValidator interface {
	IsValid(question string) bool
}
