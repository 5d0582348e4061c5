package core

import (
	"errors"

	"gwi.com/docchat/internal/extract"
)

// Client-input errors. Surfaced to the caller verbatim.
var (
	ErrInvalidDocumentType = errors.New("invalid file type, only PDF files are allowed")
	ErrEmptyContent        = extract.ErrEmptyContent
	ErrMissingChatName     = errors.New("chat name is required")
	ErrInvalidQuestion     = errors.New("invalid question")
	ErrChatNotFound        = errors.New("chat name not found")
	ErrNoResults           = errors.New("no relevant information found for the query")
	ErrEmptyContext        = errors.New("no relevant content retrieved")
)

// Backend and invariant errors.
var (
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrIndexUnavailable  = errors.New("vector index unavailable")
	ErrRegistryFailure   = errors.New("document registry failure")
	ErrMissingVectorID   = errors.New("vector ID not found in metadata")
	ErrGenerationFailure = errors.New("generation failure")
)
