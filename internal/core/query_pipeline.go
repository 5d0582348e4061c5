package core

import (
	"context"
	"fmt"
	"strings"

	"gwi.com/docchat/internal/logger"
	"gwi.com/docchat/internal/store"
	"gwi.com/docchat/internal/utils"
)

const DefaultTopK = 5

// QueryPipeline answers a question against the document registered for a chat.
type QueryPipeline struct {
	validator   QuestionValidator
	registry    DocumentRegistry
	embedder    Embedder
	index       VectorIndex
	synthesizer *AnswerSynthesizer
	dimension   int
	topK        int
	log         *logger.Logger
}

type QueryConfig struct {
	Dimension int
	TopK      int
}

func NewQueryPipeline(log *logger.Logger, validator QuestionValidator, registry DocumentRegistry, embedder Embedder, index VectorIndex, synthesizer *AnswerSynthesizer, cfg QueryConfig) *QueryPipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &QueryPipeline{
		validator:   validator,
		registry:    registry,
		embedder:    embedder,
		index:       index,
		synthesizer: synthesizer,
		dimension:   cfg.Dimension,
		topK:        cfg.TopK,
		log:         log,
	}
}

func (p *QueryPipeline) Query(ctx context.Context, chatName, question string) (string, error) {
	log := p.log.With("chat_name", chatName)

	if !p.validator.IsValid(question) {
		return "", ErrInvalidQuestion
	}

	rec, err := p.registry.GetDocument(ctx, chatName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistryFailure, err)
	}
	if rec == nil {
		return "", ErrChatNotFound
	}
	if rec.VectorID == "" {
		return "", ErrMissingVectorID
	}
	log = log.With("vector_id", rec.VectorID)

	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if p.dimension > 0 && len(vector) != p.dimension {
		return "", fmt.Errorf("%w: query embedding has %d dimensions, index expects %d",
			ErrDimensionMismatch, len(vector), p.dimension)
	}
	if err := utils.CheckVector(vector); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}

	matches, err := p.index.Query(ctx, vector, p.topK, map[string]string{store.MetaChatName: chatName})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	if len(matches) == 0 {
		return "", ErrNoResults
	}
	log.Debug("retrieved matches", "count", len(matches), "top_score", matches[0].Score)

	passages := make([]string, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, m.Metadata[store.MetaText])
	}
	if strings.TrimSpace(strings.Join(passages, "\n")) == "" {
		return "", ErrEmptyContext
	}

	answer, err := p.synthesizer.Synthesize(ctx, passages, question)
	if err != nil {
		log.Error("answer synthesis failed", "error", err)
		return "", err
	}
	log.Info("question answered", "matches", len(matches))
	return answer, nil
}
