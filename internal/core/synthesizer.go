package core

import (
	"context"
	"fmt"
	"strings"
)

const DefaultMaxAnswerTokens = 150

// AnswerSynthesizer turns retrieved passages and a question into an answer.
type AnswerSynthesizer struct {
	generator Generator
	maxTokens int
}

func NewAnswerSynthesizer(generator Generator, maxTokens int) *AnswerSynthesizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxAnswerTokens
	}
	return &AnswerSynthesizer{generator: generator, maxTokens: maxTokens}
}

// buildPrompt joins passages in rank order, one per line.
func buildPrompt(passages []string, question string) string {
	return fmt.Sprintf("Based on the following information:\n%s\nAnswer the question: %s",
		strings.Join(passages, "\n"), question)
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, passages []string, question string) (string, error) {
	out, err := s.generator.Generate(ctx, buildPrompt(passages, question), s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty response from model", ErrGenerationFailure)
	}
	return out, nil
}
