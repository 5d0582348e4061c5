// Package llm holds the embedding and text generation backends.
package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"gwi.com/docchat/internal/utils"
)

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// LocalEmbedder is an offline sentence embedder. Each token is mapped to a
// pseudo-random unit vector seeded by its hash; token vectors are mean-pooled
// and L2-normalised. Identical text always yields the identical vector, and
// texts sharing vocabulary score higher under cosine similarity.
type LocalEmbedder struct {
	dimension int
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	return &LocalEmbedder{dimension: dimension}
}

func (e *LocalEmbedder) ModelName() string { return fmt.Sprintf("local-hash-%d", e.dimension) }

func (e *LocalEmbedder) Dimension() int { return e.dimension }

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.dimension <= 0 {
		return nil, fmt.Errorf("local embedder: invalid dimension %d", e.dimension)
	}
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("local embedder: no tokens in input")
	}

	tokenVectors := make([][]float32, len(tokens))
	for i, tok := range tokens {
		tokenVectors[i] = e.tokenVector(tok)
	}
	pooled, err := utils.MeanPool(tokenVectors)
	if err != nil {
		return nil, fmt.Errorf("local embedder: %w", err)
	}
	return utils.L2Normalize(pooled), nil
}

func (e *LocalEmbedder) tokenVector(token string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(token))
	seed := h.Sum64()

	vec := make([]float32, e.dimension)
	for i := range vec {
		seed += 0x9e3779b97f4a7c15
		// Top 53 bits mapped to [-1, 1).
		vec[i] = float32(float64(mix64(seed)>>11)/float64(1<<53)*2 - 1)
	}
	return utils.L2Normalize(vec)
}

// mix64 is the splitmix64 finaliser.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
