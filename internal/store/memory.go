package store

import (
	"context"
	"fmt"
	"sync"

	"gwi.com/docchat/internal/utils"
)

// MemoryIndex is a process-local vector index using brute-force cosine
// similarity. Contents are lost on restart.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]VectorEntry
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string]VectorEntry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entry VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		return fmt.Errorf("vector id required")
	}
	if len(entry.Embedding) != m.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(entry.Embedding), m.dimension)
	}

	stored := VectorEntry{
		ID:        entry.ID,
		Embedding: append([]float32(nil), entry.Embedding...),
		Metadata:  copyMetadata(entry.Metadata),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = stored
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), m.dimension)
	}

	m.mu.RLock()
	candidates := make([]VectorEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if matchesFilter(e.Metadata, filter) {
			candidates = append(candidates, e)
		}
	}
	m.mu.RUnlock()

	return rankEntries(vector, candidates, topK), nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Has reports whether id is present.
func (m *MemoryIndex) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

// Len returns the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// rankEntries scores candidates against vector and returns up to topK
// matches, best first. Ties are broken by id for stable output.
func rankEntries(vector []float32, candidates []VectorEntry, topK int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, e := range candidates {
		score, err := utils.CosineSimilarity(vector, e.Embedding)
		if err != nil {
			continue
		}
		matches = append(matches, Match{ID: e.ID, Score: score, Metadata: copyMetadata(e.Metadata)})
	}

	sortMatches(matches)
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
