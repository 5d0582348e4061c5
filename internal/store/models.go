package store

import (
	"sort"
	"time"
)

// DocumentRecord is the registry entry for a chat: which vector currently
// backs it and where it came from.
type DocumentRecord struct {
	ChatName       string    `json:"chat_name"`
	VectorID       string    `json:"vector_id"`
	SourceFileName string    `json:"file_name"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Metadata keys stored next to every vector.
const (
	MetaChatName = "chat_name"
	MetaText     = "text"
)

type VectorEntry struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata"`
}

// Match is one ranked hit from a similarity query.
type Match struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// matchesFilter reports whether every filter key is present in meta with
// an equal value. A nil filter matches everything.
func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func copyMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}
