package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// SQLiteIndex is a vector index persisted in the SQLite store. Similarity is
// computed in process, so it suits single-node deployments and development.
type SQLiteIndex struct {
	store     *SQLiteStore
	dimension int
}

func NewSQLiteIndex(store *SQLiteStore, dimension int) *SQLiteIndex {
	return &SQLiteIndex{store: store, dimension: dimension}
}

func (x *SQLiteIndex) Upsert(ctx context.Context, entry VectorEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("vector id required")
	}
	if len(entry.Embedding) != x.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(entry.Embedding), x.dimension)
	}

	embeddingBytes, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	stmt, err := x.store.db.PrepareContext(ctx, `
        INSERT INTO vectors (id, chat_name, metadata_json, embedding_json) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            chat_name = excluded.chat_name,
            metadata_json = excluded.metadata_json,
            embedding_json = excluded.embedding_json`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector upsert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, entry.ID, metadata[MetaChatName], string(metadataBytes), string(embeddingBytes))
	if err != nil {
		return fmt.Errorf("failed to execute vector upsert: %w", err)
	}
	return nil
}

func (x *SQLiteIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), x.dimension)
	}

	query := "SELECT id, metadata_json, embedding_json FROM vectors"
	var args []any
	if chat, ok := filter[MetaChatName]; ok {
		query += " WHERE chat_name = ?"
		args = append(args, chat)
	}

	rows, err := x.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var candidates []VectorEntry
	for rows.Next() {
		var (
			entry         VectorEntry
			metadataJSON  string
			embeddingJSON string
		)
		if err := rows.Scan(&entry.ID, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for vector %s: %w", entry.ID, err)
		}
		if !matchesFilter(entry.Metadata, filter) {
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &entry.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for vector %s: %w", entry.ID, err)
		}
		candidates = append(candidates, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vector rows: %w", err)
	}

	return rankEntries(vector, candidates, topK), nil
}

func (x *SQLiteIndex) Delete(ctx context.Context, id string) error {
	if _, err := x.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete vector %s: %w", id, err)
	}
	return nil
}
