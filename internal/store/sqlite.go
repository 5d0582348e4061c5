package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore owns the SQLite connection. It implements the document
// registry directly; SQLiteIndex builds the local vector index on top of it.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        chat_name TEXT PRIMARY KEY,
        vector_id TEXT NOT NULL,
        file_name TEXT NOT NULL DEFAULT '',
        uploaded_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS vectors (
        id TEXT PRIMARY KEY, -- {chat_name}_{uuid}
        chat_name TEXT NOT NULL DEFAULT '',
        metadata_json TEXT NOT NULL DEFAULT '{}',
        embedding_json TEXT NOT NULL -- JSON array of float32
    );

    CREATE INDEX IF NOT EXISTS idx_vectors_chat_name ON vectors (chat_name);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Document registry methods

// PutDocument stores rec under its chat name, replacing any previous record.
// A zero UploadedAt is stamped with the current time.
func (s *SQLiteStore) PutDocument(ctx context.Context, rec DocumentRecord) error {
	if rec.ChatName == "" {
		return fmt.Errorf("chat name required")
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}

	stmt, err := s.db.PrepareContext(ctx, `
        INSERT INTO documents (chat_name, vector_id, file_name, uploaded_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(chat_name) DO UPDATE SET
            vector_id = excluded.vector_id,
            file_name = excluded.file_name,
            uploaded_at = excluded.uploaded_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare document upsert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, rec.ChatName, rec.VectorID, rec.SourceFileName, rec.UploadedAt); err != nil {
		return fmt.Errorf("failed to execute document upsert: %w", err)
	}
	return nil
}

// GetDocument returns the record for chatName, or nil if there is none.
func (s *SQLiteStore) GetDocument(ctx context.Context, chatName string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT chat_name, vector_id, file_name, uploaded_at FROM documents WHERE chat_name = ?", chatName,
	).Scan(&rec.ChatName, &rec.VectorID, &rec.SourceFileName, &rec.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &rec, nil
}
