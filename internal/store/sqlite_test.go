package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_DocumentRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := s.PutDocument(ctx, DocumentRecord{
		ChatName:       "c1",
		VectorID:       "c1_abc",
		SourceFileName: "sky.pdf",
		UploadedAt:     uploaded,
	})
	require.NoError(t, err)

	rec, err := s.GetDocument(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "c1", rec.ChatName)
	assert.Equal(t, "c1_abc", rec.VectorID)
	assert.Equal(t, "sky.pdf", rec.SourceFileName)
	assert.True(t, uploaded.Equal(rec.UploadedAt))
}

func TestSQLiteStore_PutOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentRecord{ChatName: "c1", VectorID: "c1_old", SourceFileName: "a.pdf"}))
	require.NoError(t, s.PutDocument(ctx, DocumentRecord{ChatName: "c1", VectorID: "c1_new", SourceFileName: "b.pdf"}))

	rec, err := s.GetDocument(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "c1_new", rec.VectorID)
	assert.Equal(t, "b.pdf", rec.SourceFileName)
	assert.False(t, rec.UploadedAt.IsZero())
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	rec, err := s.GetDocument(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLiteStore_PutRequiresChatName(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.Error(t, s.PutDocument(context.Background(), DocumentRecord{VectorID: "x"}))
}

func TestSQLiteIndex(t *testing.T) {
	s := newTestSQLiteStore(t)
	idx := NewSQLiteIndex(s, 3)
	runIndexContract(t, idx)
}

func TestSQLiteIndex_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteIndex(s, 2).Upsert(ctx, VectorEntry{
		ID:        "c1_a",
		Embedding: []float32{1, 0},
		Metadata:  map[string]string{MetaChatName: "c1", MetaText: "persisted"},
	}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	matches, err := NewSQLiteIndex(s, 2).Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "persisted", matches[0].Metadata[MetaText])
}
