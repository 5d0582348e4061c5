package core

import (
	"context"
	"os"
	"sync"

	"gwi.com/docchat/internal/store"
)

const testDim = 384

// fileExtractor returns the staged file's bytes as its text.
type fileExtractor struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fileExtractor) Extract(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type fakeEmbedder struct {
	calls  int
	vector []float32
	err    error
	embed  Embedder // delegate when set
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.embed != nil {
		return f.embed.Embed(ctx, text)
	}
	return f.vector, nil
}

type fakeRegistry struct {
	mu     sync.Mutex
	docs   map[string]store.DocumentRecord
	putErr error
	getErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{docs: make(map[string]store.DocumentRecord)}
}

func (f *fakeRegistry) PutDocument(_ context.Context, rec store.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.docs[rec.ChatName] = rec
	return nil
}

func (f *fakeRegistry) GetDocument(_ context.Context, chatName string) (*store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.docs[chatName]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type fakeGenerator struct {
	prompt    string
	maxTokens int
	out       string
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	f.prompt = prompt
	f.maxTokens = maxTokens
	return f.out, f.err
}

// scriptedIndex returns canned results and counts calls.
type scriptedIndex struct {
	queries   int
	matches   []store.Match
	queryErr  error
	upsert    error
	deleteErr error
	deleted   []string
}

func (s *scriptedIndex) Upsert(context.Context, store.VectorEntry) error { return s.upsert }

func (s *scriptedIndex) Query(context.Context, []float32, int, map[string]string) ([]store.Match, error) {
	s.queries++
	return s.matches, s.queryErr
}

func (s *scriptedIndex) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

// lostAckIndex stores the entry and then reports failure, as a write that
// landed after the caller gave up would.
type lostAckIndex struct {
	*store.MemoryIndex
	err error
}

func (l *lostAckIndex) Upsert(ctx context.Context, entry store.VectorEntry) error {
	if err := l.MemoryIndex.Upsert(ctx, entry); err != nil {
		return err
	}
	return l.err
}

// cancelAfterUpsert cancels the request context once the vector is written.
type cancelAfterUpsert struct {
	*store.MemoryIndex
	cancel context.CancelFunc
}

func (c *cancelAfterUpsert) Upsert(ctx context.Context, entry store.VectorEntry) error {
	err := c.MemoryIndex.Upsert(ctx, entry)
	c.cancel()
	return err
}

func unitVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	return v
}
