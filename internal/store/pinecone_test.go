package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/docchat/internal/logger"
)

// fakePinecone serves the control and data plane from one httptest server.
type fakePinecone struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	exists   bool
	dim      int
	created  map[string]any
	upserts  []pineconeUpsertRequest
	queries  []pineconeQueryRequest
	deletes  []pineconeDeleteRequest
	failData bool
}

func newFakePinecone(t *testing.T, exists bool, dim int) *fakePinecone {
	f := &fakePinecone{t: t, exists: exists, dim: dim}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePinecone) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	assert.Equal(f.t, "test-key", r.Header.Get("Api-Key"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/indexes/docs":
		if !f.exists {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name":      "docs",
			"host":      f.srv.URL,
			"dimension": f.dim,
			"metric":    "cosine",
			"status":    map[string]any{"ready": true, "state": "Ready"},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/indexes":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.created))
		f.exists = true
		f.dim = int(f.created["dimension"].(float64))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	case f.failData:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	case r.URL.Path == "/vectors/upsert":
		var req pineconeUpsertRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.upserts = append(f.upserts, req)
		w.Write([]byte(`{"upsertedCount":1}`))
	case r.URL.Path == "/query":
		var req pineconeQueryRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.queries = append(f.queries, req)
		w.Write([]byte(`{"matches":[
			{"id":"c1_a","score":0.93,"metadata":{"chat_name":"c1","text":"The sky is blue."}},
			{"id":"","score":0.5},
			{"id":"c1_b","score":0.41,"metadata":{"chat_name":"c1","text":"Grass is green.","page":3}}
		]}`))
	case r.URL.Path == "/vectors/delete":
		var req pineconeDeleteRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.deletes = append(f.deletes, req)
		w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePinecone) config() PineconeConfig {
	return PineconeConfig{
		APIKey:            "test-key",
		BaseURL:           f.srv.URL,
		IndexName:         "docs",
		Namespace:         "chats",
		Dimension:         384,
		ReadyPollInterval: 10 * time.Millisecond,
		ReadyTimeout:      time.Second,
	}
}

func TestNewPineconeIndex_ExistingIndex(t *testing.T) {
	f := newFakePinecone(t, true, 384)

	idx, err := NewPineconeIndex(context.Background(), logger.NewNop(), f.config())
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL, idx.host)
	assert.Nil(t, f.created)
}

func TestNewPineconeIndex_CreatesMissingIndex(t *testing.T) {
	f := newFakePinecone(t, false, 0)

	_, err := NewPineconeIndex(context.Background(), logger.NewNop(), f.config())
	require.NoError(t, err)
	require.NotNil(t, f.created)
	assert.Equal(t, "docs", f.created["name"])
	assert.Equal(t, float64(384), f.created["dimension"])
	assert.Equal(t, "cosine", f.created["metric"])
	spec := f.created["spec"].(map[string]any)["serverless"].(map[string]any)
	assert.Equal(t, "aws", spec["cloud"])
	assert.Equal(t, "us-east-1", spec["region"])
}

func TestNewPineconeIndex_DimensionMismatch(t *testing.T) {
	f := newFakePinecone(t, true, 768)

	_, err := NewPineconeIndex(context.Background(), logger.NewNop(), f.config())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 768")
}

func TestNewPineconeIndex_ConfigErrors(t *testing.T) {
	_, err := NewPineconeIndex(context.Background(), nil, PineconeConfig{APIKey: "k", IndexName: "x", Dimension: 3})
	assert.Error(t, err)
	_, err = NewPineconeIndex(context.Background(), logger.NewNop(), PineconeConfig{IndexName: "x", Dimension: 3})
	assert.Error(t, err)
	_, err = NewPineconeIndex(context.Background(), logger.NewNop(), PineconeConfig{APIKey: "k", IndexName: "x"})
	assert.Error(t, err)
}

func TestPineconeIndex_DataPlane(t *testing.T) {
	f := newFakePinecone(t, true, 384)
	cfg := f.config()
	cfg.IndexHost = f.srv.URL
	idx, err := NewPineconeIndex(context.Background(), logger.NewNop(), cfg)
	require.NoError(t, err)
	ctx := context.Background()

	err = idx.Upsert(ctx, VectorEntry{
		ID:        "c1_a",
		Embedding: []float32{0.1, 0.2},
		Metadata:  map[string]string{MetaChatName: "c1", MetaText: "The sky is blue."},
	})
	require.NoError(t, err)
	require.Len(t, f.upserts, 1)
	assert.Equal(t, "chats", f.upserts[0].Namespace)
	assert.Equal(t, "c1_a", f.upserts[0].Vectors[0].ID)
	assert.Equal(t, "c1", f.upserts[0].Vectors[0].Metadata[MetaChatName])

	matches, err := idx.Query(ctx, []float32{0.1, 0.2}, 5, map[string]string{MetaChatName: "c1"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c1_a", matches[0].ID)
	assert.InDelta(t, 0.93, matches[0].Score, 1e-6)
	assert.Equal(t, "The sky is blue.", matches[0].Metadata[MetaText])
	assert.Equal(t, "3", matches[1].Metadata["page"])

	require.Len(t, f.queries, 1)
	assert.Equal(t, 5, f.queries[0].TopK)
	assert.True(t, f.queries[0].IncludeMetadata)
	assert.Equal(t, map[string]any{"$eq": "c1"}, f.queries[0].Filter[MetaChatName])

	require.NoError(t, idx.Delete(ctx, "c1_a"))
	require.Len(t, f.deletes, 1)
	assert.Equal(t, []string{"c1_a"}, f.deletes[0].IDs)
}

func TestPineconeIndex_HTTPError(t *testing.T) {
	f := newFakePinecone(t, true, 384)
	f.failData = true
	cfg := f.config()
	cfg.IndexHost = f.srv.URL
	idx, err := NewPineconeIndex(context.Background(), logger.NewNop(), cfg)
	require.NoError(t, err)

	err = idx.Delete(context.Background(), "c1_a")
	require.Error(t, err)
	var httpErr *PineconeHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.HTTPStatusCode())
}
