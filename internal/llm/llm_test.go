package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/docchat/internal/utils"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(384)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The sky is blue.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "The sky is blue.")
	require.NoError(t, err)

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)
	assert.NoError(t, utils.CheckVector(a))
}

func TestLocalEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewLocalEmbedder(384)
	ctx := context.Background()

	doc, err := e.Embed(ctx, "The sky is blue.")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "What color is the sky?")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "Quarterly revenue grew in Lisbon")
	require.NoError(t, err)

	simRelated, err := utils.CosineSimilarity(doc, related)
	require.NoError(t, err)
	simUnrelated, err := utils.CosineSimilarity(doc, unrelated)
	require.NoError(t, err)
	assert.Greater(t, simRelated, simUnrelated)
}

func TestLocalEmbedder_CaseInsensitive(t *testing.T) {
	e := NewLocalEmbedder(16)
	a, err := e.Embed(context.Background(), "Blue SKY")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "blue sky")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocalEmbedder_Errors(t *testing.T) {
	_, err := NewLocalEmbedder(384).Embed(context.Background(), "  ?! ")
	assert.Error(t, err)

	_, err = NewLocalEmbedder(0).Embed(context.Background(), "text")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLocalEmbedder(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOllamaProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "all-minilm", body["model"])
		assert.Equal(t, "hello", body["input"])

		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL + "/", EmbedModel: "all-minilm", Token: "secret"})
	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaProvider_EmbedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL}).Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOllamaProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.2", body["model"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, float64(150), body["options"].(map[string]any)["num_predict"])

		w.Write([]byte(`{"response":"The sky is blue.","done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, ChatModel: "llama3.2"})
	assert.Equal(t, "llama3.2", p.ModelName())

	out, err := p.Generate(context.Background(), "prompt", 150)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", out)
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), "p", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("The sky "), genai.Text("is blue.")}},
		}},
	}
	assert.Equal(t, "The sky is blue.", responseText(resp))
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
