package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiChatModel  = "gemini-1.5-flash-latest"
	defaultGeminiEmbedModel = "text-embedding-004"

	answerSystemInstruction = "You answer questions using only the information supplied in the prompt. " +
		"If the information does not contain the answer, say that you don't know. Keep answers concise."
)

type GeminiConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
}

// GeminiProvider implements embedding and generation with the Gemini API.
type GeminiProvider struct {
	client     *genai.Client
	embedModel string
	chatModel  string
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultGeminiEmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultGeminiChatModel
	}
	return &GeminiProvider{
		client:     client,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
	}, nil
}

func (g *GeminiProvider) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiProvider) ModelName() string { return g.chatModel }

func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	model := g.client.GenerativeModel(g.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(answerSystemInstruction)},
	}
	limit := int32(maxTokens)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &limit,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	return responseText(resp), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
