package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	LogLevel string
	LogMode  string

	DatabaseURL string

	RegistryBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string

	VectorBackend     string
	PineconeAPIKey    string
	PineconeIndexName string
	PineconeIndexHost string
	PineconeNamespace string
	PineconeCloud     string
	PineconeRegion    string

	EmbeddingBackend   string
	EmbeddingDimension int
	GenerationBackend  string

	OllamaURL        string
	OllamaEmbedModel string
	OllamaChatModel  string
	OllamaToken      string

	GeminiAPIKey     string
	GeminiEmbedModel string
	GeminiChatModel  string

	MaxAnswerTokens int
	TopK            int
	UploadDir       string
	MaxUploadMB     int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogMode:  getEnv("LOG_MODE", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "docchat.db"),

		RegistryBackend: strings.ToLower(getEnv("REGISTRY_BACKEND", "sqlite")),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix:  getEnv("REDIS_KEY_PREFIX", "docchat"),

		VectorBackend:     strings.ToLower(getEnv("VECTOR_BACKEND", "sqlite")),
		PineconeAPIKey:    getEnv("PINECONE_API_KEY", ""),
		PineconeIndexName: strings.TrimSpace(getEnv("PINECONE_INDEX_NAME", "docchat")),
		PineconeIndexHost: getEnv("PINECONE_INDEX_HOST", ""),
		PineconeNamespace: getEnv("PINECONE_NAMESPACE", ""),
		PineconeCloud:     getEnv("PINECONE_CLOUD", "aws"),
		PineconeRegion:    getEnv("PINECONE_REGION", "us-east-1"),

		EmbeddingBackend:   strings.ToLower(getEnv("EMBEDDING_BACKEND", "local")),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 384),
		GenerationBackend:  strings.ToLower(getEnv("GENERATION_BACKEND", "ollama")),

		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "all-minilm"),
		OllamaChatModel:  getEnv("OLLAMA_CHAT_MODEL", "llama3.2"),
		OllamaToken:      getEnv("OLLAMA_TOKEN", ""),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiEmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"), // 768 dimensions
		GeminiChatModel:  getEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash-latest"),

		MaxAnswerTokens: getEnvAsInt("MAX_ANSWER_TOKENS", 150),
		TopK:            getEnvAsInt("TOP_K", 5),
		UploadDir:       getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadMB:     getEnvAsInt("MAX_UPLOAD_MB", 32),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// geminiEmbeddingDimensions lists the fixed output size of the Gemini
// embedding models; the genai client cannot request a smaller vector.
var geminiEmbeddingDimensions = map[string]int{
	"text-embedding-004": 768,
	"embedding-001":      768,
}

func (c *Config) validate() error {
	switch c.RegistryBackend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q", c.RegistryBackend)
	}
	switch c.VectorBackend {
	case "sqlite", "memory":
	case "pinecone":
		if c.PineconeAPIKey == "" {
			return fmt.Errorf("PINECONE_API_KEY environment variable is required for the pinecone backend")
		}
		if c.PineconeIndexName == "" {
			return fmt.Errorf("PINECONE_INDEX_NAME must not be empty")
		}
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	switch c.EmbeddingBackend {
	case "local", "ollama", "gemini":
	default:
		return fmt.Errorf("unknown EMBEDDING_BACKEND %q", c.EmbeddingBackend)
	}
	switch c.GenerationBackend {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unknown GENERATION_BACKEND %q", c.GenerationBackend)
	}
	if c.usesGemini() && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required for the gemini backend")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.EmbeddingBackend == "gemini" {
		if want, ok := geminiEmbeddingDimensions[c.GeminiEmbedModel]; ok && want != c.EmbeddingDimension {
			return fmt.Errorf("EMBEDDING_DIMENSION must be %d for GEMINI_EMBED_MODEL %q, got %d",
				want, c.GeminiEmbedModel, c.EmbeddingDimension)
		}
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MaxAnswerTokens <= 0 {
		return fmt.Errorf("MAX_ANSWER_TOKENS must be positive, got %d", c.MaxAnswerTokens)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

func (c *Config) usesGemini() bool {
	return c.EmbeddingBackend == "gemini" || c.GenerationBackend == "gemini"
}

// MaxUploadBytes is the multipart body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
