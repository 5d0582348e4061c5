package main

import (
	"context"
	"fmt"
	"io"

	"gwi.com/docchat/internal/config"
	"gwi.com/docchat/internal/core"
	"gwi.com/docchat/internal/llm"
	"gwi.com/docchat/internal/logger"
	"gwi.com/docchat/internal/store"
)

// backends holds the constructed collaborators and everything that needs closing.
type backends struct {
	registry  core.DocumentRegistry
	index     core.VectorIndex
	embedder  core.Embedder
	generator core.Generator
	closers   []io.Closer
}

func (b *backends) Close(log *logger.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			log.Warn("failed to close backend", "error", err)
		}
	}
}

func buildBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close(log)
		}
	}()

	// SQLite is opened lazily: only the sqlite registry and index need it.
	var sqliteStore *store.SQLiteStore
	openSQLite := func() (*store.SQLiteStore, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		s, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		sqliteStore = s
		b.closers = append(b.closers, s)
		return s, nil
	}

	switch cfg.RegistryBackend {
	case "redis":
		r, err := store.NewRedisRegistry(store.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis registry: %w", err)
		}
		b.closers = append(b.closers, r)
		b.registry = r
	default:
		s, err := openSQLite()
		if err != nil {
			return nil, err
		}
		b.registry = s
	}

	switch cfg.VectorBackend {
	case "pinecone":
		p, err := store.NewPineconeIndex(ctx, log, store.PineconeConfig{
			APIKey:    cfg.PineconeAPIKey,
			IndexName: cfg.PineconeIndexName,
			IndexHost: cfg.PineconeIndexHost,
			Namespace: cfg.PineconeNamespace,
			Dimension: cfg.EmbeddingDimension,
			Cloud:     cfg.PineconeCloud,
			Region:    cfg.PineconeRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pinecone index: %w", err)
		}
		b.index = p
	case "memory":
		b.index = store.NewMemoryIndex(cfg.EmbeddingDimension)
	default:
		s, err := openSQLite()
		if err != nil {
			return nil, err
		}
		b.index = store.NewSQLiteIndex(s, cfg.EmbeddingDimension)
	}

	var gemini *llm.GeminiProvider
	if cfg.EmbeddingBackend == "gemini" || cfg.GenerationBackend == "gemini" {
		g, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			EmbedModel: cfg.GeminiEmbedModel,
			ChatModel:  cfg.GeminiChatModel,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, g)
		gemini = g
	}
	ollama := llm.NewOllamaProvider(llm.OllamaConfig{
		BaseURL:    cfg.OllamaURL,
		EmbedModel: cfg.OllamaEmbedModel,
		ChatModel:  cfg.OllamaChatModel,
		Token:      cfg.OllamaToken,
	})

	switch cfg.EmbeddingBackend {
	case "gemini":
		b.embedder = gemini
	case "ollama":
		b.embedder = ollama
	default:
		b.embedder = llm.NewLocalEmbedder(cfg.EmbeddingDimension)
	}

	switch cfg.GenerationBackend {
	case "gemini":
		b.generator = gemini
	default:
		b.generator = ollama
	}

	log.Info("backends ready",
		"registry", cfg.RegistryBackend,
		"vector_index", cfg.VectorBackend,
		"embedding", cfg.EmbeddingBackend,
		"generation", cfg.GenerationBackend,
		"dimension", cfg.EmbeddingDimension)
	ok = true
	return b, nil
}
