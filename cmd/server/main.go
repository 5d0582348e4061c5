package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gwi.com/docchat/internal/api"
	"gwi.com/docchat/internal/config"
	"gwi.com/docchat/internal/core"
	"gwi.com/docchat/internal/extract"
	"gwi.com/docchat/internal/logger"
)

func main() {
	// Command line flags for one-off ingestion
	ingestPath := flag.String("ingest", "", "Ingest the given PDF file and exit")
	chatName := flag.String("chat", "", "Chat name the ingested document is registered under")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 3*time.Minute)
	b, err := buildBackends(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Fatal("failed to initialize backends", "error", err)
	}
	defer b.Close(log)

	extractor := extract.NewPDFExtractor()
	extractor.OnPageError = func(page int, err error) {
		log.Warn("page text extraction failed, using empty text", "page", page, "error", err)
	}

	ingestion := core.NewIngestionPipeline(log, extractor, b.embedder, b.index, b.registry, core.IngestionConfig{
		Dimension:  cfg.EmbeddingDimension,
		StagingDir: cfg.UploadDir,
	})

	if *ingestPath != "" {
		if err := runIngest(ingestion, log, *ingestPath, *chatName); err != nil {
			b.Close(log)
			log.Fatal("Data ingestion failed", "error", err)
		}
		return
	}

	validator := core.SyntacticValidator{}
	synthesizer := core.NewAnswerSynthesizer(b.generator, cfg.MaxAnswerTokens)
	query := core.NewQueryPipeline(log, validator, b.registry, b.embedder, b.index, synthesizer, core.QueryConfig{
		Dimension: cfg.EmbeddingDimension,
		TopK:      cfg.TopK,
	})

	apiHandler := api.NewAPIHandler(log, ingestion, query, validator, cfg.MaxUploadBytes())
	router := api.NewRouter(apiHandler, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second, // uploads can be large
		WriteTimeout: api.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server. Press Ctrl+C to quit.", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen", "addr", serverAddr, "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return
	}
	log.Info("Server exiting gracefully")
}

func runIngest(p *core.IngestionPipeline, log *logger.Logger, path, chatName string) error {
	if chatName == "" {
		return fmt.Errorf("-chat is required with -ingest")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting data ingestion process...", "file", path, "chat_name", chatName)
	res, err := p.Ingest(ctx, core.Upload{
		ChatName:    chatName,
		FileName:    filepath.Base(path),
		ContentType: extract.MIMEType,
		Body:        f,
	})
	if err != nil {
		return err
	}
	log.Info("Data ingestion complete.", "vector_id", res.VectorID, "state", res.State)
	return nil
}
