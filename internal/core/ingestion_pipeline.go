package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"gwi.com/docchat/internal/extract"
	"gwi.com/docchat/internal/logger"
	"gwi.com/docchat/internal/store"
	"gwi.com/docchat/internal/utils"
)

// IngestState is a step of the ingestion state machine.
type IngestState string

const (
	StateReceived   IngestState = "received"
	StateExtracted  IngestState = "extracted"
	StateNormalized IngestState = "normalized"
	StateEmbedded   IngestState = "embedded"
	StateIndexed    IngestState = "indexed"
	StateRegistered IngestState = "registered"
	StateDone       IngestState = "done"
	StateRolledBack IngestState = "rolled_back"
	StateFailed     IngestState = "failed"
)

const rollbackTimeout = 30 * time.Second

// Upload is one document submitted for a chat.
type Upload struct {
	ChatName    string
	FileName    string
	ContentType string
	Body        io.Reader
}

type IngestResult struct {
	State    IngestState
	VectorID string
}

type IngestionPipeline struct {
	extractor  TextExtractor
	embedder   Embedder
	index      VectorIndex
	registry   DocumentRegistry
	dimension  int
	stagingDir string
	log        *logger.Logger
}

type IngestionConfig struct {
	Dimension  int
	StagingDir string // empty means os.TempDir()
}

func NewIngestionPipeline(log *logger.Logger, extractor TextExtractor, embedder Embedder, index VectorIndex, registry DocumentRegistry, cfg IngestionConfig) *IngestionPipeline {
	return &IngestionPipeline{
		extractor:  extractor,
		embedder:   embedder,
		index:      index,
		registry:   registry,
		dimension:  cfg.Dimension,
		stagingDir: cfg.StagingDir,
		log:        log,
	}
}

// Ingest runs an upload through extract, normalize, embed, index and register.
// A registry failure after the vector was indexed deletes the vector again.
// The returned result is never nil and carries the terminal state.
func (p *IngestionPipeline) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	res := &IngestResult{State: StateReceived}
	log := p.log.With("chat_name", up.ChatName, "file_name", up.FileName)

	fail := func(err error) (*IngestResult, error) {
		log.Error("ingestion failed", "state", res.State, "error", err)
		res.State = StateFailed
		return res, err
	}

	if strings.TrimSpace(up.ChatName) == "" {
		return fail(ErrMissingChatName)
	}
	if !isPDFContentType(up.ContentType) {
		return fail(fmt.Errorf("%w: got %q", ErrInvalidDocumentType, up.ContentType))
	}

	path, err := p.stage(up.Body)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("failed to remove staged upload", "path", path, "error", rmErr)
		}
	}()

	raw, err := p.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, extract.ErrNotPDF) {
			return fail(fmt.Errorf("%w: %w", ErrInvalidDocumentType, err))
		}
		return fail(fmt.Errorf("failed to extract text: %w", err))
	}
	res.State = StateExtracted

	text, err := extract.Normalize(raw)
	if err != nil {
		return fail(err)
	}
	res.State = StateNormalized
	log.Debug("document normalized", "chars", len(text))

	vector, err := p.embed(ctx, text)
	if err != nil {
		return fail(err)
	}
	res.State = StateEmbedded

	vectorID := fmt.Sprintf("%s_%s", up.ChatName, uuid.NewString())
	log = log.With("vector_id", vectorID)
	entry := store.VectorEntry{
		ID:        vectorID,
		Embedding: vector,
		Metadata: map[string]string{
			store.MetaChatName: up.ChatName,
			store.MetaText:     text,
		},
	}
	if err := p.index.Upsert(ctx, entry); err != nil {
		// The write may have landed before the error (timeout, cancellation).
		p.rollback(ctx, log, vectorID)
		return fail(fmt.Errorf("%w: %w", ErrIndexUnavailable, err))
	}
	res.State = StateIndexed
	res.VectorID = vectorID
	log.Debug("vector indexed")

	regErr := ctx.Err()
	if regErr == nil {
		regErr = p.registry.PutDocument(ctx, store.DocumentRecord{
			ChatName:       up.ChatName,
			VectorID:       vectorID,
			SourceFileName: up.FileName,
			UploadedAt:     time.Now().UTC(),
		})
	}
	if regErr != nil {
		err := fmt.Errorf("%w: %w", ErrRegistryFailure, regErr)
		log.Error("registry write failed, rolling back vector", "error", regErr)
		p.rollback(ctx, log, vectorID)
		res.State = StateRolledBack
		return res, err
	}
	res.State = StateRegistered
	log.Debug("registry record written")

	res.State = StateDone
	log.Info("document ingested")
	return res, nil
}

func (p *IngestionPipeline) stage(body io.Reader) (string, error) {
	if body == nil {
		return "", fmt.Errorf("upload has no body")
	}
	f, err := os.CreateTemp(p.stagingDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	path := f.Name()
	_, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return path, nil
}

func (p *IngestionPipeline) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if err := utils.CheckVector(vector); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if p.dimension > 0 && len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, p.dimension, len(vector))
	}
	return vector, nil
}

// rollback deletes an orphaned vector. It runs detached from ctx so a
// cancelled request still gets its compensating delete.
func (p *IngestionPipeline) rollback(ctx context.Context, log *logger.Logger, vectorID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := p.index.Delete(rctx, vectorID); err != nil {
		log.Error("rollback failed, vector left without registry record", "error", err)
		return
	}
	log.Info("vector rolled back")
}

func isPDFContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == extract.MIMEType
}
