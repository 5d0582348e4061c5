package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gwi.com/docchat/internal/core"
	"gwi.com/docchat/internal/logger"
)

const (
	msgUploaded         = "Document uploaded and indexed successfully."
	msgInvalidFileType  = "Invalid file type. Only PDF files are allowed."
	msgNoText           = "The uploaded PDF does not contain extractable text."
	msgUploadFailed     = "Failed to upload document."
	msgInvalidQuestion  = "Invalid or poorly formed question. Please ensure your question is clear and ends with a question mark."
	msgChatNotFound     = "Chat name not found."
	msgMissingVectorID  = "Vector ID not found in metadata."
	msgEmbeddingFailed  = "Failed to generate query embeddings."
	msgNoResults        = "No relevant information found for the query."
	msgNoContent        = "No relevant content retrieved."
	msgGenerationFailed = "Failed to generate response."
	msgQuestionValid    = "Question is valid."
	msgQuestionInvalid  = "Invalid question. Please ensure your question is clear and appropriate."
)

type Ingester interface {
	Ingest(ctx context.Context, up core.Upload) (*core.IngestResult, error)
}

type Querier interface {
	Query(ctx context.Context, chatName, question string) (string, error)
}

type APIHandler struct {
	ingester       Ingester
	querier        Querier
	validator      core.QuestionValidator
	maxUploadBytes int64
	log            *logger.Logger
}

func NewAPIHandler(log *logger.Logger, ingester Ingester, querier Querier, validator core.QuestionValidator, maxUploadBytes int64) *APIHandler {
	return &APIHandler{
		ingester:       ingester,
		querier:        querier,
		validator:      validator,
		maxUploadBytes: maxUploadBytes,
		log:            log.With("component", "api"),
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	chatName := strings.TrimSpace(r.FormValue("chat_name"))
	if chatName == "" {
		writeError(w, http.StatusBadRequest, "chat_name is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	h.log.Info("upload received", "chat_name", chatName, "file_name", header.Filename,
		"content_type", header.Header.Get("Content-Type"), "size", header.Size)

	res, err := h.ingester.Ingest(r.Context(), core.Upload{
		ChatName:    chatName,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		status, msg := uploadError(err)
		writeError(w, status, msg)
		return
	}

	h.log.Debug("upload finished", "chat_name", chatName, "vector_id", res.VectorID, "state", res.State)
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgUploaded})
}

func uploadError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidDocumentType):
		return http.StatusBadRequest, msgInvalidFileType
	case errors.Is(err, core.ErrEmptyContent):
		return http.StatusBadRequest, msgNoText
	case errors.Is(err, core.ErrMissingChatName):
		return http.StatusBadRequest, "chat_name is required"
	case errors.Is(err, core.ErrRegistryFailure):
		return http.StatusInternalServerError, msgUploadFailed
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

type QueryRequest struct {
	ChatName string `json:"chat_name"`
	Question string `json:"question"`
}

type QueryResponse struct {
	Response string `json:"response"`
}

func (h *APIHandler) QueryDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	answer, err := h.querier.Query(r.Context(), req.ChatName, req.Question)
	if err != nil {
		status, msg := queryError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("query failed", "chat_name", req.ChatName, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Response: answer})
}

func queryError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidQuestion):
		return http.StatusBadRequest, msgInvalidQuestion
	case errors.Is(err, core.ErrChatNotFound):
		return http.StatusNotFound, msgChatNotFound
	case errors.Is(err, core.ErrNoResults):
		return http.StatusNotFound, msgNoResults
	case errors.Is(err, core.ErrEmptyContext):
		return http.StatusNotFound, msgNoContent
	case errors.Is(err, core.ErrMissingVectorID):
		return http.StatusInternalServerError, msgMissingVectorID
	case errors.Is(err, core.ErrDimensionMismatch):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, core.ErrEmbeddingFailure):
		return http.StatusInternalServerError, msgEmbeddingFailed
	case errors.Is(err, core.ErrGenerationFailure):
		return http.StatusInternalServerError, msgGenerationFailed
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidateQuestionHandler reads the question from a form field, urlencoded or multipart.
func (h *APIHandler) ValidateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	if h.validator.IsValid(r.FormValue("question")) {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Message: msgQuestionValid})
		return
	}
	writeJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Message: msgQuestionInvalid})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
