package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carelink-health/medkb/internal/api"
	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/service"
)

type IngestionService interface {
	IngestDocument(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	DeactivateDocument(ctx context.Context, documentTitle string) (int64, error)
	ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error)
}

type KnowledgeHandler struct {
	svc IngestionService
}

func NewKnowledgeHandler(svc IngestionService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type IngestRequest struct {
	DocumentTitle string `json:"document_title"`
	Category      string `json:"category"`
	SourceFile    string `json:"source_file,omitempty"`
	Body          string `json:"body"`
}

type IngestResponse struct {
	DocumentTitle string `json:"document_title"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	Deactivated   int64  `json:"deactivated"`
	ArchiveKey    string `json:"archive_key,omitempty"`
}

type DocumentResponse struct {
	DocumentTitle string `json:"document_title"`
	Category      string `json:"category"`
	SourceFile    string `json:"source_file,omitempty"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	LastIngested  string `json:"last_ingested,omitempty"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type DeactivateResponse struct {
	DocumentTitle string `json:"document_title"`
	Deactivated   int64  `json:"deactivated"`
}

// Ingest chunks, embeds and stores one guideline document.
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.IngestDocument(r.Context(), service.IngestInput{
		DocumentTitle: req.DocumentTitle,
		Category:      req.Category,
		SourceFile:    req.SourceFile,
		Body:          req.Body,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{
		DocumentTitle: result.DocumentTitle,
		ChunkCount:    result.ChunkCount,
		EmbeddedCount: result.EmbeddedCount,
		Deactivated:   result.Deactivated,
		ArchiveKey:    result.ArchiveKey,
	})
}

// List returns the aggregate view of ingested documents.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		lastIngested := ""
		if !d.LastIngested.IsZero() {
			lastIngested = d.LastIngested.UTC().Format(time.RFC3339)
		}
		responses = append(responses, DocumentResponse{
			DocumentTitle: d.DocumentTitle,
			Category:      d.Category,
			SourceFile:    d.SourceFile,
			ChunkCount:    d.ChunkCount,
			EmbeddedCount: d.EmbeddedCount,
			LastIngested:  lastIngested,
		})
	}

	api.Success(w, http.StatusOK, DocumentListResponse{Documents: responses})
}

// Deactivate soft-deletes every chunk of a document.
func (h *KnowledgeHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	documentTitle := chi.URLParam(r, "documentTitle")
	if documentTitle == "" {
		api.Error(w, http.StatusBadRequest, "document title is required")
		return
	}

	deactivated, err := h.svc.DeactivateDocument(r.Context(), documentTitle)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeactivateResponse{
		DocumentTitle: documentTitle,
		Deactivated:   deactivated,
	})
}
