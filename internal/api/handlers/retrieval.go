package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/carelink-health/medkb/internal/api"
	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/service"
)

type RetrievalService interface {
	SelectKnowledgeBases(ctx context.Context, input service.SelectInput) (*service.Selection, error)
}

type RetrievalHandler struct {
	svc RetrievalService
}

func NewRetrievalHandler(svc RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

type SelectRequest struct {
	Symptoms      string   `json:"symptoms"`
	DocumentTexts []string `json:"document_texts,omitempty"`
	PatientAge    *int     `json:"patient_age,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

type EntityResponse struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type ChunkResponse struct {
	ChunkID       string   `json:"chunk_id"`
	Text          string   `json:"text"`
	SectionTitle  string   `json:"section_title,omitempty"`
	DocumentTitle string   `json:"document_title"`
	Category      string   `json:"category"`
	SourceFile    string   `json:"source_file,omitempty"`
	Score         float64  `json:"score"`
	Source        string   `json:"source"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
}

type SourceResponse struct {
	Category        string          `json:"category"`
	RelevanceScore  float64         `json:"relevance_score"`
	Chunks          []ChunkResponse `json:"chunks"`
	SelectionReason string          `json:"selection_reason"`
}

type SelectResponse struct {
	Sources            []SourceResponse `json:"sources"`
	SelectionReasoning string           `json:"selection_reasoning"`
	TotalChunks        int              `json:"total_chunks"`
	ExtractedEntities  []EntityResponse `json:"extracted_entities"`
	EnhancedQuery      string           `json:"enhanced_query"`
}

// Select runs knowledge base selection for one clinical query. Empty
// symptoms are a valid query: extraction finds nothing and the selection
// comes back empty with its reasoning, not as a client error.
func (h *RetrievalHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.SelectInput{
		Symptoms:      req.Symptoms,
		DocumentTexts: req.DocumentTexts,
		PatientAge:    req.PatientAge,
		TopK:          req.TopK,
		MinSimilarity: req.MinSimilarity,
	}

	selection, err := h.svc.SelectKnowledgeBases(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toSelectResponse(selection))
}

func toSelectResponse(sel *service.Selection) SelectResponse {
	resp := SelectResponse{
		Sources:            make([]SourceResponse, 0, len(sel.Sources)),
		SelectionReasoning: sel.SelectionReasoning,
		TotalChunks:        sel.TotalChunks,
		ExtractedEntities:  make([]EntityResponse, 0, len(sel.ExtractedEntities)),
		EnhancedQuery:      sel.EnhancedQuery,
	}

	for _, src := range sel.Sources {
		resp.Sources = append(resp.Sources, toSourceResponse(src))
	}
	for _, ent := range sel.ExtractedEntities {
		resp.ExtractedEntities = append(resp.ExtractedEntities, EntityResponse{
			Text:       ent.Text,
			Type:       string(ent.Type),
			Confidence: ent.Confidence,
		})
	}
	return resp
}

func toSourceResponse(src domain.KnowledgeSource) SourceResponse {
	chunks := make([]ChunkResponse, 0, len(src.Chunks))
	for _, c := range src.Chunks {
		chunks = append(chunks, ChunkResponse{
			ChunkID:       c.ChunkID,
			Text:          c.Text,
			SectionTitle:  c.SectionTitle,
			DocumentTitle: c.DocumentTitle,
			Category:      c.Category,
			SourceFile:    c.SourceFile,
			Score:         c.SimilarityScore,
			Source:        string(c.Source),
			MatchedTerms:  c.MatchedTerms,
		})
	}
	return SourceResponse{
		Category:        src.Category,
		RelevanceScore:  src.RelevanceScore,
		Chunks:          chunks,
		SelectionReason: src.SelectionReason,
	}
}
