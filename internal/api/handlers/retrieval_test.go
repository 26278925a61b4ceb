package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/service"
)

// MockRetrievalService is a mock implementation of RetrievalService
type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) SelectKnowledgeBases(ctx context.Context, input service.SelectInput) (*service.Selection, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Selection), args.Error(1)
}

func TestRetrievalHandler_Select(t *testing.T) {
	svc := new(MockRetrievalService)
	svc.On("SelectKnowledgeBases", mock.Anything, mock.MatchedBy(func(input service.SelectInput) bool {
		return input.Symptoms == "发热咳嗽" && input.TopK == 3 &&
			input.MinSimilarity != nil && *input.MinSimilarity == 0.7
	})).Return(&service.Selection{
		Sources: []domain.KnowledgeSource{
			{
				Category:        "respiratory",
				RelevanceScore:  0.82,
				SelectionReason: "hybrid score (avg: 0.820)",
				Chunks: []domain.ScoredChunk{
					{ChunkID: "chunk-1", Text: "支原体肺炎", DocumentTitle: "指南", Category: "respiratory", SourceFile: "cap_guideline.md", SimilarityScore: 0.82, Source: domain.SourceVector},
				},
			},
		},
		SelectionReasoning: "Based on symptom analysis, retrieved knowledge from:\nrespiratory: 1 chunks (score: 0.820)",
		TotalChunks:        1,
		EnhancedQuery:      "发热咳嗽",
	}, nil)

	handler := NewRetrievalHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/retrieval/select", strings.NewReader(`{"symptoms":"发热咳嗽","top_k":3,"min_similarity":0.7}`))
	rec := httptest.NewRecorder()

	handler.Select(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SelectResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, "respiratory", resp.Data.Sources[0].Category)
	assert.Equal(t, "chunk-1", resp.Data.Sources[0].Chunks[0].ChunkID)
	assert.Equal(t, "vector", resp.Data.Sources[0].Chunks[0].Source)
	assert.Equal(t, "cap_guideline.md", resp.Data.Sources[0].Chunks[0].SourceFile)
	assert.Equal(t, 1, resp.Data.TotalChunks)
	svc.AssertExpectations(t)
}

// Empty symptoms are a valid query, not a client error.
func TestRetrievalHandler_Select_EmptySymptoms(t *testing.T) {
	svc := new(MockRetrievalService)
	svc.On("SelectKnowledgeBases", mock.Anything, mock.Anything).Return(&service.Selection{
		SelectionReasoning: "No specific knowledge base matched. Using general medical knowledge.",
	}, nil)

	handler := NewRetrievalHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/retrieval/select", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.Select(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SelectResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Sources)
	assert.Equal(t, "No specific knowledge base matched. Using general medical knowledge.", resp.Data.SelectionReasoning)
}

func TestRetrievalHandler_Select_InvalidJSON(t *testing.T) {
	svc := new(MockRetrievalService)

	handler := NewRetrievalHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/retrieval/select", strings.NewReader(`{"symptoms":`))
	rec := httptest.NewRecorder()

	handler.Select(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SelectKnowledgeBases", mock.Anything, mock.Anything)
}

func TestRetrievalHandler_Select_ContextCancelled(t *testing.T) {
	svc := new(MockRetrievalService)
	svc.On("SelectKnowledgeBases", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	handler := NewRetrievalHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/retrieval/select", strings.NewReader(`{"symptoms":"发热"}`))
	rec := httptest.NewRecorder()

	handler.Select(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
