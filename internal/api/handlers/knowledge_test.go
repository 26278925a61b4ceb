package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/service"
)

// MockIngestionService is a mock implementation of IngestionService
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) IngestDocument(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestionService) DeactivateDocument(ctx context.Context, documentTitle string) (int64, error) {
	args := m.Called(ctx, documentTitle)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIngestionService) ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DocumentSummary), args.Error(1)
}

func TestKnowledgeHandler_Ingest(t *testing.T) {
	svc := new(MockIngestionService)
	svc.On("IngestDocument", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.DocumentTitle == "肺炎指南" && input.Category == "respiratory"
	})).Return(&service.IngestResult{
		DocumentTitle: "肺炎指南",
		ChunkCount:    4,
		EmbeddedCount: 4,
		Deactivated:   2,
	}, nil)

	handler := NewKnowledgeHandler(svc)
	body := `{"document_title":"肺炎指南","category":"respiratory","body":"# 治疗\n首选阿奇霉素。"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ingest(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data IngestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.ChunkCount)
	assert.Equal(t, int64(2), resp.Data.Deactivated)
	svc.AssertExpectations(t)
}

func TestKnowledgeHandler_Ingest_InvalidJSON(t *testing.T) {
	svc := new(MockIngestionService)

	handler := NewKnowledgeHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/knowledge", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()

	handler.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

func TestKnowledgeHandler_Ingest_ValidationError(t *testing.T) {
	svc := new(MockIngestionService)
	svc.On("IngestDocument", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "document title, category and body are required"))

	handler := NewKnowledgeHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/knowledge", strings.NewReader(`{"body":"正文"}`))
	rec := httptest.NewRecorder()

	handler.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeHandler_List(t *testing.T) {
	svc := new(MockIngestionService)
	ingested := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	svc.On("ListDocuments", mock.Anything).Return([]*domain.DocumentSummary{
		{DocumentTitle: "肺炎指南", Category: "respiratory", ChunkCount: 4, EmbeddedCount: 3, LastIngested: ingested},
	}, nil)

	handler := NewKnowledgeHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/knowledge", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DocumentListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Documents, 1)
	assert.Equal(t, "肺炎指南", resp.Data.Documents[0].DocumentTitle)
	assert.Equal(t, 3, resp.Data.Documents[0].EmbeddedCount)
	assert.Equal(t, "2026-08-20T09:30:00Z", resp.Data.Documents[0].LastIngested)
}

func TestKnowledgeHandler_Deactivate(t *testing.T) {
	svc := new(MockIngestionService)
	svc.On("DeactivateDocument", mock.Anything, "肺炎指南").Return(int64(4), nil)

	handler := NewKnowledgeHandler(svc)
	req := newChiRequest(http.MethodDelete, "/knowledge/肺炎指南", "documentTitle", "肺炎指南")
	rec := httptest.NewRecorder()

	handler.Deactivate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DeactivateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Data.Deactivated)
}

func TestKnowledgeHandler_Deactivate_NotFound(t *testing.T) {
	svc := new(MockIngestionService)
	svc.On("DeactivateDocument", mock.Anything, "不存在的文档").Return(int64(0), domain.ErrDocumentNotFound)

	handler := NewKnowledgeHandler(svc)
	req := newChiRequest(http.MethodDelete, "/knowledge/不存在的文档", "documentTitle", "不存在的文档")
	rec := httptest.NewRecorder()

	handler.Deactivate(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// newChiRequest builds a request carrying a chi URL parameter.
func newChiRequest(method, target, key, value string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
