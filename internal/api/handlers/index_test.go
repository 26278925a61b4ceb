package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/index"
)

// MockIndexService is a mock implementation of IndexService
type MockIndexService struct {
	mock.Mock
}

func (m *MockIndexService) Rebuild(ctx context.Context) (index.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(index.IndexStats), args.Error(1)
}

func (m *MockIndexService) Stats() (index.IndexStats, error) {
	args := m.Called()
	return args.Get(0).(index.IndexStats), args.Error(1)
}

func (m *MockIndexService) Suggest(fragment string) []string {
	args := m.Called(fragment)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func TestIndexHandler_Refresh(t *testing.T) {
	svc := new(MockIndexService)
	svc.On("Rebuild", mock.Anything).Return(index.IndexStats{TotalChunks: 42, UniqueTerms: 310}, nil)

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/index/refresh", nil)
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data index.IndexStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.Data.TotalChunks)
	assert.Equal(t, 310, resp.Data.UniqueTerms)
}

func TestIndexHandler_Stats(t *testing.T) {
	svc := new(MockIndexService)
	svc.On("Stats").Return(index.IndexStats{TotalChunks: 42}, nil)

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/index/stats", nil)
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// An unbuilt index maps to 503, not a 500.
func TestIndexHandler_Stats_NotBuilt(t *testing.T) {
	svc := new(MockIndexService)
	svc.On("Stats").Return(index.IndexStats{}, domain.ErrIndexNotBuilt)

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/index/stats", nil)
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexHandler_Suggest(t *testing.T) {
	svc := new(MockIndexService)
	svc.On("Suggest", "肺炎").Return([]string{"支原体肺炎", "肺炎链球菌"})

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/index/suggest?q=肺炎", nil)
	rec := httptest.NewRecorder()

	handler.Suggest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SuggestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "肺炎", resp.Data.Query)
	assert.Equal(t, []string{"支原体肺炎", "肺炎链球菌"}, resp.Data.Suggestions)
}

func TestIndexHandler_Suggest_MissingQuery(t *testing.T) {
	svc := new(MockIndexService)

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/index/suggest", nil)
	rec := httptest.NewRecorder()

	handler.Suggest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Suggest", mock.Anything)
}

// Empty suggestion sets serialize as [] rather than null.
func TestIndexHandler_Suggest_NoMatches(t *testing.T) {
	svc := new(MockIndexService)
	svc.On("Suggest", "不存在").Return(nil)

	handler := NewIndexHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/index/suggest?q=不存在", nil)
	rec := httptest.NewRecorder()

	handler.Suggest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"suggestions":[]`)
}
