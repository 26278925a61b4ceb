package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/index"
)

// MockChunkWriter is a mock implementation of ChunkWriter
type MockChunkWriter struct {
	mock.Mock
}

func (m *MockChunkWriter) InsertChunks(ctx context.Context, chunks []*domain.KnowledgeChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkWriter) DeactivateByDocument(ctx context.Context, documentTitle string) (int64, error) {
	args := m.Called(ctx, documentTitle)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChunkWriter) ListDocuments(ctx context.Context) ([]*domain.DocumentSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DocumentSummary), args.Error(1)
}

// MockDocumentArchiver is a mock implementation of DocumentArchiver
type MockDocumentArchiver struct {
	mock.Mock
}

func (m *MockDocumentArchiver) ArchiveDocument(ctx context.Context, key string, body []byte) (string, error) {
	args := m.Called(ctx, key, body)
	return args.String(0), args.Error(1)
}

// MockRebuilder is a mock implementation of IndexRebuilder
type MockRebuilder struct {
	mock.Mock
}

func (m *MockRebuilder) Rebuild(ctx context.Context) (index.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(index.IndexStats), args.Error(1)
}

// seqUUIDGenerator hands out predictable chunk IDs.
type seqUUIDGenerator struct {
	n int
}

func (g *seqUUIDGenerator) NewString() string {
	g.n++
	return fmt.Sprintf("chunk-%d", g.n)
}

const guidelineBody = "# 病原学\n肺炎支原体是儿童社区获得性肺炎的常见病原。\n# 治疗\n首选阿奇霉素，重症可联合糖皮质激素。"

func ingestInput() IngestInput {
	return IngestInput{
		DocumentTitle: "儿童社区获得性肺炎诊疗规范",
		Category:      "respiratory",
		SourceFile:    "cap_guideline.md",
		Body:          guidelineBody,
	}
}

func TestIngestDocument(t *testing.T) {
	writer := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	rebuilder := new(MockRebuilder)

	embedding := []float32{0.1, 0.2}
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
	writer.On("DeactivateByDocument", mock.Anything, "儿童社区获得性肺炎诊疗规范").Return(int64(0), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	rebuilder.On("Rebuild", mock.Anything).Return(index.IndexStats{TotalChunks: 2}, nil)

	svc := NewIngestionServiceWithUUIDGen(writer, embedder, nil, rebuilder, &seqUUIDGenerator{})
	result, err := svc.IngestDocument(context.Background(), ingestInput())

	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 2, result.EmbeddedCount)
	assert.Equal(t, int64(0), result.Deactivated)
	assert.Equal(t, 2, result.IndexStats.TotalChunks)

	writer.AssertExpectations(t)
	inserted := writer.Calls[1].Arguments.Get(1).([]*domain.KnowledgeChunk)
	require.Len(t, inserted, 2)
	assert.Equal(t, "chunk-1", inserted[0].ID)
	assert.Equal(t, "病原学", inserted[0].SectionTitle)
	assert.Equal(t, "respiratory", inserted[0].Category)
	assert.Equal(t, embedding, inserted[0].Embedding)
	assert.True(t, inserted[0].IsActive)
	assert.Equal(t, "治疗", inserted[1].SectionTitle)
}

func TestIngestDocument_Validation(t *testing.T) {
	svc := NewIngestionService(new(MockChunkWriter), nil, nil, nil)

	cases := []IngestInput{
		{Category: "respiratory", Body: "正文"},
		{DocumentTitle: "指南", Body: "正文"},
		{DocumentTitle: "指南", Category: "respiratory"},
	}
	for _, input := range cases {
		_, err := svc.IngestDocument(context.Background(), input)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	}
}

func TestIngestDocument_NoChunks(t *testing.T) {
	svc := NewIngestionService(new(MockChunkWriter), nil, nil, nil)

	_, err := svc.IngestDocument(context.Background(), IngestInput{
		DocumentTitle: "指南",
		Category:      "respiratory",
		Body:          "# 只有标题\n# 没有正文",
	})

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

// An embedding failure leaves the chunk unembedded for the backfill worker
// instead of aborting the ingestion.
func TestIngestDocument_EmbeddingFailure(t *testing.T) {
	writer := new(MockChunkWriter)
	embedder := new(MockEmbedder)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	writer.On("DeactivateByDocument", mock.Anything, mock.Anything).Return(int64(0), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionServiceWithUUIDGen(writer, embedder, nil, nil, &seqUUIDGenerator{})
	result, err := svc.IngestDocument(context.Background(), ingestInput())

	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 0, result.EmbeddedCount)

	inserted := writer.Calls[1].Arguments.Get(1).([]*domain.KnowledgeChunk)
	for _, c := range inserted {
		assert.Nil(t, c.Embedding)
	}
}

func TestIngestDocument_NoEmbedder(t *testing.T) {
	writer := new(MockChunkWriter)

	writer.On("DeactivateByDocument", mock.Anything, mock.Anything).Return(int64(3), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestionServiceWithUUIDGen(writer, nil, nil, nil, &seqUUIDGenerator{})
	result, err := svc.IngestDocument(context.Background(), ingestInput())

	require.NoError(t, err)
	assert.Equal(t, 0, result.EmbeddedCount)
	// Re-ingestion superseded the previous chunks.
	assert.Equal(t, int64(3), result.Deactivated)
}

func TestIngestDocument_Archives(t *testing.T) {
	writer := new(MockChunkWriter)
	archiver := new(MockDocumentArchiver)

	writer.On("DeactivateByDocument", mock.Anything, mock.Anything).Return(int64(0), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	archiver.On("ArchiveDocument", mock.Anything, "documents/respiratory/儿童社区获得性肺炎诊疗规范.md", []byte(guidelineBody)).
		Return("documents/respiratory/儿童社区获得性肺炎诊疗规范.md", nil)

	svc := NewIngestionServiceWithUUIDGen(writer, nil, archiver, nil, &seqUUIDGenerator{})
	result, err := svc.IngestDocument(context.Background(), ingestInput())

	require.NoError(t, err)
	assert.Equal(t, "documents/respiratory/儿童社区获得性肺炎诊疗规范.md", result.ArchiveKey)
	archiver.AssertExpectations(t)
}

func TestIngestDocument_ArchiveFailureIsNotFatal(t *testing.T) {
	writer := new(MockChunkWriter)
	archiver := new(MockDocumentArchiver)

	writer.On("DeactivateByDocument", mock.Anything, mock.Anything).Return(int64(0), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	archiver.On("ArchiveDocument", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket unavailable"))

	svc := NewIngestionServiceWithUUIDGen(writer, nil, archiver, nil, &seqUUIDGenerator{})
	result, err := svc.IngestDocument(context.Background(), ingestInput())

	require.NoError(t, err)
	assert.Empty(t, result.ArchiveKey)
}

func TestIngestDocument_InsertFailure(t *testing.T) {
	writer := new(MockChunkWriter)

	writer.On("DeactivateByDocument", mock.Anything, mock.Anything).Return(int64(0), nil)
	writer.On("InsertChunks", mock.Anything, mock.Anything).Return(errors.New("database error"))

	svc := NewIngestionServiceWithUUIDGen(writer, nil, nil, nil, &seqUUIDGenerator{})
	_, err := svc.IngestDocument(context.Background(), ingestInput())

	assert.Error(t, err)
}

func TestDeactivateDocument(t *testing.T) {
	writer := new(MockChunkWriter)
	rebuilder := new(MockRebuilder)

	writer.On("DeactivateByDocument", mock.Anything, "旧指南").Return(int64(4), nil)
	rebuilder.On("Rebuild", mock.Anything).Return(index.IndexStats{}, nil)

	svc := NewIngestionService(writer, nil, nil, rebuilder)
	deactivated, err := svc.DeactivateDocument(context.Background(), "旧指南")

	require.NoError(t, err)
	assert.Equal(t, int64(4), deactivated)
	rebuilder.AssertExpectations(t)
}

func TestDeactivateDocument_NotFound(t *testing.T) {
	writer := new(MockChunkWriter)

	writer.On("DeactivateByDocument", mock.Anything, "不存在的文档").Return(int64(0), nil)

	svc := NewIngestionService(writer, nil, nil, nil)
	_, err := svc.DeactivateDocument(context.Background(), "不存在的文档")

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDeactivateDocument_EmptyTitle(t *testing.T) {
	svc := NewIngestionService(new(MockChunkWriter), nil, nil, nil)

	_, err := svc.DeactivateDocument(context.Background(), "")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestListDocuments(t *testing.T) {
	writer := new(MockChunkWriter)
	docs := []*domain.DocumentSummary{
		{DocumentTitle: "儿童社区获得性肺炎诊疗规范", Category: "respiratory", ChunkCount: 12, EmbeddedCount: 12},
	}
	writer.On("ListDocuments", mock.Anything).Return(docs, nil)

	svc := NewIngestionService(writer, nil, nil, nil)
	got, err := svc.ListDocuments(context.Background())

	require.NoError(t, err)
	assert.Equal(t, docs, got)
}
