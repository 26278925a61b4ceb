package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/medkb/internal/domain"
	"github.com/carelink-health/medkb/internal/extract"
)

type stubChunkLister struct {
	chunks []*domain.KnowledgeChunk
	err    error
}

func (s *stubChunkLister) ListActive(ctx context.Context) ([]*domain.KnowledgeChunk, error) {
	return s.chunks, s.err
}

func respiratoryChunks() []*domain.KnowledgeChunk {
	return []*domain.KnowledgeChunk{
		{
			ID:            "chunk-a",
			DocumentTitle: "儿童社区获得性肺炎诊疗规范",
			SectionTitle:  "病原学",
			Category:      "respiratory",
			Text:          "肺炎支原体是儿童社区获得性肺炎的常见病原，表现为发热、咳嗽。",
		},
		{
			ID:            "chunk-b",
			DocumentTitle: "儿童社区获得性肺炎诊疗规范",
			SectionTitle:  "治疗",
			Category:      "respiratory",
			Text:          "支原体肺炎首选阿奇霉素治疗，重症可联合糖皮质激素。",
		},
		{
			ID:            "chunk-c",
			DocumentTitle: "儿童腹泻病诊疗指南",
			SectionTitle:  "",
			Category:      "digestive",
			Text:          "急性腹泻患儿应注意补液，呕吐频繁者可静脉输液。",
		},
	}
}

func newTestAnalyzer(chunks []*domain.KnowledgeChunk) *Analyzer {
	return NewAnalyzer(&stubChunkLister{chunks: chunks}, extract.NewTermExtractor(nil))
}

func TestAnalyzer_Rebuild_Stats(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())

	stats, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Greater(t, stats.UniqueTerms, 0)
	assert.NotEmpty(t, stats.BuiltAt)
	assert.True(t, a.Built())

	got, err := a.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}

func TestAnalyzer_Rebuild_ListError(t *testing.T) {
	a := NewAnalyzer(&stubChunkLister{err: errors.New("connection refused")}, extract.NewTermExtractor(nil))

	_, err := a.Rebuild(context.Background())
	assert.Error(t, err)
	assert.False(t, a.Built())
}

func TestAnalyzer_NotBuilt(t *testing.T) {
	a := newTestAnalyzer(nil)

	_, err := a.FindRelatedChunks("咳嗽", nil, 10)
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)

	_, err = a.Stats()
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)

	assert.Nil(t, a.Suggest("肺炎"))
}

func TestAnalyzer_FindRelatedChunks_RanksByMatchCount(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	// chunk-a carries 肺炎支原体, 发热 and 咳嗽; chunk-b shares the
	// pathogen vocabulary only.
	matches, err := a.FindRelatedChunks("患儿发热咳嗽，怀疑支原体感染", nil, 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, "chunk-a", matches[0].ChunkID)
	for i := 1; i < len(matches); i++ {
		if matches[i-1].MatchCount == matches[i].MatchCount {
			assert.Less(t, matches[i-1].ChunkID, matches[i].ChunkID)
		} else {
			assert.Greater(t, matches[i-1].MatchCount, matches[i].MatchCount)
		}
	}
}

// Two chunks matching the same single term come back in chunk ID order.
func TestAnalyzer_FindRelatedChunks_TieOrder(t *testing.T) {
	chunks := []*domain.KnowledgeChunk{
		{ID: "chunk-2", DocumentTitle: "doc", Category: "respiratory", Text: "支原体肺炎"},
		{ID: "chunk-1", DocumentTitle: "doc", Category: "respiratory", Text: "支原体肺炎"},
	}
	a := newTestAnalyzer(chunks)
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	matches, err := a.FindRelatedChunks("支原体肺炎", nil, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "chunk-1", matches[0].ChunkID)
	assert.Equal(t, "chunk-2", matches[1].ChunkID)
}

func TestAnalyzer_FindRelatedChunks_DocumentContext(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	// The query alone says nothing; the document context carries the terms.
	matches, err := a.FindRelatedChunks("请综合判断", []string{"患儿呕吐腹泻两天"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "chunk-c", matches[0].ChunkID)
}

func TestAnalyzer_FindRelatedChunks_NoTerms(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	matches, err := a.FindRelatedChunks("hello there", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAnalyzer_FindRelatedChunks_TopK(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	matches, err := a.FindRelatedChunks("发热咳嗽腹泻支原体肺炎", nil, 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestAnalyzer_Suggest(t *testing.T) {
	a := newTestAnalyzer(respiratoryChunks())
	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	suggestions := a.Suggest("肺炎")
	assert.NotEmpty(t, suggestions)
	for _, s := range suggestions {
		assert.Contains(t, s, "肺炎")
	}
	assert.LessOrEqual(t, len(suggestions), 10)

	assert.Nil(t, a.Suggest(""))
	assert.Empty(t, a.Suggest("不存在的词汇片段"))
}

// A rebuild that fails leaves the previous generation serving reads.
func TestAnalyzer_Rebuild_KeepsPreviousOnError(t *testing.T) {
	lister := &stubChunkLister{chunks: respiratoryChunks()}
	a := NewAnalyzer(lister, extract.NewTermExtractor(nil))

	_, err := a.Rebuild(context.Background())
	require.NoError(t, err)

	lister.err = errors.New("connection refused")
	_, err = a.Rebuild(context.Background())
	assert.Error(t, err)

	matches, err := a.FindRelatedChunks("支原体肺炎", nil, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
