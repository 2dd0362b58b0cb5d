package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type stubCrossEncoder struct {
	scores map[string]float64
	err    error
	calls  int
}

func (s *stubCrossEncoder) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = s.scores[text]
	}
	return out, nil
}

type stubFeatureModel struct {
	score float64
	err   error
}

func (s *stubFeatureModel) Predict(_ context.Context, _ Features) (float64, error) {
	return s.score, s.err
}

func scoredFixture() []ScoredCandidate {
	return []ScoredCandidate{
		{FusedCandidate: FusedCandidate{ID: "a", Text: "text-a", FusedRank: 1,
			Backends: []BackendTag{BackendVector}}, Relevance: 0.9},
		{FusedCandidate: FusedCandidate{ID: "b", Text: "text-b", FusedRank: 2,
			Backends: []BackendTag{BackendLexical}}, Relevance: 0.5},
		{FusedCandidate: FusedCandidate{ID: "c", Text: "text-c", FusedRank: 3,
			Backends: []BackendTag{BackendGraph}}, Relevance: 0.3},
	}
}

func TestReranker_CrossEncoderBlend(t *testing.T) {
	encoder := &stubCrossEncoder{scores: map[string]float64{
		"text-a": 0.1, "text-b": 0.95, "text-c": 0.2,
	}}
	reranker := NewReranker(DefaultRerankerConfig(), encoder, nil, nil)

	out, degraded := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 3)
	require.Len(t, out, 3)
	assert.False(t, degraded)

	// b: 0.7*0.95 + 0.3*0.5 = 0.815 beats a: 0.7*0.1 + 0.3*0.9 = 0.34
	assert.Equal(t, "b", out[0].ID)
	assert.InDelta(t, 0.815, out[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.34, out[1].FinalScore, 1e-9)
}

func TestReranker_FallbackToRelevance(t *testing.T) {
	encoder := &stubCrossEncoder{err: errors.New("model down")}
	reranker := NewReranker(DefaultRerankerConfig(), encoder, nil, nil)

	out, degraded := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 3)
	require.Len(t, out, 3)
	assert.True(t, degraded)

	// final score falls back to the relevance probability alone
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, 0.9, out[0].FinalScore)
}

func TestReranker_NoEncoderIsNotDegraded(t *testing.T) {
	reranker := NewReranker(DefaultRerankerConfig(), nil, nil, nil)

	out, degraded := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 3)
	require.Len(t, out, 3)
	assert.False(t, degraded)
	assert.Equal(t, "a", out[0].ID)
}

func TestReranker_TruncatesToTopK(t *testing.T) {
	reranker := NewReranker(DefaultRerankerConfig(), nil, nil, nil)

	out, _ := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 2)
	assert.Len(t, out, 2)
}

func TestReranker_TieBreakMatchesFusion(t *testing.T) {
	reranker := NewReranker(DefaultRerankerConfig(), nil, nil, nil)

	scored := []ScoredCandidate{
		{FusedCandidate: FusedCandidate{ID: "one-backend", FusedRank: 1,
			Backends:     []BackendTag{BackendVector},
			BackendRanks: map[BackendTag]int{BackendVector: 1}}, Relevance: 0.5},
		{FusedCandidate: FusedCandidate{ID: "two-backends", FusedRank: 2,
			Backends:     []BackendTag{BackendVector, BackendLexical},
			BackendRanks: map[BackendTag]int{BackendVector: 3, BackendLexical: 2}}, Relevance: 0.5},
	}

	out, _ := reranker.Rerank(context.Background(), "q", nil, scored, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "two-backends", out[0].ID, "equal final score resolved by backend count")
}

func TestReranker_FeatureModelBlend(t *testing.T) {
	cfg := DefaultRerankerConfig()
	cfg.FeatureWeight = 0.5
	feature := &stubFeatureModel{score: 1.0}
	reranker := NewReranker(cfg, nil, feature, nil)

	out, degraded := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 3)
	require.Len(t, out, 3)
	assert.False(t, degraded)

	// a: 0.5*0.9 + 0.5*1.0 = 0.95
	assert.InDelta(t, 0.95, out[0].FinalScore, 1e-9)
}

func TestReranker_FeatureModelFailureKeepsScores(t *testing.T) {
	cfg := DefaultRerankerConfig()
	cfg.FeatureWeight = 0.5
	feature := &stubFeatureModel{err: errors.New("down")}
	reranker := NewReranker(cfg, nil, feature, nil)

	out, _ := reranker.Rerank(context.Background(), "q", nil, scoredFixture(), 3)
	require.Len(t, out, 3)
	assert.Equal(t, 0.9, out[0].FinalScore)
}

func TestReranker_EmptyInput(t *testing.T) {
	reranker := NewReranker(DefaultRerankerConfig(), nil, nil, nil)
	out, degraded := reranker.Rerank(context.Background(), "q", nil, nil, 5)
	assert.Empty(t, out)
	assert.False(t, degraded)
}

// 幂等性: 相同输入与模型输出下重排两次得到相同顺序
func TestReranker_IdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		scored := make([]ScoredCandidate, n)
		for i := range scored {
			scored[i] = ScoredCandidate{
				FusedCandidate: FusedCandidate{
					ID:        rapid.StringMatching(`id-[0-9]{1,3}`).Draw(t, "id"),
					FusedRank: i + 1,
					Backends:  []BackendTag{BackendVector},
				},
				Relevance: rapid.Float64Range(0, 1).Draw(t, "rel"),
			}
		}
		topK := rapid.IntRange(1, n).Draw(t, "top_k")

		reranker := NewReranker(DefaultRerankerConfig(), nil, nil, nil)
		first, _ := reranker.Rerank(context.Background(), "q", nil, scored, topK)
		second, _ := reranker.Rerank(context.Background(), "q", nil, scored, topK)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			assert.Equal(t, first[i].FinalScore, second[i].FinalScore)
		}
	})
}
