package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yilianai/medrag/config"
	"github.com/yilianai/medrag/internal/cache"
	"github.com/yilianai/medrag/types"
)

// memCache 是 JSONCache 的内存实现，仅用于测试
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) GetJSON(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func newTestEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	cfg := *config.DefaultConfig()
	cfg.Retrieval.BackendRateLimit = 0 // no throttling in tests
	engine, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	return engine
}

func TestEngine_InvalidRequest(t *testing.T) {
	engine := newTestEngine(t, Deps{})

	_, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "  ", TopK: 3})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidQuery))

	_, err = engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 0})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidQuery))
}

func TestEngine_EndToEnd(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, candidates: []Candidate{
		{ID: "A", Text: "甲"},
		{ID: "B", Text: "乙"},
		{ID: "C", Text: "丙"},
	}}
	lexical := &stubBackend{tag: BackendLexical, candidates: []Candidate{
		{ID: "B", Text: "乙"},
		{ID: "D", Text: "丁"},
	}}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector, lexical}})

	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Results, 3)

	// B appears in both backends, must rank first
	assert.Equal(t, "B", resp.Results[0].ID)
	assert.ElementsMatch(t, []BackendTag{BackendVector, BackendLexical}, resp.Results[0].Backends)
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
	}

	// stats carry the normalized fusion weights
	require.Len(t, resp.Stats, 2)
	for _, stat := range resp.Stats {
		assert.True(t, stat.Available)
		assert.Greater(t, stat.Weight, 0.0)
	}
	assert.False(t, resp.Cached)
}

func TestEngine_PartialFailureIsDegraded(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, candidates: []Candidate{
		{ID: "A", Text: "甲"},
	}}
	lexical := &stubBackend{tag: BackendLexical, err: errors.New("index down")}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector, lexical}})

	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "A", resp.Results[0].ID)
}

func TestEngine_AllBackendsFailedReturnsEmpty(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, err: errors.New("down")}
	lexical := &stubBackend{tag: BackendLexical, err: errors.New("down")}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector, lexical}})

	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, StatusEmpty, resp.Status)
	assert.Empty(t, resp.Results)
}

func TestEngine_NoCandidatesIsEmpty(t *testing.T) {
	vector := &stubBackend{tag: BackendVector}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector}})

	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, StatusEmpty, resp.Status)
	assert.Empty(t, resp.Results)
}

func TestEngine_SizeContract(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, candidates: []Candidate{
		{ID: "A", Text: "甲"},
		{ID: "B", Text: "乙"},
	}}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector}})

	// top_k larger than the candidate pool: return what exists
	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	// top_k smaller than the pool: truncate exactly
	resp, err = engine.Retrieve(context.Background(), RetrieveRequest{Query: "心脏病", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestEngine_CacheRoundTrip(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, candidates: []Candidate{
		{ID: "A", Text: "甲"},
	}}
	store := newMemCache()
	engine := newTestEngine(t, Deps{Backends: []Backend{vector}, Cache: store})

	req := RetrieveRequest{Query: "高血压", TopK: 3}

	first, err := engine.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, store.data, 1)

	second, err := engine.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, vector.calls)
}

func TestEngine_EmptyResponseNotCached(t *testing.T) {
	vector := &stubBackend{tag: BackendVector}
	store := newMemCache()
	engine := newTestEngine(t, Deps{Backends: []Backend{vector}, Cache: store})

	_, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, store.data)
}

func TestEngine_ModelFailureMarksDegraded(t *testing.T) {
	vector := &stubBackend{tag: BackendVector, candidates: []Candidate{
		{ID: "A", Text: "甲"},
	}}
	encoder := &failingCrossEncoder{}
	engine := newTestEngine(t, Deps{Backends: []Backend{vector}, CrossEncoder: encoder})

	resp, err := engine.Retrieve(context.Background(), RetrieveRequest{Query: "高血压", TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Results, 1)
}

type failingCrossEncoder struct{}

func (failingCrossEncoder) Score(context.Context, string, []string) ([]float64, error) {
	return nil, errors.New("rerank service down")
}
