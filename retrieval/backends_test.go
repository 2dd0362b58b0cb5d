package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yilianai/medrag/graph"
	"github.com/yilianai/medrag/rerank"
	"github.com/yilianai/medrag/types"
)

// QQ 向量后端 QQ

type stubEmbedder struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float64, error) {
	return s.vector, s.err
}

type stubVectorStore struct {
	hits    []VectorHit
	err     error
	gotVec  []float64
	gotKeys map[string]string
}

func (s *stubVectorStore) Search(_ context.Context, vec []float64, _ int, filters map[string]string) ([]VectorHit, error) {
	s.gotVec = vec
	s.gotKeys = filters
	return s.hits, s.err
}

func TestVectorBackend_Search(t *testing.T) {
	store := &stubVectorStore{hits: []VectorHit{
		{ID: "doc-1", Text: "高血压的症状", Score: 0.92},
		{ID: "doc-2", Text: "低血压的症状", Score: 0.81},
	}}
	backend := NewVectorBackend(&stubEmbedder{vector: []float64{0.1, 0.2}}, store, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{
		Query:   "高血压",
		Limit:   10,
		Filters: map[string]string{"department": "心内科"},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, BackendVector, candidates[0].Backend)
	assert.Equal(t, "doc-1", candidates[0].ID)
	assert.Equal(t, 1, candidates[0].Rank)
	assert.Equal(t, 2, candidates[1].Rank)
	assert.Equal(t, []float64{0.1, 0.2}, store.gotVec)
	assert.Equal(t, "心内科", store.gotKeys["department"])
}

func TestVectorBackend_EmbedderFailure(t *testing.T) {
	backend := NewVectorBackend(&stubEmbedder{err: errors.New("model down")}, &stubVectorStore{}, nil)

	_, err := backend.Search(context.Background(), SearchInput{Query: "q", Limit: 5})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrModelUnavailable))
}

func TestVectorBackend_StoreFailure(t *testing.T) {
	store := &stubVectorStore{err: errors.New("connection refused")}
	backend := NewVectorBackend(&stubEmbedder{vector: []float64{1}}, store, nil)

	_, err := backend.Search(context.Background(), SearchInput{Query: "q", Limit: 5})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendUnavailable))
}

// QQ 词法后端 QQ

func newTestLexicalBackend() *LexicalBackend {
	backend := NewLexicalBackend(DefaultLexicalBackendConfig(), nil, nil)
	backend.AddDocuments([]IndexDocument{
		{ID: "d1", Text: "高血压患者的日常饮食建议"},
		{ID: "d2", Text: "高血压的症状包括头晕和头痛"},
		{ID: "d3", Text: "糖尿病的诊断标准"},
	})
	return backend
}

func TestLexicalBackend_RanksByTermMatch(t *testing.T) {
	backend := newTestLexicalBackend()

	candidates, err := backend.Search(context.Background(), SearchInput{
		Query: "高血压症状",
		Limit: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	// d2 covers both 高血压 and 症状, must rank first
	assert.Equal(t, "d2", candidates[0].ID)
	assert.Equal(t, 1, candidates[0].Rank)
	assert.Equal(t, BackendLexical, candidates[0].Backend)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i].RawScore, candidates[i-1].RawScore)
	}
}

func TestLexicalBackend_LimitRespected(t *testing.T) {
	backend := newTestLexicalBackend()

	candidates, err := backend.Search(context.Background(), SearchInput{Query: "高血压", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestLexicalBackend_NoMatch(t *testing.T) {
	backend := newTestLexicalBackend()

	candidates, err := backend.Search(context.Background(), SearchInput{Query: "骨折", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLexicalBackend_EmptyIndex(t *testing.T) {
	backend := NewLexicalBackend(DefaultLexicalBackendConfig(), nil, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{Query: "高血压", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, 0, backend.Len())
}

// QQ 语义后端 QQ

type recordingBackend struct {
	tag     BackendTag
	byQuery map[string][]Candidate
	queries []string
	err     error
}

func (b *recordingBackend) Tag() BackendTag { return b.tag }

func (b *recordingBackend) Search(_ context.Context, input SearchInput) ([]Candidate, error) {
	b.queries = append(b.queries, input.Query)
	if b.err != nil {
		return nil, b.err
	}
	return b.byQuery[input.Query], nil
}

type stubExpanderFn func(query string, intent Intent) ([]string, error)

func (f stubExpanderFn) Expand(_ context.Context, query string, intent Intent) ([]string, error) {
	return f(query, intent)
}

func TestSemanticBackend_MergesVariants(t *testing.T) {
	inner := &recordingBackend{
		tag: BackendVector,
		byQuery: map[string][]Candidate{
			"高血压": {
				{ID: "a", Backend: BackendVector, Text: "a-text", Rank: 1, RawScore: 0.9},
				{ID: "b", Backend: BackendVector, Text: "b-text", Rank: 2, RawScore: 0.7},
			},
			"原发性高血压": {
				{ID: "b", Backend: BackendVector, Text: "b-text", Rank: 1, RawScore: 0.8},
				{ID: "c", Backend: BackendVector, Text: "c-text", Rank: 2, RawScore: 0.6},
			},
		},
	}
	expander := stubExpanderFn(func(string, Intent) ([]string, error) {
		return []string{"原发性高血压"}, nil
	})
	backend := NewSemanticBackend(DefaultSemanticBackendConfig(), expander, inner, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{
		Query:  "高血压",
		Intent: IntentDiseaseInfo,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, []string{"高血压", "原发性高血压"}, inner.queries)
	assert.Equal(t, []string{"a", "b", "c"}, []string{candidates[0].ID, candidates[1].ID, candidates[2].ID})
	for i, c := range candidates {
		assert.Equal(t, BackendSemantic, c.Backend)
		assert.Equal(t, i+1, c.Rank)
	}
}

func TestSemanticBackend_RuleFallbackOnExpanderFailure(t *testing.T) {
	inner := &recordingBackend{tag: BackendVector, byQuery: map[string][]Candidate{}}
	expander := stubExpanderFn(func(string, Intent) ([]string, error) {
		return nil, errors.New("llm unavailable")
	})
	backend := NewSemanticBackend(DefaultSemanticBackendConfig(), expander, inner, nil)

	_, err := backend.Search(context.Background(), SearchInput{
		Query:  "布洛芬",
		Intent: IntentDrugInfo,
		Limit:  5,
	})
	require.NoError(t, err)

	require.Len(t, inner.queries, 2)
	assert.Equal(t, "布洛芬", inner.queries[0])
	assert.Equal(t, "布洛芬 适应症 用法用量 不良反应", inner.queries[1])
}

func TestSemanticBackend_NilExpanderUsesRules(t *testing.T) {
	inner := &recordingBackend{tag: BackendVector, byQuery: map[string][]Candidate{}}
	backend := NewSemanticBackend(DefaultSemanticBackendConfig(), nil, inner, nil)

	_, err := backend.Search(context.Background(), SearchInput{
		Query:  "头晕",
		Intent: IntentSymptomDiagnosis,
		Limit:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"头晕", "头晕 可能疾病 鉴别诊断"}, inner.queries)
}

func TestSemanticBackend_AllVariantsFail(t *testing.T) {
	inner := &recordingBackend{tag: BackendVector, err: errors.New("store down")}
	backend := NewSemanticBackend(DefaultSemanticBackendConfig(), nil, inner, nil)

	_, err := backend.Search(context.Background(), SearchInput{
		Query:  "q",
		Intent: IntentGeneral,
		Limit:  5,
	})
	require.Error(t, err)
}

// QQ 图谱后端 QQ

type stubFactSource struct {
	diseaseFacts map[string][]graph.Fact
	symptomFacts map[string][]graph.Fact
	drugFacts    map[string][]graph.Fact
	err          error
}

func (s *stubFactSource) DiseaseFacts(_ context.Context, name string) ([]graph.Fact, error) {
	return s.diseaseFacts[name], s.err
}

func (s *stubFactSource) SymptomFacts(_ context.Context, name string) ([]graph.Fact, error) {
	return s.symptomFacts[name], s.err
}

func (s *stubFactSource) DrugFacts(_ context.Context, name string) ([]graph.Fact, error) {
	return s.drugFacts[name], s.err
}

func TestGraphBackend_RoutesByEntityType(t *testing.T) {
	source := &stubFactSource{
		diseaseFacts: map[string][]graph.Fact{
			"高血压": {{Text: "疾病：高血压\n症状：头晕、头痛", EntityLabel: graph.LabelDisease, EntityName: "高血压", Relation: "disease->symptoms"}},
		},
		drugFacts: map[string][]graph.Fact{
			"硝苯地平": {{Text: "药物：硝苯地平\n适应疾病：高血压", EntityLabel: graph.LabelDrug, EntityName: "硝苯地平", Relation: "drug->diseases"}},
		},
	}
	backend := NewGraphBackend(source, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{
		Query: "高血压吃硝苯地平",
		Entities: []Entity{
			{Type: EntityDisease, Name: "高血压"},
			{Type: EntityDrug, Name: "硝苯地平"},
		},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "kg:Disease:高血压", candidates[0].ID)
	assert.Equal(t, "knowledge_graph", candidates[0].Source)
	assert.Equal(t, "disease->symptoms", candidates[0].Relation)
	assert.Equal(t, 1.0, candidates[0].RawScore)
	assert.Equal(t, 2, candidates[1].Rank)
}

func TestGraphBackend_NoEntitiesNoError(t *testing.T) {
	backend := NewGraphBackend(&stubFactSource{}, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{Query: "你好", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGraphBackend_AllLookupsFailed(t *testing.T) {
	backend := NewGraphBackend(&stubFactSource{err: errors.New("bolt refused")}, nil)

	_, err := backend.Search(context.Background(), SearchInput{
		Query:    "高血压",
		Entities: []Entity{{Type: EntityDisease, Name: "高血压"}},
		Limit:    5,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrGraphUnavailable))
}

func TestGraphBackend_SkipsNonTraversableEntities(t *testing.T) {
	source := &stubFactSource{}
	backend := NewGraphBackend(source, nil)

	candidates, err := backend.Search(context.Background(), SearchInput{
		Query:    "体检挂什么科",
		Entities: []Entity{{Type: EntityDepartment, Name: "体检科"}},
		Limit:    5,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

// QQ 交叉编码适配 QQ

type stubRerankProvider struct {
	scores map[string]float64
	err    error
}

func (s *stubRerankProvider) Rerank(_ context.Context, req *rerank.RerankRequest) (*rerank.RerankResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := make([]rerank.RerankResult, len(req.Documents))
	for i, doc := range req.Documents {
		results[i] = rerank.RerankResult{Index: i, RelevanceScore: s.scores[doc.Text], Document: doc}
	}
	return &rerank.RerankResponse{Provider: s.Name(), Results: results}, nil
}

func (s *stubRerankProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]rerank.RerankResult, error) {
	docs := make([]rerank.Document, len(documents))
	for i, d := range documents {
		docs[i] = rerank.Document{Text: d}
	}
	resp, err := s.Rerank(ctx, &rerank.RerankRequest{Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (s *stubRerankProvider) Name() string      { return "stub-rerank" }
func (s *stubRerankProvider) MaxDocuments() int { return 100 }

func TestProviderCrossEncoder_ScoresAligned(t *testing.T) {
	encoder := NewProviderCrossEncoder(&stubRerankProvider{
		scores: map[string]float64{"a": 0.9, "b": 0.2, "c": 0.5},
	})

	scores, err := encoder.Score(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.2, 0.5}, scores)
}

func TestProviderCrossEncoder_ProviderFailure(t *testing.T) {
	encoder := NewProviderCrossEncoder(&stubRerankProvider{err: errors.New("503")})

	_, err := encoder.Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
}

func TestProviderCrossEncoder_EmptyInput(t *testing.T) {
	encoder := NewProviderCrossEncoder(&stubRerankProvider{})

	scores, err := encoder.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}
