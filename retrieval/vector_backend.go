package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/yilianai/medrag/types"
)

// QQ 向量后端 QQ

// Embedder 把查询文本映射为稠密向量
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
}

// VectorSearcher 在向量库上执行相似检索
type VectorSearcher interface {
	Search(ctx context.Context, queryEmbedding []float64, limit int, filters map[string]string) ([]VectorHit, error)
}

// VectorBackend 通过嵌入模型 + 向量库实现稠密检索
type VectorBackend struct {
	embedder Embedder
	store    VectorSearcher
	logger   *zap.Logger
}

// NewVectorBackend 创建向量检索后端
func NewVectorBackend(embedder Embedder, store VectorSearcher, logger *zap.Logger) *VectorBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorBackend{
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("backend", string(BackendVector))),
	}
}

// Tag 返回后端标识
func (b *VectorBackend) Tag() BackendTag { return BackendVector }

// Search 先嵌入查询再做相似检索
func (b *VectorBackend) Search(ctx context.Context, input SearchInput) ([]Candidate, error) {
	vector, err := b.embedder.EmbedQuery(ctx, input.Query)
	if err != nil {
		return nil, types.NewError(types.ErrModelUnavailable, "query embedding failed").
			WithBackend(string(BackendVector)).WithCause(err)
	}

	hits, err := b.store.Search(ctx, vector, input.Limit, input.Filters)
	if err != nil {
		return nil, types.NewError(types.ErrBackendUnavailable, "vector search failed").
			WithBackend(string(BackendVector)).WithCause(err)
	}

	candidates := make([]Candidate, 0, len(hits))
	for i, hit := range hits {
		candidates = append(candidates, Candidate{
			ID:       hit.ID,
			Backend:  BackendVector,
			Text:     hit.Text,
			Source:   hit.Source,
			Rank:     i + 1,
			RawScore: hit.Score,
		})
	}
	return candidates, nil
}
