package retrieval

import (
	"context"
	"fmt"

	"github.com/yilianai/medrag/rerank"
)

// QQ 交叉编码适配 QQ

// providerCrossEncoder 把 rerank.Provider 适配为 CrossEncoder
type providerCrossEncoder struct {
	provider rerank.Provider
}

// NewProviderCrossEncoder 用重排服务提供者构建交叉编码器
func NewProviderCrossEncoder(provider rerank.Provider) CrossEncoder {
	return &providerCrossEncoder{provider: provider}
}

// Score 返回与输入 texts 同序的相关性分数
func (e *providerCrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results, err := e.provider.RerankSimple(ctx, query, texts, 0)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	filled := make([]bool, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("rerank result index out of range: %d", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
		filled[r.Index] = true
	}
	for i, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for text %d", i)
		}
	}
	return scores, nil
}
