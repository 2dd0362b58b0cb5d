package retrieval

import (
	"context"

	"go.uber.org/zap"
)

// QQ 语义后端 QQ

// QueryExpander 把原始查询扩展为若干同义/术语变体。
// 返回的变体不必包含原查询。
type QueryExpander interface {
	Expand(ctx context.Context, query string, intent Intent) ([]string, error)
}

// SemanticBackendConfig 配置语义扩展检索
type SemanticBackendConfig struct {
	// 参与检索的最大变体数（含原查询）
	MaxVariants int `json:"max_variants" yaml:"max_variants"`
}

// DefaultSemanticBackendConfig 返回默认语义检索配置
func DefaultSemanticBackendConfig() SemanticBackendConfig {
	return SemanticBackendConfig{MaxVariants: 3}
}

// SemanticBackend 先扩展查询，再用内层检索器对每个变体检索，
// 按首次命中的最优排名合并。扩展失败时退化为原查询直查。
type SemanticBackend struct {
	cfg      SemanticBackendConfig
	expander QueryExpander
	inner    Backend
	logger   *zap.Logger
}

// NewSemanticBackend 创建语义检索后端。expander 可为 nil，
// 此时使用基于意图的规则扩展。
func NewSemanticBackend(cfg SemanticBackendConfig, expander QueryExpander, inner Backend, logger *zap.Logger) *SemanticBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = 3
	}
	return &SemanticBackend{
		cfg:      cfg,
		expander: expander,
		inner:    inner,
		logger:   logger.With(zap.String("backend", string(BackendSemantic))),
	}
}

// Tag 返回后端标识
func (b *SemanticBackend) Tag() BackendTag { return BackendSemantic }

// intentExpansions 各意图的规则扩展后缀，模型扩展不可用时使用
var intentExpansions = map[Intent]string{
	IntentDiseaseInfo:       "病因 临床表现",
	IntentSymptomDiagnosis:  "可能疾病 鉴别诊断",
	IntentDrugInfo:          "适应症 用法用量 不良反应",
	IntentDrugInteraction:   "联合用药 禁忌",
	IntentExaminationAdvice: "检查项目 化验指标",
	IntentTreatmentPlan:     "治疗方法 用药方案",
}

// variants 生成检索变体列表，首位固定为原查询
func (b *SemanticBackend) variants(ctx context.Context, query string, intent Intent) []string {
	out := []string{query}

	if b.expander != nil {
		expanded, err := b.expander.Expand(ctx, query, intent)
		if err != nil {
			b.logger.Warn("query expansion failed, using rule fallback", zap.Error(err))
		} else {
			for _, v := range expanded {
				if v != "" && v != query {
					out = append(out, v)
				}
			}
		}
	}

	if len(out) == 1 {
		if suffix, ok := intentExpansions[intent]; ok {
			out = append(out, query+" "+suffix)
		}
	}

	if len(out) > b.cfg.MaxVariants {
		out = out[:b.cfg.MaxVariants]
	}
	return out
}

// Search 对每个查询变体做内层检索并合并
func (b *SemanticBackend) Search(ctx context.Context, input SearchInput) ([]Candidate, error) {
	variants := b.variants(ctx, input.Query, input.Intent)

	type merged struct {
		candidate Candidate
		bestRank  int
	}
	seen := make(map[string]*merged)
	var order []string
	var lastErr error

	for _, variant := range variants {
		variantInput := input
		variantInput.Query = variant

		hits, err := b.inner.Search(ctx, variantInput)
		if err != nil {
			lastErr = err
			b.logger.Warn("semantic variant search failed",
				zap.String("variant", variant), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			key := candidateKey(hit)
			if m, ok := seen[key]; ok {
				if hit.Rank < m.bestRank {
					m.bestRank = hit.Rank
					m.candidate.RawScore = hit.RawScore
				}
				continue
			}
			seen[key] = &merged{candidate: hit, bestRank: hit.Rank}
			order = append(order, key)
		}
	}

	if len(seen) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}

	// 变体序 + 单变体内排名已给出合并顺序，重排为语义路的 1 起始排名
	limit := input.Limit
	if limit <= 0 || limit > len(order) {
		limit = len(order)
	}
	candidates := make([]Candidate, 0, limit)
	for i := 0; i < limit; i++ {
		c := seen[order[i]].candidate
		c.Backend = BackendSemantic
		c.Rank = i + 1
		candidates = append(candidates, c)
	}
	return candidates, nil
}
