package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// QQ 相关性打分器 QQ

// Features 表示单个候选的相关性特征向量
type Features struct {
	// 查询词元被候选覆盖的比例
	LexicalOverlap float64 `json:"lexical_overlap"`
	// 命中的查询实体数
	EntityMatches int `json:"entity_matches"`
	// 命中实体占查询实体的比例
	EntityRatio float64 `json:"entity_ratio"`
	// 融合排名（1-based）
	FusedRank int `json:"fused_rank"`
	// 融合分数
	FusedScore float64 `json:"fused_score"`
	// 查询与候选的 Jaccard 文本相似度
	TextSimilarity float64 `json:"text_similarity"`
	// 贡献后端数
	BackendCount int `json:"backend_count"`
}

// RelevanceModel 是二分类相关性模型接口，输出校准概率
type RelevanceModel interface {
	// Predict 返回候选相关的概率 [0,1]
	Predict(ctx context.Context, features Features) (float64, error)
}

// ScorerConfig 配置相关性打分
type ScorerConfig struct {
	// 低于该概率的候选在重排前被丢弃（受 top_k 池底保护）
	MinRelevance float64 `json:"min_relevance"`
	// 回退公式中词元覆盖率的权重
	OverlapWeight float64 `json:"overlap_weight"`
	// 回退公式中归一化融合分的权重
	ScoreWeight float64 `json:"score_weight"`
}

// DefaultScorerConfig 返回默认打分配置
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MinRelevance:  0.1,
		OverlapWeight: 0.6,
		ScoreWeight:   0.4,
	}
}

// Scorer 为融合候选计算校准相关性概率
type Scorer struct {
	config ScorerConfig
	model  RelevanceModel
	logger *zap.Logger
}

// NewScorer 创建新的相关性打分器。model 可为 nil，此时直接使用
// 确定性的融合分回退公式。
func NewScorer(config ScorerConfig, model RelevanceModel, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		config: config,
		model:  model,
		logger: logger.With(zap.String("component", "scorer")),
	}
}

// Score 为每个融合候选产出相关性概率。返回的 degraded 表示模型
// 不可用走了回退路径。
func (s *Scorer) Score(ctx context.Context, query string, entities []Entity, fused []FusedCandidate) (scored []ScoredCandidate, degraded bool) {
	if len(fused) == 0 {
		return nil, false
	}

	maxFused := fused[0].FusedScore
	for _, fc := range fused {
		if fc.FusedScore > maxFused {
			maxFused = fc.FusedScore
		}
	}

	scored = make([]ScoredCandidate, len(fused))
	modelFailed := false

	for i, fc := range fused {
		features := featureVector(query, entities, &fc)

		var relevance float64
		if s.model != nil && !modelFailed {
			p, err := s.model.Predict(ctx, features)
			if err != nil {
				// One failure disables the model for the rest of the batch.
				s.logger.Warn("relevance model failed, using fused-score fallback", zap.Error(err))
				modelFailed = true
			} else {
				relevance = clamp01(p)
			}
		}
		if s.model == nil || modelFailed {
			relevance = s.fallbackRelevance(features, maxFused)
		}

		sc := ScoredCandidate{FusedCandidate: fc, Relevance: relevance}
		scored[i] = sc
	}

	if modelFailed {
		// Re-score earlier candidates so the whole batch uses one formula.
		for i := range scored {
			features := featureVector(query, entities, &scored[i].FusedCandidate)
			scored[i].Relevance = s.fallbackRelevance(features, maxFused)
		}
	}

	return scored, modelFailed
}

// Filter 丢弃低于阈值的候选，但保证池大小不低于 topK。
// 池本身小于 topK 时原样保留。
func (s *Scorer) Filter(scored []ScoredCandidate, topK int) []ScoredCandidate {
	if len(scored) <= topK {
		return scored
	}

	kept := make([]ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.Relevance >= s.config.MinRelevance {
			kept = append(kept, sc)
		}
	}
	if len(kept) >= topK {
		return kept
	}

	// Threshold would shrink the pool below top_k: keep the highest
	// relevance candidates regardless of threshold.
	bySorted := make([]ScoredCandidate, len(scored))
	copy(bySorted, scored)
	sort.SliceStable(bySorted, func(i, j int) bool {
		return bySorted[i].Relevance > bySorted[j].Relevance
	})
	return bySorted[:topK]
}

// fallbackRelevance 模型不可用时的确定性回退:
// OverlapWeight*覆盖率 + ScoreWeight*归一化融合分
func (s *Scorer) fallbackRelevance(features Features, maxFused float64) float64 {
	normalized := 0.0
	if maxFused > 0 {
		normalized = features.FusedScore / maxFused
	}
	return clamp01(s.config.OverlapWeight*features.LexicalOverlap + s.config.ScoreWeight*normalized)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
