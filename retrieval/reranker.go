package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// QQ 重排器 QQ

// CrossEncoder 是交叉编码重排模型接口，对 (query, text) 对联合打分
type CrossEncoder interface {
	// Score 返回 texts 中每条候选与查询的相关分，顺序与输入一致
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// FeatureModel 是可选的轻量特征重排模型
type FeatureModel interface {
	// Predict 由特征向量给出候选分数 [0,1]
	Predict(ctx context.Context, features Features) (float64, error)
}

// RerankerConfig 配置最终分数的混合权重
type RerankerConfig struct {
	// 交叉编码分权重
	CrossWeight float64 `json:"cross_weight"`
	// 相关性概率权重
	RelevanceWeight float64 `json:"relevance_weight"`
	// 特征模型权重，0 表示禁用二级重排
	FeatureWeight float64 `json:"feature_weight"`
}

// DefaultRerankerConfig 返回默认重排配置
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		CrossWeight:     0.7,
		RelevanceWeight: 0.3,
		FeatureWeight:   0,
	}
}

// Reranker 用交叉编码模型对候选重排，模型失败时回退到相关性概率
type Reranker struct {
	config       RerankerConfig
	crossEncoder CrossEncoder
	featureModel FeatureModel
	logger       *zap.Logger
}

// NewReranker 创建新的重排器。crossEncoder 与 featureModel 均可为 nil。
func NewReranker(config RerankerConfig, crossEncoder CrossEncoder, featureModel FeatureModel, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		config:       config,
		crossEncoder: crossEncoder,
		featureModel: featureModel,
		logger:       logger.With(zap.String("component", "reranker")),
	}
}

// Rerank 计算最终分并按其排序，截断到 topK。
// 最终分 = CrossWeight*交叉编码分 + RelevanceWeight*相关性概率，
// 交叉编码不可用时回退为相关性概率本身（degraded 为 true）。
// 平分裁决与融合阶段一致：后端数 → 最优单路排名 → 插入顺序。
func (r *Reranker) Rerank(ctx context.Context, query string, entities []Entity, scored []ScoredCandidate, topK int) (reranked []ScoredCandidate, degraded bool) {
	if len(scored) == 0 {
		return nil, false
	}

	crossScores, crossOK := r.crossScores(ctx, query, scored)
	if r.crossEncoder != nil && !crossOK {
		degraded = true
	}

	out := make([]ScoredCandidate, len(scored))
	copy(out, scored)

	for i := range out {
		if crossOK {
			out[i].FinalScore = r.config.CrossWeight*crossScores[i] +
				r.config.RelevanceWeight*out[i].Relevance
		} else {
			// fallback: relevance probability alone
			out[i].FinalScore = out[i].Relevance
		}
	}

	if r.featureModel != nil && r.config.FeatureWeight > 0 {
		r.blendFeatureModel(ctx, query, entities, out)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return lessFused(&out[i].FusedCandidate, &out[j].FusedCandidate)
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, degraded
}

// crossScores 调用交叉编码模型批量打分，失败返回 ok=false
func (r *Reranker) crossScores(ctx context.Context, query string, scored []ScoredCandidate) ([]float64, bool) {
	if r.crossEncoder == nil {
		return nil, false
	}

	texts := make([]string, len(scored))
	for i, sc := range scored {
		texts[i] = sc.Text
	}

	scores, err := r.crossEncoder.Score(ctx, query, texts)
	if err != nil || len(scores) != len(texts) {
		r.logger.Warn("cross-encoder unavailable, falling back to relevance",
			zap.Error(err))
		return nil, false
	}

	for i := range scores {
		scores[i] = clamp01(scores[i])
	}
	return scores, true
}

// blendFeatureModel 将特征模型分按显式权重混入最终分，
// 模型失败时保持原分数不变
func (r *Reranker) blendFeatureModel(ctx context.Context, query string, entities []Entity, scored []ScoredCandidate) {
	maxFused := 0.0
	for _, sc := range scored {
		if sc.FusedScore > maxFused {
			maxFused = sc.FusedScore
		}
	}

	w := r.config.FeatureWeight
	for i := range scored {
		features := featureVector(query, entities, &scored[i].FusedCandidate)
		p, err := r.featureModel.Predict(ctx, features)
		if err != nil {
			r.logger.Warn("feature reranker unavailable", zap.Error(err))
			return
		}
		scored[i].FinalScore = (1-w)*scored[i].FinalScore + w*clamp01(p)
	}
}

// featureVector 为特征重排模型计算特征
func featureVector(query string, entities []Entity, fc *FusedCandidate) Features {
	matches := 0
	for _, e := range entities {
		if containsEntity(fc.Text, e) {
			matches++
		}
	}
	ratio := 0.0
	if len(entities) > 0 {
		ratio = float64(matches) / float64(len(entities))
	}
	return Features{
		LexicalOverlap: lexicalOverlap(query, fc.Text),
		EntityMatches:  matches,
		EntityRatio:    ratio,
		FusedRank:      fc.FusedRank,
		FusedScore:     fc.FusedScore,
		TextSimilarity: jaccardSimilarity(query, fc.Text),
		BackendCount:   len(fc.Backends),
	}
}
