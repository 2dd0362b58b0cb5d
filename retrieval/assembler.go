package retrieval

import (
	"go.uber.org/zap"
)

// QQ 结果组装器 QQ

// AssemblerConfig 配置结果组装
type AssemblerConfig struct {
	// 近重复合并的 Jaccard 相似度阈值
	DedupThreshold float64 `json:"dedup_threshold"`
}

// DefaultAssemblerConfig 返回默认组装配置
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		DedupThreshold: 0.9,
	}
}

// Assembler 合并近重复候选并产出最终排序结果
type Assembler struct {
	config AssemblerConfig
	logger *zap.Logger
}

// NewAssembler 创建新的结果组装器
func NewAssembler(config AssemblerConfig, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DedupThreshold <= 0 {
		config.DedupThreshold = 0.9
	}
	return &Assembler{
		config: config,
		logger: logger.With(zap.String("component", "assembler")),
	}
}

// Assemble 组装最终结果：文本相似度超过阈值的候选合并（保留分数
// 更高者，溯源取并集），截断到 topK，附加 1-based 排名与命中实体。
// 输入按最终分降序，输出保持该顺序。
func (a *Assembler) Assemble(reranked []ScoredCandidate, entities []Entity, topK int) []RankedResult {
	if len(reranked) == 0 {
		return nil
	}

	merged := a.mergeNearDuplicates(reranked)

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}

	results := make([]RankedResult, len(merged))
	for i, sc := range merged {
		results[i] = RankedResult{
			Rank:     i + 1,
			ID:       sc.ID,
			Text:     sc.Text,
			Source:   sc.Source,
			Backends: sc.Backends,
			Score:    sc.FinalScore,
			Entities: matchedEntities(sc.Text, entities),
		}
	}

	if dropped := len(reranked) - len(merged); dropped > 0 {
		a.logger.Debug("near-duplicates merged", zap.Int("dropped", dropped))
	}
	return results
}

// mergeNearDuplicates 按输入顺序扫描，后续候选与已保留候选相似度
// 超过阈值时并入已保留者。输入按分数降序，所以保留者分数更高。
func (a *Assembler) mergeNearDuplicates(reranked []ScoredCandidate) []ScoredCandidate {
	kept := make([]ScoredCandidate, 0, len(reranked))

	for _, sc := range reranked {
		duplicate := false
		for k := range kept {
			if jaccardSimilarity(kept[k].Text, sc.Text) >= a.config.DedupThreshold {
				// union provenance onto the kept candidate
				kept[k].Backends = unionBackends(kept[k].Backends, sc.Backends)
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, sc)
		}
	}
	return kept
}

// matchedEntities 返回候选文本命中的查询实体
func matchedEntities(text string, entities []Entity) []Entity {
	var matched []Entity
	for _, e := range entities {
		if containsEntity(text, e) {
			matched = append(matched, e)
		}
	}
	return matched
}

// unionBackends 合并后端标签集合，保持声明顺序
func unionBackends(a, b []BackendTag) []BackendTag {
	present := make(map[BackendTag]bool, len(a)+len(b))
	for _, tag := range a {
		present[tag] = true
	}
	for _, tag := range b {
		present[tag] = true
	}

	out := make([]BackendTag, 0, len(present))
	for _, tag := range backendOrder {
		if present[tag] {
			out = append(out, tag)
		}
	}
	return out
}
