package retrieval

import (
	"sort"

	"go.uber.org/zap"
)

// QQ 排名融合 QQ

// FuserConfig 配置加权 RRF 融合
type FuserConfig struct {
	// RRF 常数 k，越大排名差异被压得越平
	K int `json:"k"`
	// 融合输出上限 = LimitFactor * top_k
	LimitFactor int `json:"limit_factor"`
}

// DefaultFuserConfig 返回默认融合配置
func DefaultFuserConfig() FuserConfig {
	return FuserConfig{
		K:           60,
		LimitFactor: 5,
	}
}

// Fuser 用加权 Reciprocal Rank Fusion 合并多路后端排名
type Fuser struct {
	config FuserConfig
	logger *zap.Logger
}

// NewFuser 创建新的排名融合器
func NewFuser(config FuserConfig, logger *zap.Logger) *Fuser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.K <= 0 {
		config.K = 60
	}
	if config.LimitFactor <= 0 {
		config.LimitFactor = 5
	}
	return &Fuser{
		config: config,
		logger: logger.With(zap.String("component", "fuser")),
	}
}

// Fuse 将各路后端的有序候选列表合并为单一融合排名。
//
// 每个候选的融合分 = Σ_b w_b / (k + r_b)，其中 r_b 是候选在后端 b 的
// 1-based 排名；候选未出现的后端贡献 0。同一 ID 出现在多路后端时合并
// 为一个 FusedCandidate，保留贡献后端集合与各路排名。
//
// 分数相同时的裁决顺序：贡献后端更多 → 最优单路排名更小 → 首次
// 插入顺序。输出截断到 LimitFactor*topK。
func (f *Fuser) Fuse(lists map[BackendTag][]Candidate, weights map[BackendTag]float64, topK int) []FusedCandidate {
	merged := make(map[string]*FusedCandidate)
	order := 0

	// Backends are walked in declaration order so insertion order is
	// deterministic regardless of map iteration.
	for _, tag := range backendOrder {
		candidates, ok := lists[tag]
		if !ok {
			continue
		}
		weight := weights[tag]

		for i, c := range candidates {
			rank := c.Rank
			if rank <= 0 {
				rank = i + 1
			}

			key := candidateKey(c)
			fc, exists := merged[key]
			if !exists {
				fc = &FusedCandidate{
					ID:           key,
					Text:         c.Text,
					Source:       c.Source,
					BackendRanks: make(map[BackendTag]int),
					insertOrder:  order,
				}
				order++
				merged[key] = fc
			}

			if _, seen := fc.BackendRanks[tag]; !seen {
				fc.Backends = append(fc.Backends, tag)
				fc.BackendRanks[tag] = rank
				fc.FusedScore += weight / float64(f.config.K+rank)
			}
			// Prefer the longer snippet when backends disagree on text.
			if len(c.Text) > len(fc.Text) {
				fc.Text = c.Text
			}
		}
	}

	fused := make([]FusedCandidate, 0, len(merged))
	for _, fc := range merged {
		fused = append(fused, *fc)
	}

	sort.Slice(fused, func(i, j int) bool {
		return lessFused(&fused[i], &fused[j])
	})

	limit := f.config.LimitFactor * topK
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	for i := range fused {
		fused[i].FusedRank = i + 1
	}

	f.logger.Debug("fusion complete",
		zap.Int("inputs", order),
		zap.Int("fused", len(fused)))

	return fused
}

// lessFused 定义融合排序：分数降序，平分时按后端数、最优排名、插入顺序
func lessFused(a, b *FusedCandidate) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if len(a.Backends) != len(b.Backends) {
		return len(a.Backends) > len(b.Backends)
	}
	if ar, br := a.BestRank(), b.BestRank(); ar != br {
		return ar < br
	}
	return a.insertOrder < b.insertOrder
}

// candidateKey 返回候选的融合合并键。优先使用后端提供的 ID，
// 缺失时退化为文本前缀键，使同一片段在不同后端仍能合并。
func candidateKey(c Candidate) string {
	if c.ID != "" {
		return c.ID
	}
	text := c.Text
	if len(text) > 64 {
		text = text[:64]
	}
	return "text:" + text
}
