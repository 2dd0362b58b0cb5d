package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/yilianai/medrag/graph"
	"github.com/yilianai/medrag/types"
)

// QQ 图谱后端 QQ

// FactSource 按中心实体类型提供图谱事实
type FactSource interface {
	DiseaseFacts(ctx context.Context, disease string) ([]graph.Fact, error)
	SymptomFacts(ctx context.Context, symptom string) ([]graph.Fact, error)
	DrugFacts(ctx context.Context, drug string) ([]graph.Fact, error)
}

// GraphBackend 以识别出的实体为起点做知识图谱检索。
// 没有实体时不产生候选，这不是错误。
type GraphBackend struct {
	source FactSource
	logger *zap.Logger
}

// NewGraphBackend 创建图谱检索后端
func NewGraphBackend(source FactSource, logger *zap.Logger) *GraphBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphBackend{
		source: source,
		logger: logger.With(zap.String("backend", string(BackendGraph))),
	}
}

// Tag 返回后端标识
func (b *GraphBackend) Tag() BackendTag { return BackendGraph }

// Search 逐实体查询图谱并组装候选。单个实体查询失败只记日志，
// 全部失败才返回错误。
func (b *GraphBackend) Search(ctx context.Context, input SearchInput) ([]Candidate, error) {
	if len(input.Entities) == 0 {
		return nil, nil
	}

	var candidates []Candidate
	seen := make(map[string]bool)
	var lastErr error
	failures := 0

	for _, entity := range input.Entities {
		facts, err := b.entityFacts(ctx, entity)
		if err != nil {
			failures++
			lastErr = err
			b.logger.Warn("graph lookup failed",
				zap.String("entity", entity.Name),
				zap.String("type", string(entity.Type)),
				zap.Error(err))
			continue
		}
		for _, fact := range facts {
			if seen[fact.Text] {
				continue
			}
			seen[fact.Text] = true
			candidates = append(candidates, Candidate{
				ID:       "kg:" + fact.EntityLabel + ":" + fact.EntityName,
				Backend:  BackendGraph,
				Text:     fact.Text,
				Source:   "knowledge_graph",
				Rank:     len(candidates) + 1,
				RawScore: 1.0,
				Relation: fact.Relation,
			})
			if input.Limit > 0 && len(candidates) >= input.Limit {
				return candidates, nil
			}
		}
	}

	if len(candidates) == 0 && failures == len(b.queryableEntities(input.Entities)) && failures > 0 {
		return nil, types.NewError(types.ErrGraphUnavailable, "all graph lookups failed").
			WithBackend(string(BackendGraph)).WithCause(lastErr)
	}
	return candidates, nil
}

// entityFacts 按实体类型选择查询形状
func (b *GraphBackend) entityFacts(ctx context.Context, entity Entity) ([]graph.Fact, error) {
	switch entity.Type {
	case EntityDisease:
		return b.source.DiseaseFacts(ctx, entity.Name)
	case EntitySymptom:
		return b.source.SymptomFacts(ctx, entity.Name)
	case EntityDrug:
		return b.source.DrugFacts(ctx, entity.Name)
	default:
		// 检查项目和科室不作为遍历起点
		return nil, nil
	}
}

func (b *GraphBackend) queryableEntities(entities []Entity) []Entity {
	out := entities[:0:0]
	for _, e := range entities {
		switch e.Type {
		case EntityDisease, EntitySymptom, EntityDrug:
			out = append(out, e)
		}
	}
	return out
}
