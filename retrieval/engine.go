package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yilianai/medrag/config"
	"github.com/yilianai/medrag/internal/metrics"
	"github.com/yilianai/medrag/types"
)

// QQ 检索引擎 QQ

// Deps 聚合引擎的可选外部依赖。除 Backends 外均可为空，
// 空依赖走对应的确定性回退路径。
type Deps struct {
	// 已按标签构建的检索后端
	Backends []Backend
	// 实体抽取模型
	Extractor EntityExtractor
	// 实体校验器（通常由知识图谱实现）
	Validator EntityValidator
	// 相关性模型
	Relevance RelevanceModel
	// 交叉编码重排模型
	CrossEncoder CrossEncoder
	// 二级特征重排模型
	FeatureModel FeatureModel
	// 结果缓存存储
	Cache JSONCache
	// 指标收集器
	Metrics *metrics.Collector
	// 日志
	Logger *zap.Logger
}

// Engine 将查询分析、并发检索、融合、打分、重排与组装
// 串联为一次完整的检索调用
type Engine struct {
	cfg         config.RetrievalConfig
	analyzer    *Analyzer
	registry    *Registry
	coordinator *Coordinator
	fuser       *Fuser
	scorer      *Scorer
	reranker    *Reranker
	assembler   *Assembler
	baseWeights map[BackendTag]float64
	cache       *ResultCache
	metrics     *metrics.Collector
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewEngine 按配置组装检索引擎
func NewEngine(cfg config.Config, deps Deps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "engine"))

	registry := NewRegistry()
	for _, backend := range deps.Backends {
		if err := registry.Register(backend); err != nil {
			return nil, err
		}
	}

	analyzer := NewAnalyzer(AnalyzerConfig{
		ExtractorTimeout: cfg.Analyzer.ExtractorTimeout,
		ValidateEntities: cfg.Analyzer.ValidateEntities,
		IntentThreshold:  cfg.Analyzer.IntentThreshold,
	}, deps.Extractor, deps.Validator, logger)

	coordinator := NewCoordinator(CoordinatorConfig{
		PerBackendLimit: cfg.Retrieval.PerBackendLimit,
		BackendTimeout:  cfg.Retrieval.BackendTimeout,
		RateLimit:       cfg.Retrieval.BackendRateLimit,
		BreakerFailures: cfg.Retrieval.BreakerFailures,
		BreakerCooldown: cfg.Retrieval.BreakerCooldown,
	}, registry, logger)

	fuser := NewFuser(FuserConfig{
		K:           cfg.Retrieval.FusionK,
		LimitFactor: cfg.Retrieval.FusedLimitFactor,
	}, logger)

	scorer := NewScorer(ScorerConfig{
		MinRelevance:  cfg.Retrieval.MinRelevance,
		OverlapWeight: DefaultScorerConfig().OverlapWeight,
		ScoreWeight:   DefaultScorerConfig().ScoreWeight,
	}, deps.Relevance, logger)

	reranker := NewReranker(RerankerConfig{
		CrossWeight:     cfg.Retrieval.CrossWeight,
		RelevanceWeight: cfg.Retrieval.RelevanceWeight,
		FeatureWeight:   cfg.Retrieval.FeatureWeight,
	}, deps.CrossEncoder, deps.FeatureModel, logger)

	assembler := NewAssembler(AssemblerConfig{
		DedupThreshold: cfg.Retrieval.DedupThreshold,
	}, logger)

	vector, lexical, semantic, graphW := cfg.Retrieval.NormalizedWeights()
	baseWeights := map[BackendTag]float64{
		BackendVector:   vector,
		BackendLexical:  lexical,
		BackendSemantic: semantic,
		BackendGraph:    graphW,
	}

	var resultCache *ResultCache
	if cfg.Retrieval.CacheEnabled && deps.Cache != nil {
		resultCache = NewResultCache(deps.Cache, cfg.Retrieval.CacheTTL, logger)
	}

	return &Engine{
		cfg:         cfg.Retrieval,
		analyzer:    analyzer,
		registry:    registry,
		coordinator: coordinator,
		fuser:       fuser,
		scorer:      scorer,
		reranker:    reranker,
		assembler:   assembler,
		baseWeights: baseWeights,
		cache:       resultCache,
		metrics:     deps.Metrics,
		tracer:      otel.Tracer("github.com/yilianai/medrag/retrieval"),
		logger:      logger,
	}, nil
}

// Retrieve 执行一次完整检索。所有后端失败返回空结果而非错误，
// 只有非法请求才返回错误。
func (e *Engine) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.NewError(types.ErrInvalidQuery, "query text is empty")
	}
	if req.TopK <= 0 {
		return nil, types.NewError(types.ErrInvalidQuery, "top_k must be positive")
	}

	start := time.Now()
	queryID := uuid.NewString()

	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "engine.retrieve",
		trace.WithAttributes(
			attribute.String("query.id", queryID),
			attribute.Int("query.top_k", req.TopK)))
	defer span.End()

	if e.cache != nil {
		if cached := e.cache.Get(ctx, req); cached != nil {
			if e.metrics != nil {
				e.metrics.RecordCacheHit()
			}
			cached.Cached = true
			cached.Duration = time.Since(start)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss()
		}
	}

	resp := e.retrieve(ctx, req, span)
	resp.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordQuery(string(resp.Intent), string(resp.Status), resp.Duration, len(resp.Results))
	}
	if e.cache != nil && resp.Status != StatusEmpty {
		e.cache.Set(ctx, req, resp)
	}

	e.logger.Info("retrieval completed",
		zap.String("query_id", queryID),
		zap.String("intent", string(resp.Intent)),
		zap.String("status", string(resp.Status)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

// retrieve 执行未命中缓存时的完整管线
func (e *Engine) retrieve(ctx context.Context, req RetrieveRequest, span trace.Span) *RetrieveResponse {
	analysis := stageTimed(e, "analyze", func() *Analysis {
		return e.analyzer.Analyze(ctx, req.Query)
	})
	span.SetAttributes(
		attribute.String("query.intent", string(analysis.Intent)),
		attribute.Int("query.entities", len(analysis.Entities)),
	)

	weights := WeightsFor(analysis.Intent, e.baseWeights)

	dispatch := stageTimed(e, "dispatch", func() *DispatchResult {
		return e.coordinator.Dispatch(ctx, SearchInput{
			Query:    req.Query,
			Entities: analysis.Entities,
			Intent:   analysis.Intent,
			Limit:    e.cfg.PerBackendLimit,
			Filters:  req.Filters,
		})
	})

	stats := dispatch.Stats
	for i := range stats {
		stats[i].Weight = weights[stats[i].Backend]
	}
	if e.metrics != nil {
		for _, stat := range stats {
			e.metrics.RecordBackend(string(stat.Backend), stat.Available, stat.Duration, stat.Count)
		}
	}

	resp := &RetrieveResponse{
		Intent:   analysis.Intent,
		Entities: analysis.Entities,
		Stats:    stats,
	}

	if dispatch.AllFailed() {
		resp.Status = StatusEmpty
		span.SetAttributes(attribute.String("retrieve.status", string(StatusEmpty)))
		e.logger.Warn("all backends failed", zap.String("query", req.Query))
		return resp
	}

	fused := stageTimed(e, "fuse", func() []FusedCandidate {
		return e.fuser.Fuse(dispatch.Lists, weights, req.TopK)
	})

	var scorerDegraded bool
	scored := stageTimed(e, "score", func() []ScoredCandidate {
		var out []ScoredCandidate
		out, scorerDegraded = e.scorer.Score(ctx, req.Query, analysis.Entities, fused)
		return e.scorer.Filter(out, req.TopK)
	})
	if scorerDegraded && e.metrics != nil {
		e.metrics.RecordModelFallback("relevance")
	}

	var rerankDegraded bool
	reranked := stageTimed(e, "rerank", func() []ScoredCandidate {
		var out []ScoredCandidate
		out, rerankDegraded = e.reranker.Rerank(ctx, req.Query, analysis.Entities, scored, req.TopK)
		return out
	})
	if rerankDegraded && e.metrics != nil {
		e.metrics.RecordModelFallback("cross_encoder")
	}

	resp.Results = stageTimed(e, "assemble", func() []RankedResult {
		return e.assembler.Assemble(reranked, analysis.Entities, req.TopK)
	})

	switch {
	case len(resp.Results) == 0:
		resp.Status = StatusEmpty
	case dispatch.Degraded() || scorerDegraded || rerankDegraded:
		resp.Status = StatusDegraded
	default:
		resp.Status = StatusOK
	}
	span.SetAttributes(
		attribute.String("retrieve.status", string(resp.Status)),
		attribute.Int("retrieve.results", len(resp.Results)),
	)
	return resp
}

// stage 执行一个管线阶段并记录耗时
func stageTimed[T any](e *Engine, name string, fn func() T) T {
	start := time.Now()
	out := fn()
	if e.metrics != nil {
		e.metrics.RecordStage(name, time.Since(start))
	}
	return out
}
