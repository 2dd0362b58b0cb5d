// Package medrag 是医疗咨询检索引擎的顶层入口，把查询分析、多路召回、
// RRF 融合、相关性打分与交叉编码重排组装为一个客户端。
//
// 使用方法:
//
//	import "github.com/yilianai/medrag"
//
//	client, err := medrag.New(config.DefaultConfig())
//	resp, err := client.Retrieve(ctx, retrieval.RetrieveRequest{Query: "高血压的症状", TopK: 5})
//
// 外部服务（Qdrant、Redis、Neo4j、嵌入与重排服务）均为可选：
// 连接失败的组件被跳过并记录告警，引擎在剩余后端上继续工作。
package medrag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yilianai/medrag/config"
	"github.com/yilianai/medrag/embedding"
	"github.com/yilianai/medrag/graph"
	"github.com/yilianai/medrag/internal/cache"
	"github.com/yilianai/medrag/internal/metrics"
	"github.com/yilianai/medrag/rerank"
	"github.com/yilianai/medrag/retrieval"
)

// QQ 选项 QQ

type options struct {
	logger       *zap.Logger
	embedder     retrieval.Embedder
	vectorStore  retrieval.VectorSearcher
	crossEncoder retrieval.CrossEncoder
	extractor    retrieval.EntityExtractor
	validator    retrieval.EntityValidator
	relevance    retrieval.RelevanceModel
	featureModel retrieval.FeatureModel
	expander     retrieval.QueryExpander
	cacheStore   retrieval.JSONCache
	metrics      *metrics.Collector
	graphSource  retrieval.FactSource
}

// Option 配置客户端的可注入组件，默认按配置构建真实实现
type Option func(*options)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEmbedder 覆盖嵌入提供者
func WithEmbedder(e retrieval.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithVectorStore 覆盖向量存储
func WithVectorStore(s retrieval.VectorSearcher) Option {
	return func(o *options) { o.vectorStore = s }
}

// WithCrossEncoder 覆盖交叉编码重排模型
func WithCrossEncoder(e retrieval.CrossEncoder) Option {
	return func(o *options) { o.crossEncoder = e }
}

// WithExtractor 设置实体抽取模型
func WithExtractor(e retrieval.EntityExtractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithValidator 覆盖实体校验器
func WithValidator(v retrieval.EntityValidator) Option {
	return func(o *options) { o.validator = v }
}

// WithRelevanceModel 设置相关性模型
func WithRelevanceModel(m retrieval.RelevanceModel) Option {
	return func(o *options) { o.relevance = m }
}

// WithFeatureModel 设置二级特征重排模型
func WithFeatureModel(m retrieval.FeatureModel) Option {
	return func(o *options) { o.featureModel = m }
}

// WithQueryExpander 设置语义路的查询扩展器
func WithQueryExpander(e retrieval.QueryExpander) Option {
	return func(o *options) { o.expander = e }
}

// WithCacheStore 覆盖结果缓存存储
func WithCacheStore(c retrieval.JSONCache) Option {
	return func(o *options) { o.cacheStore = c }
}

// WithMetrics 设置指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithGraphSource 覆盖知识图谱事实源
func WithGraphSource(s retrieval.FactSource) Option {
	return func(o *options) { o.graphSource = s }
}

// QQ 客户端 QQ

// Document 表示待索引的一篇知识文档
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client 是检索引擎的顶层客户端
type Client struct {
	engine   *retrieval.Engine
	embedder retrieval.Embedder
	qdrant   *retrieval.QdrantStore
	lexical  *retrieval.LexicalBackend
	graph    *graph.Client
	cache    *cache.Manager
	logger   *zap.Logger
}

// New 按配置构建检索客户端
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &Client{logger: logger}

	// 嵌入提供者
	embedder := o.embedder
	if embedder == nil {
		embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		})
	}
	client.embedder = embedder

	// 向量后端
	vectorStore := o.vectorStore
	if vectorStore == nil {
		client.qdrant = retrieval.NewQdrantStore(retrieval.QdrantStoreConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout,
		}, logger)
		vectorStore = client.qdrant
	}
	vectorBackend := retrieval.NewVectorBackend(embedder, vectorStore, logger)

	// 词法后端
	client.lexical = retrieval.NewLexicalBackend(retrieval.DefaultLexicalBackendConfig(), nil, logger)

	// 语义后端：对向量路做查询扩展二次召回
	semanticBackend := retrieval.NewSemanticBackend(
		retrieval.DefaultSemanticBackendConfig(), o.expander, vectorBackend, logger)

	backends := []retrieval.Backend{vectorBackend, client.lexical, semanticBackend}

	// 知识图谱：连接失败只降级，不阻止启动
	validator := o.validator
	graphSource := o.graphSource
	if graphSource == nil {
		gc, err := graph.NewClient(graph.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
			MaxDepth: cfg.Neo4j.MaxDepth,
		}, logger)
		if err != nil {
			logger.Warn("knowledge graph unavailable, graph backend disabled", zap.Error(err))
		} else {
			client.graph = gc
			graphSource = gc
			if validator == nil {
				validator = &graphValidator{client: gc}
			}
		}
	}
	if graphSource != nil {
		backends = append(backends, retrieval.NewGraphBackend(graphSource, logger))
	}

	// 交叉编码重排
	crossEncoder := o.crossEncoder
	if crossEncoder == nil {
		provider, err := rerankProvider(cfg.Rerank)
		if err != nil {
			logger.Warn("rerank provider unavailable, reranking disabled", zap.Error(err))
		} else {
			crossEncoder = retrieval.NewProviderCrossEncoder(provider)
		}
	}

	// 结果缓存
	cacheStore := o.cacheStore
	if cacheStore == nil && cfg.Retrieval.CacheEnabled {
		manager, err := cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DefaultTTL:   cfg.Retrieval.CacheTTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			logger.Warn("result cache unavailable, caching disabled", zap.Error(err))
		} else {
			client.cache = manager
			cacheStore = manager
		}
	}

	engine, err := retrieval.NewEngine(cfg, retrieval.Deps{
		Backends:     backends,
		Extractor:    o.extractor,
		Validator:    validator,
		Relevance:    o.relevance,
		CrossEncoder: crossEncoder,
		FeatureModel: o.featureModel,
		Cache:        cacheStore,
		Metrics:      o.metrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	client.engine = engine

	return client, nil
}

// Retrieve 执行一次检索
func (c *Client) Retrieve(ctx context.Context, req retrieval.RetrieveRequest) (*retrieval.RetrieveResponse, error) {
	return c.engine.Retrieve(ctx, req)
}

// IndexDocuments 把文档写入向量库与词法索引
func (c *Client) IndexDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	lexDocs := make([]retrieval.IndexDocument, 0, len(docs))
	vecDocs := make([]retrieval.VectorDocument, 0, len(docs))
	for _, doc := range docs {
		lexDocs = append(lexDocs, retrieval.IndexDocument{
			ID:     doc.ID,
			Text:   doc.Text,
			Source: doc.Source,
		})

		if c.qdrant == nil {
			continue
		}
		vector, err := c.embedder.EmbedQuery(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		vecDocs = append(vecDocs, retrieval.VectorDocument{
			ID:        doc.ID,
			Text:      doc.Text,
			Source:    doc.Source,
			Metadata:  doc.Metadata,
			Embedding: vector,
		})
	}

	c.lexical.AddDocuments(lexDocs)
	if c.qdrant != nil && len(vecDocs) > 0 {
		if err := c.qdrant.Upsert(ctx, vecDocs); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}
	}

	c.logger.Info("documents indexed", zap.Int("count", len(docs)))
	return nil
}

// Close 释放外部连接
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if c.graph != nil {
		if err := c.graph.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// rerankProvider 按配置选择重排提供者
func rerankProvider(cfg config.RerankConfig) (rerank.Provider, error) {
	switch cfg.Provider {
	case "", "bge":
		return rerank.NewBGEProvider(rerank.BGEConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "cohere":
		return rerank.NewCohereProvider(rerank.CohereConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", cfg.Provider)
	}
}

// graphValidator 用知识图谱校验实体存在性
type graphValidator struct {
	client *graph.Client
}

func (v *graphValidator) Exists(ctx context.Context, entity retrieval.Entity) (bool, error) {
	return v.client.EntityExists(ctx, entityLabel(entity.Type), entity.Name)
}

// entityLabel 把实体类型映射为图谱标签
func entityLabel(t retrieval.EntityType) string {
	switch t {
	case retrieval.EntityDisease:
		return graph.LabelDisease
	case retrieval.EntitySymptom:
		return graph.LabelSymptom
	case retrieval.EntityDrug:
		return graph.LabelDrug
	case retrieval.EntityExamination:
		return graph.LabelExamination
	case retrieval.EntityDepartment:
		return graph.LabelDepartment
	default:
		return graph.LabelDisease
	}
}
