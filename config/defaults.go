// =============================================================================
// 📦 MedRAG 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Retrieval: DefaultRetrievalConfig(),
		Analyzer:  DefaultAnalyzerConfig(),
		Redis:     DefaultRedisConfig(),
		Qdrant:    DefaultQdrantConfig(),
		Neo4j:     DefaultNeo4jConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Rerank:    DefaultRerankConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultRetrievalConfig 返回默认检索管线配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		FusionK:          60,
		FusedLimitFactor: 5,
		PerBackendLimit:  20,
		BackendTimeout:   5 * time.Second,
		QueryTimeout:     30 * time.Second,
		VectorWeight:     0.4,
		LexicalWeight:    0.3,
		SemanticWeight:   0.2,
		GraphWeight:      0.1,
		CrossWeight:      0.7,
		RelevanceWeight:  0.3,
		FeatureWeight:    0,
		MinRelevance:     0.1,
		DedupThreshold:   0.9,
		BackendRateLimit: 50,
		BreakerFailures:  5,
		BreakerCooldown:  30 * time.Second,
		CacheEnabled:     true,
		CacheTTL:         10 * time.Minute,
	}
}

// DefaultAnalyzerConfig 返回默认查询分析配置
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		ExtractorTimeout: 3 * time.Second,
		ValidateEntities: false,
		IntentThreshold:  0.3,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultQdrantConfig 返回默认 Qdrant 配置
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		APIKey:     "",
		Collection: "medical_knowledge",
		Timeout:    10 * time.Second,
	}
}

// DefaultNeo4jConfig 返回默认 Neo4j 配置
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
		Password: "",
		Database: "neo4j",
		MaxDepth: 2,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入服务配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL: "http://localhost:8001/v1",
		APIKey:  "",
		Model:   "bge-large-zh-v1.5",
		Timeout: 10 * time.Second,
	}
}

// DefaultRerankConfig 返回默认重排服务配置
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Provider: "bge",
		BaseURL:  "http://localhost:8002",
		APIKey:   "",
		Model:    "BAAI/bge-reranker-base",
		Timeout:  10 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "medrag",
		SampleRate:   1.0,
	}
}
