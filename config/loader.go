// =============================================================================
// 📦 MedRAG 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MEDRAG").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 MedRAG 检索引擎的完整配置结构
type Config struct {
	// Retrieval 检索管线配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Analyzer 查询分析配置
	Analyzer AnalyzerConfig `yaml:"analyzer" env:"ANALYZER"`

	// Redis 结果缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Qdrant 向量存储配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// Neo4j 知识图谱配置
	Neo4j Neo4jConfig `yaml:"neo4j" env:"NEO4J"`

	// Embedding 嵌入服务配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Rerank 交叉编码重排配置
	Rerank RerankConfig `yaml:"rerank" env:"RERANK"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// RetrievalConfig 检索管线配置
type RetrievalConfig struct {
	// RRF 融合常数 k
	FusionK int `yaml:"fusion_k" env:"FUSION_K"`
	// 融合阶段候选上限 = FusedLimitFactor * top_k
	FusedLimitFactor int `yaml:"fused_limit_factor" env:"FUSED_LIMIT_FACTOR"`
	// 每路后端候选上限
	PerBackendLimit int `yaml:"per_backend_limit" env:"PER_BACKEND_LIMIT"`
	// 单路后端超时
	BackendTimeout time.Duration `yaml:"backend_timeout" env:"BACKEND_TIMEOUT"`
	// 整体查询超时
	QueryTimeout time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
	// 各路后端基础权重（加载时归一化）
	VectorWeight   float64 `yaml:"vector_weight" env:"VECTOR_WEIGHT"`
	LexicalWeight  float64 `yaml:"lexical_weight" env:"LEXICAL_WEIGHT"`
	SemanticWeight float64 `yaml:"semantic_weight" env:"SEMANTIC_WEIGHT"`
	GraphWeight    float64 `yaml:"graph_weight" env:"GRAPH_WEIGHT"`
	// 交叉编码分数与相关性概率的混合权重
	CrossWeight     float64 `yaml:"cross_weight" env:"CROSS_WEIGHT"`
	RelevanceWeight float64 `yaml:"relevance_weight" env:"RELEVANCE_WEIGHT"`
	// 特征重排器混合权重（0 表示禁用二级重排）
	FeatureWeight float64 `yaml:"feature_weight" env:"FEATURE_WEIGHT"`
	// 相关性概率过滤阈值
	MinRelevance float64 `yaml:"min_relevance" env:"MIN_RELEVANCE"`
	// 近重复合并相似度阈值
	DedupThreshold float64 `yaml:"dedup_threshold" env:"DEDUP_THRESHOLD"`
	// 后端限流（每秒请求数，0 表示不限流）
	BackendRateLimit float64 `yaml:"backend_rate_limit" env:"BACKEND_RATE_LIMIT"`
	// 熔断连续失败阈值
	BreakerFailures int `yaml:"breaker_failures" env:"BREAKER_FAILURES"`
	// 熔断恢复窗口
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"BREAKER_COOLDOWN"`
	// 结果缓存
	CacheEnabled bool          `yaml:"cache_enabled" env:"CACHE_ENABLED"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// AnalyzerConfig 查询分析配置
type AnalyzerConfig struct {
	// 实体抽取模型超时
	ExtractorTimeout time.Duration `yaml:"extractor_timeout" env:"EXTRACTOR_TIMEOUT"`
	// 是否用知识图谱校验实体存在性
	ValidateEntities bool `yaml:"validate_entities" env:"VALIDATE_ENTITIES"`
	// 意图分类置信度下限，低于则回退 general
	IntentThreshold float64 `yaml:"intent_threshold" env:"INTENT_THRESHOLD"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// REST 端口
	Port int `yaml:"port" env:"PORT"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 默认集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Neo4jConfig Neo4j 知识图谱配置
type Neo4jConfig struct {
	// 连接 URI，如 bolt://localhost:7687
	URI string `yaml:"uri" env:"URI"`
	// 用户名
	Username string `yaml:"username" env:"USERNAME"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 图遍历最大深度
	MaxDepth int `yaml:"max_depth" env:"MAX_DEPTH"`
}

// EmbeddingConfig 嵌入服务配置（OpenAI 兼容接口）
type EmbeddingConfig struct {
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RerankConfig 交叉编码重排服务配置
type RerankConfig struct {
	// 提供者: bge, cohere
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MEDRAG",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Retrieval.FusionK <= 0 {
		errs = append(errs, "fusion_k must be positive")
	}
	if c.Retrieval.FusedLimitFactor <= 0 {
		errs = append(errs, "fused_limit_factor must be positive")
	}
	if c.Retrieval.PerBackendLimit <= 0 {
		errs = append(errs, "per_backend_limit must be positive")
	}
	if c.Retrieval.BackendTimeout <= 0 || c.Retrieval.QueryTimeout <= 0 {
		errs = append(errs, "backend_timeout and query_timeout must be positive")
	}
	if w := c.Retrieval.VectorWeight + c.Retrieval.LexicalWeight +
		c.Retrieval.SemanticWeight + c.Retrieval.GraphWeight; w <= 0 {
		errs = append(errs, "backend weights must sum to a positive value")
	}
	if c.Retrieval.CrossWeight < 0 || c.Retrieval.RelevanceWeight < 0 {
		errs = append(errs, "blend weights must be non-negative")
	}
	if c.Retrieval.DedupThreshold <= 0 || c.Retrieval.DedupThreshold > 1 {
		errs = append(errs, "dedup_threshold must be in (0, 1]")
	}
	if c.Retrieval.MinRelevance < 0 || c.Retrieval.MinRelevance >= 1 {
		errs = append(errs, "min_relevance must be in [0, 1)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// NormalizedWeights 返回归一化后的各路后端权重，顺序为
// vector, lexical, semantic, graph。权重和为 0 时返回等权。
func (r *RetrievalConfig) NormalizedWeights() (vector, lexical, semantic, graph float64) {
	total := r.VectorWeight + r.LexicalWeight + r.SemanticWeight + r.GraphWeight
	if total <= 0 {
		return 0.25, 0.25, 0.25, 0.25
	}
	return r.VectorWeight / total, r.LexicalWeight / total,
		r.SemanticWeight / total, r.GraphWeight / total
}
