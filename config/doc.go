// Copyright (c) MedRAG Authors.
// Licensed under the MIT License.

/*
Package config 提供 MedRAG 检索引擎的统一配置管理。

# 概述

配置按「默认值 → YAML 文件 → 环境变量」三层优先级合并，环境变量
采用 MEDRAG_ 前缀加节名的命名规则，例如：

	MEDRAG_RETRIEVAL_FUSION_K=60
	MEDRAG_REDIS_ADDR=localhost:6379
	MEDRAG_RERANK_MODEL=BAAI/bge-reranker-base

# 使用方法

	cfg, err := config.NewLoader().
	    WithConfigPath("medrag.yaml").
	    WithEnvPrefix("MEDRAG").
	    WithValidator(func(c *config.Config) error { return c.Validate() }).
	    Load()

# 配置分节

  - Retrieval — 融合常数、各路后端权重、混合权重、超时与上限
  - Analyzer  — 实体抽取与意图分类参数
  - Redis     — 结果缓存
  - Qdrant    — 向量存储
  - Neo4j     — 医疗知识图谱
  - Embedding — 嵌入服务（OpenAI 兼容接口）
  - Rerank    — 交叉编码重排服务
  - Log       — zap 日志
  - Telemetry — OpenTelemetry 导出
*/
package config
