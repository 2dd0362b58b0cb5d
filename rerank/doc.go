// Copyright (c) MedRAG Authors.
// Licensed under the MIT License.

/*
Package rerank 提供统一的交叉编码重排提供者接口与实现。

# 提供者

  - BGEProvider    — TEI 风格推理服务上的 BGE 交叉编码模型
    （默认 BAAI/bge-reranker-base），检索管线的默认提供者
  - CohereProvider — Cohere /v2/rerank API

# 使用方法

	provider := rerank.NewBGEProvider(rerank.DefaultBGEConfig())
	results, err := provider.RerankSimple(ctx, query, texts, 10)

所有提供者返回 0-1 归一化的相关分，Index 指向输入文档的原始位置。
*/
package rerank
