// Copyright (c) MedRAG Authors.
// Licensed under the MIT License.

/*
Package types 提供 MedRAG 检索引擎的全局共享类型定义。

# 概述

types 是引擎最底层的公共包，不依赖任何内部包，为 retrieval、rerank、
graph 等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含后端标记与 Retryable 标记

# 错误分类

  - ErrInvalidQuery       — 非法请求（空查询、top_k <= 0），唯一直接上抛的错误
  - ErrBackendUnavailable — 单路检索后端超时或异常，局部恢复
  - ErrAllBackendsFailed  — 全部后端失败，转换为 empty 状态而非异常
  - ErrModelUnavailable   — 模型不可用（实体抽取 / 相关性 / 重排），走降级路径
  - ErrTimeout            — 整体查询超时
*/
package types
