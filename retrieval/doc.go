// Copyright (c) MedRAG Authors.
// Licensed under the MIT License.

/*
Package retrieval 实现 MedRAG 的检索融合与重排核心管线。

# 管线结构

每次查询按固定顺序经过六个阶段，数据严格单向流动，阶段之间
无共享可变状态：

	Analyzer → Coordinator → Fuser → Scorer → Reranker → Assembler

 1. Analyzer    — 实体抽取（模型优先，字典回退）与意图分类
 2. Coordinator — 并发分发到 vector/lexical/semantic/graph 四路后端
 3. Fuser       — 加权 Reciprocal Rank Fusion 合并多路排名
 4. Scorer      — 特征向量 + 二分类器产出校准相关性概率
 5. Reranker    — 交叉编码模型与相关性概率按权重混合重排
 6. Assembler   — 近重复合并、截断 top_k、附加溯源信息

Engine 将六个阶段组装为 Retrieve 操作，并提供整体超时、结果缓存
与 ok/degraded/empty 状态语义。

# 降级策略

任何单路后端或模型失败都不会使查询整体失败：后端失败被标记为
不可用并从融合中剔除；模型失败走确定性回退路径；全部后端失败
返回 empty 状态而非错误。唯一直接拒绝的请求是非法查询
（空文本或 top_k <= 0）。

# 使用方法

	engine, err := retrieval.NewEngine(cfg, deps, logger)
	resp, err := engine.Retrieve(ctx, retrieval.RetrieveRequest{
	    Query: "高血压的症状",
	    TopK:  5,
	})
*/
package retrieval
