// Package graph 提供医疗知识图谱（Neo4j）的类型化查询.
//
// 图谱模式:
//
//	(Disease)-[:HAS_SYMPTOM]->(Symptom)
//	(Disease)-[:TREATED_BY]->(Drug)
//	(Disease)-[:NEEDS_EXAMINATION]->(Examination)
//
// 客户端按中心实体类型选择查询形状，并把结果组装为
// 可直接参与召回排序的中文事实文本。
package graph
