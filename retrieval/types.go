package retrieval

import (
	"time"
)

// QQ 查询类型 QQ

// Intent 表示查询意图分类标签
type Intent string

const (
	IntentDiseaseInfo       Intent = "disease_info"       // 疾病信息
	IntentSymptomDiagnosis  Intent = "symptom_diagnosis"  // 症状诊断
	IntentDrugInfo          Intent = "drug_info"          // 药品信息
	IntentDrugInteraction   Intent = "drug_interaction"   // 药物相互作用
	IntentExaminationAdvice Intent = "examination_advice" // 检查建议
	IntentTreatmentPlan     Intent = "treatment_plan"     // 治疗方案
	IntentGeneral           Intent = "general"            // 通用
)

// intentOrder 是意图的声明顺序，用于得分相同时的确定性裁决
var intentOrder = []Intent{
	IntentDiseaseInfo,
	IntentSymptomDiagnosis,
	IntentDrugInfo,
	IntentDrugInteraction,
	IntentExaminationAdvice,
	IntentTreatmentPlan,
	IntentGeneral,
}

// EntityType 表示医疗实体类型
type EntityType string

const (
	EntityDisease     EntityType = "disease"     // 疾病
	EntitySymptom     EntityType = "symptom"     // 症状
	EntityDrug        EntityType = "drug"        // 药品
	EntityExamination EntityType = "examination" // 检查项目
	EntityDepartment  EntityType = "department"  // 科室
)

// Entity 表示从查询中识别出的医疗领域概念
type Entity struct {
	Type EntityType `json:"type"`
	Name string     `json:"name"` // Canonical name
}

// Query 表示一次检索请求的不可变查询对象
type Query struct {
	Text    string            `json:"text"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters,omitempty"` // e.g. department constraint
}

// Analysis 表示查询分析结果（实体 + 意图 + 置信度）
type Analysis struct {
	Entities   []Entity `json:"entities"`
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
}

// QQ 候选类型 QQ

// BackendTag 标识一路检索后端
type BackendTag string

const (
	BackendVector   BackendTag = "vector"   // Dense vector similarity
	BackendLexical  BackendTag = "lexical"  // BM25-style term frequency
	BackendSemantic BackendTag = "semantic" // Query-expanded secondary pass
	BackendGraph    BackendTag = "graph"    // Knowledge-graph traversal
)

// backendOrder 后端的固定声明顺序
var backendOrder = []BackendTag{BackendVector, BackendLexical, BackendSemantic, BackendGraph}

// Candidate 表示单路后端的一条检索命中
type Candidate struct {
	ID       string     `json:"id"`
	Backend  BackendTag `json:"backend"`
	Text     string     `json:"text"`
	Source   string     `json:"source,omitempty"` // Document / node origin
	Rank     int        `json:"rank"`             // 1-based backend-local rank
	RawScore float64    `json:"raw_score"`
	Relation string     `json:"relation,omitempty"` // Graph relation path, graph backend only
}

// FusedCandidate 表示融合后的候选，可能合并了多路后端的同一命中
type FusedCandidate struct {
	ID           string             `json:"id"`
	Text         string             `json:"text"`
	Source       string             `json:"source,omitempty"`
	Backends     []BackendTag       `json:"backends"`      // Union of contributing backends
	BackendRanks map[BackendTag]int `json:"backend_ranks"` // Per-backend 1-based rank
	FusedScore   float64            `json:"fused_score"`
	FusedRank    int                `json:"fused_rank"` // 1-based
	insertOrder  int                // First-seen order, for deterministic tie-break
}

// BestRank 返回所有贡献后端中最优（最小）的单路排名
func (f *FusedCandidate) BestRank() int {
	best := 0
	for _, r := range f.BackendRanks {
		if best == 0 || r < best {
			best = r
		}
	}
	return best
}

// ScoredCandidate 表示带相关性概率的融合候选
type ScoredCandidate struct {
	FusedCandidate
	Relevance  float64 `json:"relevance"`   // Calibrated probability in [0,1]
	FinalScore float64 `json:"final_score"` // Set by the reranker
}

// RankedResult 表示最终输出的一条排序结果
type RankedResult struct {
	Rank     int          `json:"rank"` // 1-based
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Source   string       `json:"source,omitempty"`
	Backends []BackendTag `json:"backends"`
	Score    float64      `json:"score"`
	Entities []Entity     `json:"entities,omitempty"` // Matched query entities
}

// QQ 请求 / 响应类型 QQ

// Status 表示检索响应状态
type Status string

const (
	StatusOK       Status = "ok"       // All stages healthy
	StatusDegraded Status = "degraded" // Partial backend/model failure, result still usable
	StatusEmpty    Status = "empty"    // No results (including all backends failed)
)

// RetrieveRequest 表示调用方的检索请求
type RetrieveRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters,omitempty"`
}

// BackendStat 表示单路后端的本次调用统计
type BackendStat struct {
	Backend   BackendTag    `json:"backend"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	Available bool          `json:"available"`
	Weight    float64       `json:"weight"`
}

// RetrieveResponse 表示检索响应
type RetrieveResponse struct {
	Results  []RankedResult `json:"results"`
	Intent   Intent         `json:"intent"`
	Entities []Entity       `json:"entities,omitempty"`
	Status   Status         `json:"status"`
	Stats    []BackendStat  `json:"stats,omitempty"`
	Cached   bool           `json:"cached,omitempty"`
	Duration time.Duration  `json:"duration"`
}
