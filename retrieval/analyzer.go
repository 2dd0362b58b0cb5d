package retrieval

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QQ 外部模型接口 QQ

// EntityExtractor 表示模型驱动的实体抽取服务（通常由 LLM 实现）
type EntityExtractor interface {
	// Extract 从文本中抽取医疗实体并给出置信度
	Extract(ctx context.Context, text string) ([]Entity, float64, error)
}

// EntityValidator 校验实体在知识图谱中的存在性
type EntityValidator interface {
	// Exists 返回实体是否存在于图谱中
	Exists(ctx context.Context, entity Entity) (bool, error)
}

// QQ 查询分析器 QQ

// AnalyzerConfig 配置查询分析器
type AnalyzerConfig struct {
	// 模型抽取超时
	ExtractorTimeout time.Duration `json:"extractor_timeout"`
	// 是否用图谱校验实体存在性
	ValidateEntities bool `json:"validate_entities"`
	// 意图置信度下限，低于则回退 general
	IntentThreshold float64 `json:"intent_threshold"`
}

// DefaultAnalyzerConfig 返回默认分析器配置
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		ExtractorTimeout: 3 * time.Second,
		ValidateEntities: false,
		IntentThreshold:  0.3,
	}
}

// Analyzer 对查询做实体抽取与意图分类
type Analyzer struct {
	config    AnalyzerConfig
	extractor EntityExtractor
	validator EntityValidator
	logger    *zap.Logger
}

// NewAnalyzer 创建新的查询分析器。extractor 与 validator 均可为 nil，
// 此时只使用确定性的字典/模式回退路径。
func NewAnalyzer(config AnalyzerConfig, extractor EntityExtractor, validator EntityValidator, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		config:    config,
		extractor: extractor,
		validator: validator,
		logger:    logger.With(zap.String("component", "analyzer")),
	}
}

// Analyze 分析查询文本，返回实体集合、意图与置信度。
// 模型抽取失败时回退到字典匹配，置信度记 0，从不返回错误。
func (a *Analyzer) Analyze(ctx context.Context, text string) *Analysis {
	entities, confidence := a.extractEntities(ctx, text)

	if a.config.ValidateEntities && a.validator != nil {
		entities = a.validateEntities(ctx, entities)
	}

	intent, intentConf := a.classifyIntent(text, entities)

	return &Analysis{
		Entities:   entities,
		Intent:     intent,
		Confidence: minFloat(confidence, intentConf),
	}
}

// extractEntities 先走模型抽取，失败时回退到模式匹配
func (a *Analyzer) extractEntities(ctx context.Context, text string) ([]Entity, float64) {
	if a.extractor != nil {
		extractCtx, cancel := context.WithTimeout(ctx, a.config.ExtractorTimeout)
		defer cancel()

		entities, confidence, err := a.extractor.Extract(extractCtx, text)
		if err == nil {
			return dedupEntities(entities), confidence
		}
		a.logger.Warn("model extraction failed, falling back to pattern matching",
			zap.Error(err))
	}

	// Fallback never errors and reports zero confidence.
	return fallbackExtract(text), 0
}

// validateEntities 逐个校验实体存在性，无效实体被丢弃，校验失败不致命
func (a *Analyzer) validateEntities(ctx context.Context, entities []Entity) []Entity {
	valid := entities[:0:0]
	for _, e := range entities {
		exists, err := a.validator.Exists(ctx, e)
		if err != nil {
			// Graph unreachable: keep the entity rather than dropping it.
			a.logger.Warn("entity validation unavailable",
				zap.String("entity", e.Name), zap.Error(err))
			valid = append(valid, e)
			continue
		}
		if exists {
			valid = append(valid, e)
		}
	}
	return valid
}

// QQ 回退实体抽取 QQ

// 中文医疗实体后缀模式
var entityPatterns = []struct {
	entityType EntityType
	pattern    *regexp.Regexp
}{
	{EntityDisease, regexp.MustCompile(`[\p{Han}]+(?:病|症|炎|癌|瘤|症候群)`)},
	{EntityDisease, regexp.MustCompile(`高血压|糖尿病|心脏病|感冒|发烧`)},
	{EntitySymptom, regexp.MustCompile(`[\p{Han}]*(?:痛|疼|发热|咳嗽|呕吐|腹泻|头晕|乏力)`)},
	{EntityDrug, regexp.MustCompile(`[\p{Han}]+(?:药|片|胶囊|注射液|颗粒)`)},
	{EntityDrug, regexp.MustCompile(`阿司匹林|布洛芬|青霉素|头孢[\p{Han}]*`)},
	{EntityExamination, regexp.MustCompile(`[\p{Han}]*(?:检查|化验|检测)|CT|MRI|X光|B超|血常规|尿常规|心电图`)},
	{EntityDepartment, regexp.MustCompile(`[\p{Han}]+科`)},
}

// fallbackExtract 用后缀模式从文本中识别医疗实体
func fallbackExtract(text string) []Entity {
	var entities []Entity
	for _, ep := range entityPatterns {
		for _, match := range ep.pattern.FindAllString(text, -1) {
			match = strings.TrimSpace(match)
			if match == "" {
				continue
			}
			entities = append(entities, Entity{Type: ep.entityType, Name: match})
		}
	}
	return dedupEntities(entities)
}

// dedupEntities 按 (type, name) 去重，保持首次出现顺序
func dedupEntities(entities []Entity) []Entity {
	seen := make(map[Entity]bool, len(entities))
	out := entities[:0:0]
	for _, e := range entities {
		if e.Name == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// QQ 意图分类 QQ

// 每个意图的识别模式，得分相同时按意图声明顺序裁决
var intentPatterns = map[Intent][]*regexp.Regexp{
	IntentDiseaseInfo: {
		regexp.MustCompile(`什么是.+`),
		regexp.MustCompile(`.+是什么`),
		regexp.MustCompile(`.+的介绍`),
		regexp.MustCompile(`了解.+`),
		regexp.MustCompile(`.+的症状`),
	},
	IntentSymptomDiagnosis: {
		regexp.MustCompile(`.+可能是什么病`),
		regexp.MustCompile(`.+是什么原因`),
		regexp.MustCompile(`.+会不会是.+`),
		regexp.MustCompile(`.+怎么办`),
	},
	IntentDrugInfo: {
		regexp.MustCompile(`.+的作用`),
		regexp.MustCompile(`.+的副作用`),
		regexp.MustCompile(`.+怎么吃`),
		regexp.MustCompile(`.+的用法`),
		regexp.MustCompile(`.+的剂量`),
	},
	IntentDrugInteraction: {
		regexp.MustCompile(`.+和.+能一起吃`),
		regexp.MustCompile(`.+和.+的相互作用`),
		regexp.MustCompile(`.+不能和.+一起`),
		regexp.MustCompile(`药物相互作用`),
	},
	IntentExaminationAdvice: {
		regexp.MustCompile(`需要做什么检查`),
		regexp.MustCompile(`.+检查什么`),
		regexp.MustCompile(`检查项目`),
		regexp.MustCompile(`化验什么`),
	},
	IntentTreatmentPlan: {
		regexp.MustCompile(`.+的治疗方案`),
		regexp.MustCompile(`.+怎么治疗`),
		regexp.MustCompile(`.+的治疗方法`),
		regexp.MustCompile(`.+的用药`),
		regexp.MustCompile(`.+的护理`),
	},
	IntentGeneral: {
		regexp.MustCompile(`咨询`),
		regexp.MustCompile(`问一下`),
		regexp.MustCompile(`请问`),
	},
}

// classifyIntent 基于模式计分选择意图，再按实体类型微调
func (a *Analyzer) classifyIntent(text string, entities []Entity) (Intent, float64) {
	scores := make(map[Intent]int, len(intentOrder))
	for intent, patterns := range intentPatterns {
		for _, p := range patterns {
			if p.MatchString(text) {
				scores[intent]++
			}
		}
	}

	// Declaration order resolves ties deterministically.
	best := IntentGeneral
	bestScore := 0
	for _, intent := range intentOrder {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}

	if bestScore == 0 {
		best = adjustByEntities(IntentGeneral, entities)
	}

	confidence := intentConfidence(bestScore, len(entities))
	if confidence < a.config.IntentThreshold {
		return IntentGeneral, confidence
	}
	return best, confidence
}

// adjustByEntities 未命中任何模式时按实体类型推断意图
func adjustByEntities(intent Intent, entities []Entity) Intent {
	if intent != IntentGeneral {
		return intent
	}

	var hasDisease, hasSymptom, hasDrug bool
	for _, e := range entities {
		switch e.Type {
		case EntityDisease:
			hasDisease = true
		case EntitySymptom:
			hasSymptom = true
		case EntityDrug:
			hasDrug = true
		}
	}

	switch {
	case hasSymptom && !hasDisease:
		return IntentSymptomDiagnosis
	case hasDrug:
		return IntentDrugInfo
	case hasDisease:
		return IntentDiseaseInfo
	}
	return IntentGeneral
}

// intentConfidence 由模式命中数与实体数计算置信度
func intentConfidence(patternMatches, entityCount int) float64 {
	confidence := 0.5
	if patternMatches > 0 {
		confidence += minFloat(float64(patternMatches)*0.1, 0.3)
	}
	if entityCount > 0 {
		confidence += minFloat(float64(entityCount)*0.05, 0.2)
	}
	return minFloat(confidence, 1.0)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
