package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	entities   []Entity
	confidence float64
	err        error
}

func (s *stubExtractor) Extract(_ context.Context, _ string) ([]Entity, float64, error) {
	return s.entities, s.confidence, s.err
}

type stubValidator struct {
	known map[string]bool
	err   error
}

func (s *stubValidator) Exists(_ context.Context, e Entity) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.known[e.Name], nil
}

func TestAnalyzer_ModelExtraction(t *testing.T) {
	extractor := &stubExtractor{
		entities:   []Entity{{Type: EntityDisease, Name: "高血压"}},
		confidence: 0.9,
	}
	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), extractor, nil, nil)

	analysis := analyzer.Analyze(context.Background(), "高血压的症状有哪些")
	require.Len(t, analysis.Entities, 1)
	assert.Equal(t, "高血压", analysis.Entities[0].Name)
	assert.Equal(t, IntentDiseaseInfo, analysis.Intent)
	assert.Greater(t, analysis.Confidence, 0.0)
}

func TestAnalyzer_FallbackOnModelFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("model unavailable")}
	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), extractor, nil, nil)

	analysis := analyzer.Analyze(context.Background(), "高血压的症状")
	// fallback never errors and reports zero confidence
	assert.Equal(t, 0.0, analysis.Confidence)
	names := make([]string, 0, len(analysis.Entities))
	for _, e := range analysis.Entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "高血压")
}

func TestAnalyzer_NoExtractorUsesPatterns(t *testing.T) {
	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), nil, nil, nil)

	analysis := analyzer.Analyze(context.Background(), "阿司匹林和布洛芬能一起吃吗")
	assert.Equal(t, IntentDrugInteraction, analysis.Intent)

	var drugs []string
	for _, e := range analysis.Entities {
		if e.Type == EntityDrug {
			drugs = append(drugs, e.Name)
		}
	}
	assert.Contains(t, drugs, "阿司匹林")
	assert.Contains(t, drugs, "布洛芬")
}

func TestAnalyzer_GraphValidationDropsUnknown(t *testing.T) {
	extractor := &stubExtractor{
		entities: []Entity{
			{Type: EntityDisease, Name: "高血压"},
			{Type: EntityDisease, Name: "不存在的病"},
		},
		confidence: 0.8,
	}
	validator := &stubValidator{known: map[string]bool{"高血压": true}}

	cfg := DefaultAnalyzerConfig()
	cfg.ValidateEntities = true
	analyzer := NewAnalyzer(cfg, extractor, validator, nil)

	analysis := analyzer.Analyze(context.Background(), "高血压")
	require.Len(t, analysis.Entities, 1)
	assert.Equal(t, "高血压", analysis.Entities[0].Name)
}

func TestAnalyzer_ValidationErrorIsNotFatal(t *testing.T) {
	extractor := &stubExtractor{
		entities:   []Entity{{Type: EntityDisease, Name: "糖尿病"}},
		confidence: 0.8,
	}
	validator := &stubValidator{err: errors.New("graph down")}

	cfg := DefaultAnalyzerConfig()
	cfg.ValidateEntities = true
	analyzer := NewAnalyzer(cfg, extractor, validator, nil)

	analysis := analyzer.Analyze(context.Background(), "糖尿病")
	// graph unreachable keeps the entity instead of dropping it
	require.Len(t, analysis.Entities, 1)
}

func TestClassifyIntent_Taxonomy(t *testing.T) {
	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), nil, nil, nil)

	tests := []struct {
		query string
		want  Intent
	}{
		{"什么是高血压", IntentDiseaseInfo},
		{"头晕恶心怎么办", IntentSymptomDiagnosis},
		{"布洛芬的副作用", IntentDrugInfo},
		{"阿司匹林和华法林的相互作用", IntentDrugInteraction},
		{"体检需要做什么检查", IntentExaminationAdvice},
		{"糖尿病的治疗方案", IntentTreatmentPlan},
		{"你好帮个忙", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			intent, _ := analyzer.classifyIntent(tt.query, nil)
			assert.Equal(t, tt.want, intent)
		})
	}
}

func TestClassifyIntent_EntityAdjustment(t *testing.T) {
	analyzer := NewAnalyzer(DefaultAnalyzerConfig(), nil, nil, nil)

	// no pattern matches, symptom entity present without disease
	intent, _ := analyzer.classifyIntent("最近总是头晕",
		[]Entity{{Type: EntitySymptom, Name: "头晕"}})
	assert.Equal(t, IntentSymptomDiagnosis, intent)
}

func TestFallbackExtract_SuffixPatterns(t *testing.T) {
	entities := fallbackExtract("肺炎需要做CT检查吗？呼吸内科")

	byType := make(map[EntityType][]string)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e.Name)
	}
	assert.Contains(t, byType[EntityDisease], "肺炎")
	assert.NotEmpty(t, byType[EntityExamination])
	assert.Contains(t, byType[EntityDepartment], "呼吸内科")
}

func TestDedupEntities(t *testing.T) {
	in := []Entity{
		{Type: EntityDisease, Name: "高血压"},
		{Type: EntityDisease, Name: "高血压"},
		{Type: EntitySymptom, Name: "高血压"}, // same name, different type survives
	}
	out := dedupEntities(in)
	assert.Len(t, out, 2)
}
