package retrieval

// QQ 意图权重档案 QQ

// intentProfiles 按意图覆盖各路后端的融合权重。
// 未列出的意图使用配置的基础权重。
var intentProfiles = map[Intent]map[BackendTag]float64{
	IntentDiseaseInfo: {
		BackendVector:   0.35,
		BackendGraph:    0.35,
		BackendLexical:  0.20,
		BackendSemantic: 0.10,
	},
	IntentSymptomDiagnosis: {
		BackendGraph:    0.40,
		BackendVector:   0.30,
		BackendLexical:  0.20,
		BackendSemantic: 0.10,
	},
	IntentDrugInfo: {
		BackendLexical:  0.40,
		BackendGraph:    0.30,
		BackendVector:   0.20,
		BackendSemantic: 0.10,
	},
	IntentDrugInteraction: {
		BackendLexical:  0.35,
		BackendGraph:    0.35,
		BackendVector:   0.20,
		BackendSemantic: 0.10,
	},
	IntentExaminationAdvice: {
		BackendGraph:    0.40,
		BackendVector:   0.30,
		BackendLexical:  0.20,
		BackendSemantic: 0.10,
	},
}

// WeightsFor 返回给定意图的归一化后端权重。意图无专属档案
// （treatment_plan、general 或未知意图）时返回归一化的基础权重。
func WeightsFor(intent Intent, base map[BackendTag]float64) map[BackendTag]float64 {
	profile, ok := intentProfiles[intent]
	if !ok {
		profile = base
	}
	return normalizeWeights(profile)
}

// normalizeWeights 归一化权重使其和为 1，全零时返回等权
func normalizeWeights(weights map[BackendTag]float64) map[BackendTag]float64 {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	out := make(map[BackendTag]float64, len(backendOrder))
	if total <= 0 {
		for _, tag := range backendOrder {
			out[tag] = 1.0 / float64(len(backendOrder))
		}
		return out
	}

	for tag, w := range weights {
		if w > 0 {
			out[tag] = w / total
		}
	}
	return out
}
