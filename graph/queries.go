package graph

// 图谱节点标签
const (
	LabelDisease     = "Disease"
	LabelSymptom     = "Symptom"
	LabelDrug        = "Drug"
	LabelExamination = "Examination"
	LabelDepartment  = "Department"
)

// validLabels 限定可查询的标签集合，防止拼接任意标签
var validLabels = map[string]bool{
	LabelDisease:     true,
	LabelSymptom:     true,
	LabelDrug:        true,
	LabelExamination: true,
	LabelDepartment:  true,
}

// ValidLabel 判断标签是否属于图谱模式
func ValidLabel(label string) bool {
	return validLabels[label]
}

// existsQuery 构建实体存在性检查查询
func existsQuery(label, name string) (string, map[string]any) {
	if !validLabels[label] {
		label = LabelDisease
	}
	cypher := "MATCH (n:" + label + ") WHERE n.name = $name OR n.name CONTAINS $name RETURN count(n) as count"
	return cypher, map[string]any{"name": name}
}

// diseaseProfileQuery 构建疾病画像查询：症状、药物、检查项目
func diseaseProfileQuery(disease string) (string, map[string]any) {
	cypher := `MATCH (d:Disease {name: $disease_name})
OPTIONAL MATCH (d)-[:HAS_SYMPTOM]->(s:Symptom)
OPTIONAL MATCH (d)-[:TREATED_BY]->(dr:Drug)
OPTIONAL MATCH (d)-[:NEEDS_EXAMINATION]->(e:Examination)
RETURN d.name as disease,
       collect(DISTINCT s.name) as symptoms,
       collect(DISTINCT dr.name) as drugs,
       collect(DISTINCT e.name) as examinations`
	return cypher, map[string]any{"disease_name": disease}
}

// diseasesBySymptomQuery 构建症状反查疾病查询
func diseasesBySymptomQuery(symptom string) (string, map[string]any) {
	cypher := `MATCH (d:Disease)-[:HAS_SYMPTOM]->(s:Symptom {name: $symptom_name})
RETURN d.name as disease
LIMIT 10`
	return cypher, map[string]any{"symptom_name": symptom}
}

// diseasesByDrugQuery 构建药物反查适应疾病查询
func diseasesByDrugQuery(drug string) (string, map[string]any) {
	cypher := `MATCH (dr:Drug {name: $drug_name})
OPTIONAL MATCH (d:Disease)-[:TREATED_BY]->(dr)
RETURN dr.name as drug, collect(DISTINCT d.name) as diseases`
	return cypher, map[string]any{"drug_name": drug}
}
