package retrieval

import (
	"strings"
	"unicode"
)

// QQ 文本工具 QQ

// tokenize 把文本切分为小写词元。拉丁字母与数字按连续序列成词，
// 中文按单字成词，其余字符作为分隔符。
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// tokenSet 返回词元集合
func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// lexicalOverlap 返回查询词元被候选文本覆盖的比例 [0,1]
func lexicalOverlap(query, text string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	querySet := tokenSet(queryTokens)
	textSet := tokenSet(tokenize(text))

	matched := 0
	for t := range querySet {
		if textSet[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(querySet))
}

// jaccardSimilarity 返回两段文本词元集合的 Jaccard 相似度 [0,1]
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(tokenize(a))
	setB := tokenSet(tokenize(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// containsEntity 返回候选文本是否包含实体名
func containsEntity(text string, entity Entity) bool {
	return strings.Contains(text, entity.Name)
}
