package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// QQ 词法后端 QQ

// IndexDocument 表示写入词法索引的一篇文档
type IndexDocument struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// LexicalBackendConfig 配置 BM25 词法检索
type LexicalBackendConfig struct {
	// BM25 饱和参数
	K1 float64 `json:"k1" yaml:"k1"`
	// BM25 长度归一化参数
	B float64 `json:"b" yaml:"b"`
}

// DefaultLexicalBackendConfig 返回标准 BM25 参数
func DefaultLexicalBackendConfig() LexicalBackendConfig {
	return LexicalBackendConfig{K1: 1.5, B: 0.75}
}

type lexicalDoc struct {
	doc    IndexDocument
	length int
	freq   map[string]int
}

// LexicalBackend 在内存倒排索引上实现 BM25 检索
type LexicalBackend struct {
	cfg       LexicalBackendConfig
	tokenizer Tokenizer
	logger    *zap.Logger

	mu        sync.RWMutex
	docs      []lexicalDoc
	docFreq   map[string]int
	totalLen  int
}

// NewLexicalBackend 创建词法检索后端，tokenizer 为 nil 时使用中文单字词元器
func NewLexicalBackend(cfg LexicalBackendConfig, tokenizer Tokenizer, logger *zap.Logger) *LexicalBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenizer == nil {
		tokenizer = HanTokenizer{}
	}
	if cfg.K1 <= 0 {
		cfg.K1 = 1.5
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = 0.75
	}
	return &LexicalBackend{
		cfg:       cfg,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("backend", string(BackendLexical))),
		docFreq:   make(map[string]int),
	}
}

// Tag 返回后端标识
func (b *LexicalBackend) Tag() BackendTag { return BackendLexical }

// AddDocuments 向索引追加文档
func (b *LexicalBackend) AddDocuments(docs []IndexDocument) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, doc := range docs {
		tokens := b.tokenizer.Tokens(doc.Text)
		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}
		for t := range freq {
			b.docFreq[t]++
		}
		b.docs = append(b.docs, lexicalDoc{doc: doc, length: len(tokens), freq: freq})
		b.totalLen += len(tokens)
	}

	b.logger.Debug("lexical index updated",
		zap.Int("added", len(docs)),
		zap.Int("total", len(b.docs)))
}

// Len 返回已索引文档数
func (b *LexicalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

// Search 按 BM25 打分返回得分为正的文档
func (b *LexicalBackend) Search(_ context.Context, input SearchInput) ([]Candidate, error) {
	queryTokens := b.tokenizer.Tokens(input.Query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(b.totalLen) / float64(n)

	type scoredDoc struct {
		idx   int
		score float64
	}
	scored := make([]scoredDoc, 0, n)

	for i, doc := range b.docs {
		var score float64
		for _, term := range queryTokens {
			tf := doc.freq[term]
			if tf == 0 {
				continue
			}
			df := b.docFreq[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := b.cfg.K1 * (1 - b.cfg.B + b.cfg.B*float64(doc.length)/avgLen)
			score += idf * float64(tf) * (b.cfg.K1 + 1) / (float64(tf) + norm)
		}
		if score > 0 {
			scored = append(scored, scoredDoc{idx: i, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	limit := input.Limit
	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}

	candidates := make([]Candidate, 0, limit)
	for i := 0; i < limit; i++ {
		doc := b.docs[scored[i].idx].doc
		candidates = append(candidates, Candidate{
			ID:       doc.ID,
			Backend:  BackendLexical,
			Text:     doc.Text,
			Source:   doc.Source,
			Rank:     i + 1,
			RawScore: scored[i].score,
		})
	}
	return candidates, nil
}
