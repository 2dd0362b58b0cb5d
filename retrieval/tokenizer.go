package retrieval

import (
	"fmt"
	"strconv"

	"github.com/pkoukk/tiktoken-go"
)

// QQ 词元化 QQ

// Tokenizer 把文本切分为可比较的词元序列
type Tokenizer interface {
	Tokens(text string) []string
}

// HanTokenizer 是默认词元器：中文单字 + 拉丁词，小写化
type HanTokenizer struct{}

// Tokens 实现 Tokenizer
func (HanTokenizer) Tokens(text string) []string {
	return tokenize(text)
}

// BPETokenizer 基于 tiktoken BPE 编码产生词元。
// 子词粒度比单字更能区分药名等长实体，代价是需要编码数据。
type BPETokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewBPETokenizer 创建 BPE 词元器，model 如 "gpt-4o"
func NewBPETokenizer(model string) (*BPETokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("create tiktoken encoding: %w", err)
	}
	return &BPETokenizer{enc: enc}, nil
}

// Tokens 返回 token ID 的字符串形式，仅用于词频统计
func (t *BPETokenizer) Tokens(text string) []string {
	ids := t.enc.Encode(text, nil, nil)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}
