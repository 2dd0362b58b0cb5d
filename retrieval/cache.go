package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yilianai/medrag/internal/cache"
)

// QQ 结果缓存 QQ

// JSONCache 是结果缓存的存储抽象，由 internal/cache.Manager 实现
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ResultCache 缓存完整的检索响应。键由归一化查询、top_k 与过滤条件
// 推导，相同输入的响应一致，写竞争无害。
type ResultCache struct {
	store  JSONCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache 创建结果缓存
func NewResultCache(store JSONCache, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "result_cache")),
	}
}

// Key 返回请求的缓存键
func (c *ResultCache) Key(req RetrieveRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Query))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(req.TopK))

	if len(req.Filters) > 0 {
		keys := make([]string, 0, len(req.Filters))
		for k := range req.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte('|')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(req.Filters[k])
		}
	}

	sum := sha1.Sum([]byte(b.String()))
	return "medrag:result:" + hex.EncodeToString(sum[:])
}

// Get 读取缓存的响应，未命中或缓存异常返回 nil
func (c *ResultCache) Get(ctx context.Context, req RetrieveRequest) *RetrieveResponse {
	var resp RetrieveResponse
	err := c.store.GetJSON(ctx, c.Key(req), &resp)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			c.logger.Warn("result cache read failed", zap.Error(err))
		}
		return nil
	}
	return &resp
}

// Set 写入响应，缓存异常只记日志
func (c *ResultCache) Set(ctx context.Context, req RetrieveRequest, resp *RetrieveResponse) {
	if err := c.store.SetJSON(ctx, c.Key(req), resp, c.ttl); err != nil {
		c.logger.Warn("result cache write failed", zap.Error(err))
	}
}
