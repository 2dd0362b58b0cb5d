package retrieval

import (
	"context"
	"fmt"
	"sync"
)

// QQ 后端能力接口 QQ

// SearchInput 表示一次后端检索的输入
type SearchInput struct {
	Query    string            `json:"query"`
	Entities []Entity          `json:"entities,omitempty"`
	Intent   Intent            `json:"intent,omitempty"`
	Limit    int               `json:"limit"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// Backend 是所有检索后端实现的统一能力接口。
// 实现必须返回按相关性降序、Rank 从 1 开始的候选列表，
// 长度不超过 input.Limit。
type Backend interface {
	// Tag 返回后端标识
	Tag() BackendTag
	// Search 执行检索
	Search(ctx context.Context, input SearchInput) ([]Candidate, error)
}

// QQ 后端注册表 QQ

// Registry 管理封闭的后端变体集合 {vector, lexical, semantic, graph}
type Registry struct {
	mu       sync.RWMutex
	backends map[BackendTag]Backend
}

// NewRegistry 创建空的后端注册表
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[BackendTag]Backend),
	}
}

// Register 注册一路后端，标签必须属于封闭集合且未被占用
func (r *Registry) Register(b Backend) error {
	tag := b.Tag()
	if !validBackendTag(tag) {
		return fmt.Errorf("unknown backend tag: %s", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[tag]; exists {
		return fmt.Errorf("backend already registered: %s", tag)
	}
	r.backends[tag] = b
	return nil
}

// Get 按标签获取后端
func (r *Registry) Get(tag BackendTag) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[tag]
	return b, ok
}

// List 按声明顺序返回所有已注册后端
func (r *Registry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.backends))
	for _, tag := range backendOrder {
		if b, ok := r.backends[tag]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Len 返回已注册后端数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

func validBackendTag(tag BackendTag) bool {
	for _, t := range backendOrder {
		if t == tag {
			return true
		}
	}
	return false
}
