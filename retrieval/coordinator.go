package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yilianai/medrag/types"
)

// QQ 检索协调器 QQ

// CoordinatorConfig 配置并发检索分发
type CoordinatorConfig struct {
	// 每路后端候选上限
	PerBackendLimit int `json:"per_backend_limit"`
	// 单路后端超时
	BackendTimeout time.Duration `json:"backend_timeout"`
	// 每路后端每秒请求上限，0 表示不限流
	RateLimit float64 `json:"rate_limit"`
	// 熔断连续失败阈值
	BreakerFailures int `json:"breaker_failures"`
	// 熔断打开后的恢复窗口
	BreakerCooldown time.Duration `json:"breaker_cooldown"`
}

// DefaultCoordinatorConfig 返回默认协调器配置
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		PerBackendLimit: 20,
		BackendTimeout:  5 * time.Second,
		RateLimit:       50,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// DispatchResult 表示一次并发分发的汇总结果
type DispatchResult struct {
	// 各路后端返回的有序候选
	Lists map[BackendTag][]Candidate
	// 本次不可用的后端
	Unavailable []BackendTag
	// 各路后端统计
	Stats []BackendStat
}

// Degraded 返回是否有后端在本次查询中不可用
func (d *DispatchResult) Degraded() bool {
	return len(d.Unavailable) > 0
}

// AllFailed 返回是否所有后端均不可用
func (d *DispatchResult) AllFailed() bool {
	return len(d.Lists) == 0
}

// Coordinator 将查询并发分发到所有已注册后端并收集结果。
// 单路后端的超时或异常只使该路被标记不可用，从不中止整个查询。
type Coordinator struct {
	config   CoordinatorConfig
	registry *Registry
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[BackendTag]*gobreaker.CircuitBreaker[[]Candidate]
	limiters map[BackendTag]*rate.Limiter
}

// NewCoordinator 创建新的检索协调器
func NewCoordinator(config CoordinatorConfig, registry *Registry, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		config:   config,
		registry: registry,
		logger:   logger.With(zap.String("component", "coordinator")),
		breakers: make(map[BackendTag]*gobreaker.CircuitBreaker[[]Candidate]),
		limiters: make(map[BackendTag]*rate.Limiter),
	}
}

// Dispatch 并发调用所有后端，每路独立超时，失败被隔离记录
func (c *Coordinator) Dispatch(ctx context.Context, input SearchInput) *DispatchResult {
	backends := c.registry.List()
	result := &DispatchResult{
		Lists: make(map[BackendTag][]Candidate, len(backends)),
	}

	if input.Limit <= 0 || input.Limit > c.config.PerBackendLimit {
		input.Limit = c.config.PerBackendLimit
	}

	type backendOutcome struct {
		tag        BackendTag
		candidates []Candidate
		duration   time.Duration
		err        error
	}

	outcomes := make([]backendOutcome, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, backend := range backends {
		g.Go(func() error {
			start := time.Now()
			candidates, err := c.searchOne(gctx, backend, input)
			outcomes[i] = backendOutcome{
				tag:        backend.Tag(),
				candidates: candidates,
				duration:   time.Since(start),
				err:        err,
			}
			// Backend failures are isolated, never propagated to the group.
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		stat := BackendStat{
			Backend:  out.tag,
			Duration: out.duration,
		}
		if out.err != nil {
			c.logger.Warn("backend unavailable",
				zap.String("backend", string(out.tag)),
				zap.Duration("duration", out.duration),
				zap.Error(out.err))
			result.Unavailable = append(result.Unavailable, out.tag)
		} else {
			stat.Available = true
			stat.Count = len(out.candidates)
			result.Lists[out.tag] = normalizeRanks(out.tag, out.candidates, input.Limit)
		}
		result.Stats = append(result.Stats, stat)
	}

	return result
}

// searchOne 对单路后端执行限流、熔断与独立超时的检索
func (c *Coordinator) searchOne(ctx context.Context, backend Backend, input SearchInput) ([]Candidate, error) {
	tag := backend.Tag()

	if limiter := c.limiter(tag); limiter != nil && !limiter.Allow() {
		return nil, types.NewError(types.ErrBackendUnavailable, "rate limit exceeded").
			WithBackend(string(tag)).WithRetryable(true)
	}

	breaker := c.breaker(tag)
	candidates, err := breaker.Execute(func() ([]Candidate, error) {
		searchCtx, cancel := context.WithTimeout(ctx, c.config.BackendTimeout)
		defer cancel()
		return backend.Search(searchCtx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewError(types.ErrBackendUnavailable, "circuit open").
				WithBackend(string(tag)).WithCause(err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, types.NewError(types.ErrBackendUnavailable, "backend timed out").
				WithBackend(string(tag)).WithRetryable(true).WithCause(err)
		}
		return nil, types.NewError(types.ErrBackendUnavailable, "backend search failed").
			WithBackend(string(tag)).WithCause(err)
	}
	return candidates, nil
}

// breaker 返回后端的熔断器，按需创建
func (c *Coordinator) breaker(tag BackendTag) *gobreaker.CircuitBreaker[[]Candidate] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[tag]; ok {
		return b
	}

	failures := uint32(c.config.BreakerFailures)
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:    string(tag),
		Timeout: c.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("breaker state change",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	b := gobreaker.NewCircuitBreaker[[]Candidate](settings)
	c.breakers[tag] = b
	return b
}

// limiter 返回后端的限流器，RateLimit 为 0 时返回 nil
func (c *Coordinator) limiter(tag BackendTag) *rate.Limiter {
	if c.config.RateLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[tag]
	if !ok {
		burst := int(c.config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(c.config.RateLimit), burst)
		c.limiters[tag] = l
	}
	return l
}

// normalizeRanks 截断到上限并保证 Rank 从 1 连续编号
func normalizeRanks(tag BackendTag, candidates []Candidate, limit int) []Candidate {
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for i := range candidates {
		candidates[i].Backend = tag
		candidates[i].Rank = i + 1
	}
	return candidates
}
