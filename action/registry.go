package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/actionflow/types"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ====== 实现：Registry ======

// Registry 维护名称到动作的映射、动作元数据与每动作的速率限制器。
// 所有方法并发安全。
type Registry struct {
	mu       sync.RWMutex
	actions  map[string]Action
	metadata map[string]Metadata
	limiters map[string]*rate.Limiter // 动作级别的速率限制器
	logger   *zap.Logger
}

// NewRegistry 创建动作注册中心。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		actions:  make(map[string]Action),
		metadata: make(map[string]Metadata),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "action_registry")),
	}
}

// Register 注册动作。名称为空或重复时返回错误。
// 元数据缺省且动作实现 Describer 时，采用动作自述的元数据。
func (r *Registry) Register(act Action, meta Metadata) error {
	if act == nil {
		return types.NewInvalidInput("action is nil")
	}
	name := act.Name()
	if name == "" {
		return types.NewInvalidInput("action name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return types.NewConfiguration(fmt.Sprintf("action %s already registered", name))
	}

	if meta.IsZero() {
		if d, ok := act.(Describer); ok {
			meta = d.Describe()
		}
	}

	r.actions[name] = act
	r.metadata[name] = meta

	// 初始化速率限制器
	if rl := meta.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		limit := rate.Limit(float64(rl.MaxCalls) / rl.Window.Seconds())
		r.limiters[name] = rate.NewLimiter(limit, rl.MaxCalls)
	}

	r.logger.Info("action registered",
		zap.String("name", name),
		zap.Bool("compensable", meta.CompensationEnabled()),
		zap.Bool("rate_limited", meta.RateLimit != nil),
	)
	return nil
}

// RegisterFunc 以函数形态注册动作。
func (r *Registry) RegisterFunc(name string, fn RunFunc, meta Metadata) error {
	return r.Register(Func(name, fn), meta)
}

// Unregister 注销动作。
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; !exists {
		return types.NewInvalidInput(fmt.Sprintf("action not registered: %s", name))
	}

	delete(r.actions, name)
	delete(r.metadata, name)
	delete(r.limiters, name)

	r.logger.Info("action unregistered", zap.String("name", name))
	return nil
}

// Get 按名称解析动作与元数据。
func (r *Registry) Get(name string) (Action, Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	act, ok := r.actions[name]
	if !ok {
		return nil, Metadata{}, types.NewInvalidInput(fmt.Sprintf("action not registered: %s", name)).
			WithDetail(types.DetailType, "invalid_step")
	}
	return act, r.metadata[name], nil
}

// List 返回已注册的动作名称，按字典序排序。
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has 检查动作是否已注册。
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Wait 阻塞获取一个速率令牌；未配置限流的动作立即返回 nil。
// ctx 取消或超过其截止期时返回对应错误。
func (r *Registry) Wait(ctx context.Context, name string) error {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		r.logger.Warn("rate limit wait aborted", zap.String("name", name), zap.Error(err))
		return err
	}
	return nil
}

// Allow 非阻塞检查是否有可用的速率令牌；未配置限流时恒为 true。
func (r *Registry) Allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		return true
	}
	return limiter.Allow()
}
