package executor

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/BaSui01/actionflow/types"
)

// Policy 定义重试策略配置
// 遵循 KISS 原则：简单但功能完整的重试策略
type Policy struct {
	MaxRetries  int           // 尝试预算（attempt < MaxRetries 时允许重试）
	BaseBackoff time.Duration // 首次重试的退避时间
	MaxBackoff  time.Duration // 退避上限
	Jitter      bool          // 是否添加随机抖动（防止雪崩）
}

// DefaultPolicy 返回默认的重试策略
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
		Jitter:      false,
	}
}

// normalized 应用参数下限，保证策略始终可用。
func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 1 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	return p
}

// ShouldRetry 决定一次失败是否进入重试。attempt 从 1 开始。
//
// 永不重试：invalid_input、configuration、返回形态违规（无论提示为何）、
// 显式 retry=false。显式 retry=true 或无提示（含 timeout / internal /
// 普通 execution_failure，默认视为瞬时故障）：attempt < maxRetries 时重试。
func ShouldRetry(err *types.Error, attempt, maxRetries int) bool {
	if err == nil {
		return false
	}
	switch err.Kind {
	case types.KindInvalidInput, types.KindConfiguration:
		return false
	}
	if err.UnexpectedShape() {
		return false
	}
	if hint, ok := err.RetryHint(); ok && !hint {
		return false
	}
	return attempt < maxRetries
}

// BackoffDelay 计算第 attempt 次重试前的退避时间：
// base × 2^(attempt-1)，attempt 从 1 开始，封顶于 MaxBackoff。
// Jitter 开启时附加 ±25% 随机抖动。
func (p Policy) BackoffDelay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseBackoff) * math.Pow(2, float64(attempt-1))

	// 限制最大延迟
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}

	// 添加随机抖动（±25%），防止多个调用方同时重试导致的雪崩效应
	if p.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
		if delay < 0 {
			delay = 0
		}
	}

	return time.Duration(delay)
}

// WaitBackoff 等待退避时间，同时监听 context 取消。
// 被取消时返回 ctx 的错误。
func WaitBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
