package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/internal/ctxkeys"
	"github.com/BaSui01/actionflow/internal/metrics"
	"github.com/BaSui01/actionflow/internal/telemetry"
	"github.com/BaSui01/actionflow/types"
)

// ====== 运行循环：重试 + 补偿 ======

// Run 执行动作的完整生命周期：尝试 → 失败时按策略重试退避 →
// 预算耗尽后进入补偿路径。动作级失败永远以 Outcome 返回，不会 panic。
func (e *Executor) Run(ctx context.Context, act action.Action, params map[string]any, opts ...RunOption) types.Outcome {
	if act == nil {
		return types.Fail(types.NewInvalidInput("action is nil"))
	}
	return e.run(ctx, act, e.metadataFor(act), params, buildOptions(opts))
}

// RunByName 按注册名执行动作，元数据取自注册中心。
func (e *Executor) RunByName(ctx context.Context, name string, params map[string]any, opts ...RunOption) types.Outcome {
	if e.registry == nil {
		return types.Fail(types.NewConfiguration("action registry not configured"))
	}
	act, meta, err := e.registry.Get(name)
	if err != nil {
		return types.Fail(coerceTyped(err))
	}
	return e.run(ctx, act, meta, params, buildOptions(opts))
}

func (e *Executor) run(ctx context.Context, act action.Action, meta action.Metadata, params map[string]any, o runOptions) types.Outcome {
	runID := uuid.NewString()
	ctx = ctxkeys.WithRunID(ctx, runID)

	ctx, span := e.sink.SpanStart(ctx, "executor.run",
		attribute.String("action", act.Name()),
		attribute.String("run_id", runID),
	)

	timeout := o.resolveTimeout(meta, e.cfg.DefaultTimeout)
	maxRetries := o.resolveMaxRetries(e.cfg.DefaultMaxRetries)

	lg := e.logWith(ctx).With(zap.String("action", act.Name()))
	lg.Debug("run started",
		zap.Duration("timeout", timeout),
		zap.Int("max_retries", maxRetries),
	)

	rec := NewRunRecord(runID, act.Name())
	out := e.runAttempts(ctx, act, meta, params, timeout, maxRetries, rec, span)

	if out.IsOk() {
		rec.Complete("", false)
		e.history.Save(rec)
		span.End(nil)
		lg.Info("action completed",
			zap.Duration("duration", rec.Duration),
			zap.Int("attempts", len(rec.Attempts)),
		)
		return out
	}

	cause := out.Err()
	finalErr, compensated, ran := e.maybeCompensate(ctx, act, meta, params, cause, o, rec, span)
	if !ran {
		rec.Complete(cause.Message, false)
		e.history.Save(rec)
		span.End(cause)
		lg.Error("action failed",
			zap.String("error", cause.Message),
			zap.Int("attempts", len(rec.Attempts)),
		)
		return out
	}

	rec.Complete(finalErr.Message, compensated)
	e.history.Save(rec)
	span.End(finalErr)

	// 指令穿越整条失败管线
	if d, ok := out.Directive(); ok {
		return types.FailWith(finalErr, d)
	}
	return types.Fail(finalErr)
}

// runAttempts 驱动尝试循环，每次尝试前过限流器，失败后按退避曲线等待。
func (e *Executor) runAttempts(ctx context.Context, act action.Action, meta action.Metadata, params map[string]any, timeout time.Duration, maxRetries int, rec *RunRecord, span telemetry.Span) types.Outcome {
	policy := e.retryPolicy(maxRetries)
	lg := e.logWith(ctx).With(zap.String("action", act.Name()))

	attempt := 1
	for {
		if e.registry != nil && e.registry.Has(act.Name()) {
			if err := e.registry.Wait(ctx, act.Name()); err != nil {
				return types.Fail(types.NewExecutionFailure(
					fmt.Sprintf("action killed: %v", err)).WithCause(err))
			}
		}

		start := time.Now()
		out := e.executeAttempt(ctx, act, meta, params, timeout)
		elapsed := time.Since(start)

		status := statusOf(out)
		e.metrics.RecordExecution(act.Name(), status, elapsed)

		var errMsg string
		if err := out.Err(); err != nil {
			errMsg = err.Message
		}
		rec.RecordAttempt(attempt, status, errMsg, start, elapsed)
		span.AddEvent("attempt",
			attribute.Int("attempt", attempt),
			attribute.String("status", status),
		)

		if out.IsOk() {
			return out
		}
		if !ShouldRetry(out.Err(), attempt, maxRetries) {
			return out
		}

		delay := policy.BackoffDelay(attempt)
		e.metrics.RecordRetry(act.Name())
		lg.Info("retrying action",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("backoff", delay),
			zap.String("error", errMsg),
		)
		if err := WaitBackoff(ctx, delay); err != nil {
			// 退避等待期间被取消同样视为引擎强制终止
			return types.Fail(types.NewExecutionFailure(
				fmt.Sprintf("action killed: %v", err)).WithCause(err))
		}
		attempt++
	}
}

// retryPolicy 以引擎配置为底、本次预算为上限构造策略。
func (e *Executor) retryPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:  maxRetries,
		BaseBackoff: e.cfg.DefaultBackoff,
		MaxBackoff:  e.cfg.MaxBackoff,
		Jitter:      e.cfg.BackoffJitter,
	}
}

// ====== 补偿路径 ======

type compResult struct {
	err      *types.Error
	crashed  bool
	timedOut bool
	reason   any
}

func (r compResult) success() bool {
	return r.err == nil && !r.crashed && !r.timedOut
}

// maybeCompensate 在最终失败后运行补偿。返回 ran=false 表示补偿未触发
// （未声明、调用方跳过、或动作未实现 Compensator），调用方直接返回原错误。
func (e *Executor) maybeCompensate(ctx context.Context, act action.Action, meta action.Metadata, params map[string]any, cause *types.Error, o runOptions, rec *RunRecord, span telemetry.Span) (finalErr *types.Error, compensated, ran bool) {
	if o.noCompensation || !meta.CompensationEnabled() {
		return nil, false, false
	}
	comp, ok := act.(action.Compensator)
	if !ok {
		return nil, false, false
	}

	name := act.Name()
	timeout := o.resolveCompensationTimeout(meta, e.cfg.DefaultCompensationTimeout)
	maxComp := 0
	if meta.Compensation != nil {
		maxComp = meta.Compensation.MaxRetries
	}
	policy := e.retryPolicy(maxComp)

	lg := e.logWith(ctx).With(zap.String("action", name))
	lg.Info("compensating failed action",
		zap.Duration("timeout", timeout),
		zap.String("original_error", cause.Message),
	)

	// 补偿与调用方的取消解耦：调用方放弃不应中断恢复动作
	detached := context.WithoutCancel(ctx)

	compStart := time.Now()
	attempt := 1
	var res compResult
	for {
		res = e.runCompensation(detached, comp, params, cause, timeout)
		if res.success() || attempt >= maxComp {
			break
		}
		delay := policy.BackoffDelay(attempt)
		lg.Warn("retrying compensation",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		)
		_ = WaitBackoff(detached, delay)
		attempt++
	}
	elapsed := time.Since(compStart)

	switch {
	case res.crashed:
		exitReason := fmt.Sprintf("%v", res.reason)
		e.metrics.RecordCompensation(name, metrics.CompensationCrashed)
		rec.RecordCompensation(metrics.CompensationCrashed, exitReason, attempt, elapsed)
		span.AddEvent("compensation", attribute.String("result", metrics.CompensationCrashed))
		lg.Error("compensation crashed", zap.String("exit_reason", exitReason))
		finalErr = types.NewErrorf(types.KindExecutionFailure,
			"Compensation crashed for: %s", name).
			WithDetail(types.DetailCompensated, false).
			WithDetail(types.DetailOriginalError, cause.Message).
			WithDetail(types.DetailExitReason, res.reason).
			WithCause(cause)
		return finalErr, false, true

	case res.timedOut:
		// 补偿自身超时归为失败补偿，绝不与动作的执行超时混淆
		compErr := fmt.Sprintf("compensation timed out after %s", timeout)
		e.metrics.RecordCompensation(name, metrics.CompensationFailed)
		rec.RecordCompensation(metrics.CompensationFailed, compErr, attempt, elapsed)
		span.AddEvent("compensation", attribute.String("result", metrics.CompensationFailed))
		lg.Error("compensation timed out", zap.Duration("compensation_timeout", timeout))
		finalErr = types.NewErrorf(types.KindExecutionFailure,
			"Compensation failed for: %s", name).
			WithDetail(types.DetailCompensated, false).
			WithDetail(types.DetailOriginalError, cause.Message).
			WithDetail(types.DetailCompensationError, compErr).
			WithCause(cause)
		return finalErr, false, true

	case res.err != nil:
		e.metrics.RecordCompensation(name, metrics.CompensationFailed)
		rec.RecordCompensation(metrics.CompensationFailed, res.err.Message, attempt, elapsed)
		span.AddEvent("compensation", attribute.String("result", metrics.CompensationFailed))
		lg.Error("compensation failed", zap.String("error", res.err.Message))
		finalErr = types.NewErrorf(types.KindExecutionFailure,
			"Compensation failed for: %s", name).
			WithDetail(types.DetailCompensated, false).
			WithDetail(types.DetailOriginalError, cause.Message).
			WithDetail(types.DetailCompensationError, res.err.Message).
			WithCause(cause)
		return finalErr, false, true

	default:
		e.metrics.RecordCompensation(name, metrics.CompensationCompleted)
		rec.RecordCompensation(metrics.CompensationCompleted, "", attempt, elapsed)
		span.AddEvent("compensation", attribute.String("result", metrics.CompensationCompleted))
		lg.Info("compensation completed", zap.Duration("duration", elapsed))
		finalErr = types.NewErrorf(types.KindExecutionFailure,
			"Compensation completed for: %s", name).
			WithDetail(types.DetailCompensated, true).
			WithDetail(types.DetailOriginalError, cause.Message).
			WithCause(cause)
		return finalErr, true, true
	}
}

// runCompensation 在隔离的 goroutine 中调用补偿函数，受补偿超时约束。
// 超时后仍保留一个宽限窗口接收迟到的真实结果，优先于假定超时。
func (e *Executor) runCompensation(ctx context.Context, comp action.Compensator, params map[string]any, cause *types.Error, timeout time.Duration) compResult {
	compCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 单一发送方 + 容量 1：发送永不阻塞，迟到的结果也能在宽限期内被取走
	resCh := make(chan compResult, 1)

	go func() {
		res := compResult{}
		defer func() {
			if r := recover(); r != nil {
				if reason, ok := types.AbortReason(r); ok {
					res = compResult{crashed: true, reason: reason}
				} else {
					res = compResult{crashed: true, reason: r}
				}
			}
			resCh <- res
		}()
		if err := comp.Compensate(compCtx, params, cause); err != nil {
			res = compResult{err: coerceTyped(err)}
		}
	}()

	select {
	case res := <-resCh:
		return res
	case <-compCtx.Done():
	}

	if grace := e.async.CompensationGrace; grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case res := <-resCh:
			return res
		case <-timer.C:
		}
	}
	return compResult{timedOut: true}
}
