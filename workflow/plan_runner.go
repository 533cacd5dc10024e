package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/actionflow/executor"
	"github.com/BaSui01/actionflow/internal/ctxkeys"
	"github.com/BaSui01/actionflow/internal/metrics"
	"github.com/BaSui01/actionflow/plan"
	"github.com/BaSui01/actionflow/types"
)

// ====== 计划执行 ======

// ExecutePlan 按阶段执行计划：阶段之间顺序推进，阶段内指令并发执行
// （受配置并发度约束），成功结果按阶段内声明顺序合并进累积结果，
// 保证键冲突时的确定性。与 parallel 步骤不同，阶段内第一个失败会
// 取消同阶段其余指令并短路整个计划；失败阶段的部分结果不进入累积。
func (it *Interpreter) ExecutePlan(ctx context.Context, p *plan.Plan, input map[string]any) (*Result, error) {
	if p == nil {
		return nil, types.NewInvalidInput("plan is nil")
	}

	phases, err := p.ExecutionPhases()
	if err != nil {
		it.metrics.RecordPlanNormalization(metrics.StatusError)
		return nil, err
	}
	it.metrics.RecordPlanNormalization(metrics.StatusOK)

	timeout := it.cfg.DefaultTimeout
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	planID := uuid.NewString()
	wctx = ctxkeys.WithWorkflowID(wctx, planID)
	wctx, span := it.sink.SpanStart(wctx, "workflow.plan",
		attribute.String("plan_id", planID),
		attribute.Int("phases", len(phases)),
		attribute.Int("steps", p.Len()),
	)
	start := time.Now()

	limit := it.cfg.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	acc := overlay(nil, input)
	var directive any
	for phaseIdx, phase := range phases {
		if wctx.Err() != nil {
			ferr := it.interruption(ctx, timeout)
			span.End(ferr)
			it.logger.Warn("plan interrupted",
				zap.String("plan_id", planID),
				zap.Int("phase", phaseIdx),
				zap.String("error", ferr.Message),
			)
			return &Result{Value: acc, Directive: directive}, ferr
		}

		phaseResults := make([]map[string]any, len(phase))
		phaseDirectives := make([]any, len(phase))
		var mu sync.Mutex
		var failDirective any
		failed := false

		g, gctx := errgroup.WithContext(wctx)
		g.SetLimit(limit)
		for i, name := range phase {
			in, ok := p.Get(name)
			if !ok {
				continue // Normalize 保证阶段内名字都存在
			}
			idx := i
			g.Go(func() error {
				out := it.exec.Run(gctx, in.Action, overlay(acc, in.Params), planOpts(in)...)
				d, _ := out.Directive()
				mu.Lock()
				defer mu.Unlock()
				if !out.IsOk() {
					if !failed {
						failed, failDirective = true, d
					}
					return out.Err()
				}
				phaseResults[idx] = out.Value()
				phaseDirectives[idx] = d
				return nil
			})
		}
		if gerr := g.Wait(); gerr != nil {
			ferr := coerceError(gerr)
			if failDirective != nil {
				directive = failDirective
			}
			span.AddEvent("phase_failed", attribute.Int("phase", phaseIdx))
			span.End(ferr)
			it.logger.Error("plan phase failed",
				zap.String("plan_id", planID),
				zap.Int("phase", phaseIdx),
				zap.String("error", ferr.Message),
			)
			return &Result{Value: acc, Directive: directive}, ferr
		}

		for i := range phaseResults {
			if phaseResults[i] != nil {
				acc = overlay(acc, phaseResults[i])
			}
			if phaseDirectives[i] != nil {
				directive = phaseDirectives[i]
			}
		}
		span.AddEvent("phase",
			attribute.Int("phase", phaseIdx),
			attribute.Int("steps", len(phase)),
		)
	}

	if wctx.Err() != nil {
		ferr := it.interruption(ctx, timeout)
		span.End(ferr)
		return &Result{Value: acc, Directive: directive}, ferr
	}

	span.End(nil)
	it.logger.Info("plan completed",
		zap.String("plan_id", planID),
		zap.Int("phases", len(phases)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Value: acc, Directive: directive}, nil
}

func planOpts(in *plan.Instruction) []executor.RunOption {
	opts := []executor.RunOption{executor.WithMaxRetries(in.Opts.MaxRetries)}
	if in.Opts.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(in.Opts.Timeout))
	}
	return opts
}

func coerceError(err error) *types.Error {
	var ferr *types.Error
	if errors.As(err, &ferr) {
		return ferr
	}
	return types.Normalize(err)
}
