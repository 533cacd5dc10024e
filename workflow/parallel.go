package workflow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/actionflow/types"
)

// ====== 并行批次 ======

// runParallel 并发执行一批指令，结果按声明顺序收集为 ParallelResult
// 列表并写入累积结果的 ResultsKey 键下。单条指令的失败只体现在对应
// 条目上，不会使批次本身失败，也不会取消兄弟指令；只有包围工作流的
// 超时 / 取消会终结批次。批次被终结后最多再等 grace 窗口收敛残留
// 指令，仍未返回的条目按终止处理。
func (it *Interpreter) runParallel(ctx context.Context, def Definition, instrs []Instruction, acc map[string]any) (map[string]any, any, *types.Error) {
	if len(instrs) == 0 {
		return map[string]any{ResultsKey: []ParallelResult{}}, nil, nil
	}

	limit := def.MaxConcurrency
	if limit <= 0 {
		limit = it.cfg.MaxConcurrency
	}
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	results := make([]ParallelResult, len(instrs))
	delivered := make([]bool, len(instrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	// 派发与等待放在旁路 goroutine 里：SetLimit 饱和时 Go 会阻塞，
	// 残留指令卡住时批次仍要能按 grace 窗口收尾。
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range instrs {
			in := &instrs[i]
			idx := i
			g.Go(func() error {
				out := it.exec.Run(gctx, in.Action, overlay(acc, in.Params), instructionOpts(in)...)
				entry := ParallelResult{}
				if out.IsOk() {
					entry.Value = out.Value()
				} else {
					entry.Err = out.Err()
				}
				mu.Lock()
				results[idx], delivered[idx] = entry, true
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		timer := time.NewTimer(it.grace)
		select {
		case <-done:
			timer.Stop()
		case <-timer.C:
		}
	}

	mu.Lock()
	out := make([]ParallelResult, len(instrs))
	for i := range results {
		if delivered[i] {
			out[i] = results[i]
			continue
		}
		out[i] = ParallelResult{Err: types.NewExecutionFailure("parallel instruction terminated without result")}
	}
	mu.Unlock()

	return map[string]any{ResultsKey: out}, nil, nil
}
