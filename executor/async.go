package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/types"
)

// ====== 异步完成协议：fire / await / cancel ======

// AsyncHandle 是一次异步派发的凭证：完成标签 + worker 标识 +
// owner 信箱 + 监视标识。Await 凭它做选择性接收。
type AsyncHandle struct {
	inbox        *Inbox
	completionID string
	workerID     string
	monitorID    string
	action       string
	awaitTimeout time.Duration
}

// WorkerID 返回派发的 worker 标识。
func (h *AsyncHandle) WorkerID() string { return h.workerID }

// CompletionID 返回本次派发的完成标签。
func (h *AsyncHandle) CompletionID() string { return h.completionID }

// Action 返回派发的动作名。
func (h *AsyncHandle) Action() string { return h.action }

// Inbox 返回 owner 信箱。
func (h *AsyncHandle) Inbox() *Inbox { return h.inbox }

// RunAsync 异步派发动作：在池上以独立 worker 运行完整的 Run 生命周期，
// 立即返回句柄。worker 的取消域与调用方 ctx 的取消解耦（值仍继承），
// 唯一的终止开关是 Cancel。未配置池时同步返回 configuration 错误。
func (e *Executor) RunAsync(ctx context.Context, act action.Action, params map[string]any, opts ...RunOption) (*AsyncHandle, error) {
	if act == nil {
		return nil, types.NewInvalidInput("action is nil")
	}
	if e.pool == nil {
		return nil, types.NewConfiguration("async execution requires a worker pool")
	}

	o := buildOptions(opts)
	meta := e.metadataFor(act)

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := newWorker(uuid.NewString(), uuid.NewString(), act.Name(), cancel)

	owner := NewInbox(e.async.InboxBuffer)
	monitorID := uuid.NewString()
	w.attach(monitorID, owner)
	e.workers.add(w)

	h := &AsyncHandle{
		inbox:        owner,
		completionID: w.completionID,
		workerID:     w.id,
		monitorID:    monitorID,
		action:       act.Name(),
		awaitTimeout: o.resolveAwaitTimeout(e.async.DefaultAwaitTimeout),
	}

	task := func(context.Context) error {
		defer func() {
			r := recover()
			reason := ReasonNormal
			switch {
			case r != nil:
				reason = fmt.Sprintf("panic: %v", r)
			case wctx.Err() != nil:
				reason = ReasonKilled
			}
			e.workers.remove(w.id)
			w.exit(reason)
		}()

		out := e.run(wctx, act, meta, params, o)
		// completion 先于退出通知投递：正常路径下 Await 永远先看到结果
		owner.Push(Message{
			Kind:         MessageCompletion,
			CompletionID: w.completionID,
			WorkerID:     w.id,
			Outcome:      out,
		})
		return nil
	}

	if err := e.pool.Submit(wctx, task); err != nil {
		cancel()
		e.workers.remove(w.id)
		return nil, types.NewErrorf(types.KindExecutionFailure,
			"async dispatch failed: %v", err).
			WithCause(err).
			WithDetail(types.DetailRetry, true)
	}

	e.metrics.RecordAsyncDispatch(act.Name())
	stats := e.pool.Stats()
	e.metrics.RecordPoolStats(int64(stats.Active), int64(stats.Queued))
	e.logWith(ctx).Debug("async action dispatched",
		zap.String("action", act.Name()),
		zap.String("worker_id", w.id),
	)
	return h, nil
}

// Await 等待句柄解析。匹配的 completion 永远优先；reason 为 normal /
// noproc 的 down 只表示退出信号先到，再等一个宽限窗口让 completion
// 落地；异常 down 立即失败；超出等待时限返回独立于执行超时的 Timeout。
func (e *Executor) Await(ctx context.Context, h *AsyncHandle, timeout time.Duration) types.Outcome {
	if h == nil {
		return types.Fail(types.NewInvalidInput("async handle is nil"))
	}
	if timeout <= 0 {
		timeout = h.awaitTimeout
	}
	if timeout <= 0 {
		timeout = e.async.DefaultAwaitTimeout
	}

	matchCompletion := func(m Message) bool {
		return m.Kind == MessageCompletion && m.CompletionID == h.completionID
	}
	matchDown := func(m Message) bool {
		return m.Kind == MessageDown && m.WorkerID == h.workerID
	}
	settle := func(out types.Outcome) types.Outcome {
		e.flushHandle(h)
		e.metrics.RecordAsyncAwait(h.action, statusOf(out))
		return out
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var grace *time.Timer
	var graceC <-chan time.Time
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()

	for {
		if m, ok := h.inbox.takeMatch(matchCompletion); ok {
			return settle(m.Outcome)
		}

		if graceC == nil {
			if m, ok := h.inbox.takeMatch(matchDown); ok {
				switch m.Reason {
				case ReasonNormal, ReasonNoProc:
					grace = time.NewTimer(e.async.Grace)
					graceC = grace.C
				default:
					return settle(types.Fail(types.NewExecutionFailure(
						fmt.Sprintf("async worker terminated: %s", m.Reason)).
						WithDetail(types.DetailReason, m.Reason)))
				}
				continue
			}
		}

		select {
		case <-h.inbox.wake:
		case <-graceC:
			// 宽限期结束前做最后一次扫描，乱序投递的 completion 仍然获胜
			if m, ok := h.inbox.takeMatch(matchCompletion); ok {
				return settle(m.Outcome)
			}
			return settle(types.Fail(types.NewExecutionFailure(
				"async worker exited without delivering a result")))
		case <-ctx.Done():
			return settle(types.Fail(types.NewExecutionFailure(
				fmt.Sprintf("action killed: %v", ctx.Err())).WithCause(ctx.Err())))
		case <-deadline.C:
			if m, ok := h.inbox.takeMatch(matchCompletion); ok {
				return settle(m.Outcome)
			}
			return settle(types.Fail(types.NewTimeout(
				fmt.Sprintf("Async action timed out after %dms", timeout.Milliseconds())).
				WithDetail(types.DetailTimeout, timeout)))
		}
	}
}

// Observe 为非属主调用方建立对 worker 的监视：新 MonitorID、独立信箱。
// worker 已死时立即在信箱中放入 noproc down。监视器只收到退出信号，
// 不会收到 completion（结果只投递给属主）。
func (e *Executor) Observe(workerID string) *AsyncHandle {
	inbox := NewInbox(e.async.InboxBuffer)
	monitorID := uuid.NewString()

	h := &AsyncHandle{
		inbox:        inbox,
		workerID:     workerID,
		monitorID:    monitorID,
		awaitTimeout: e.async.DefaultAwaitTimeout,
	}

	w, ok := e.workers.get(workerID)
	if !ok || !w.attach(monitorID, inbox) {
		inbox.Push(Message{
			Kind:      MessageDown,
			WorkerID:  workerID,
			MonitorID: monitorID,
			Reason:    ReasonNoProc,
		})
		return h
	}
	h.completionID = w.completionID
	h.action = w.action
	return h
}

// Cancel 取消句柄对应的 worker：取消其作用域（级联终止域内子任务）、
// 注销监视器并有界清理信箱中该 worker 的 down 噪音。幂等，完成后调用
// 同样安全。
func (e *Executor) Cancel(h *AsyncHandle) error {
	if h == nil {
		return types.NewInvalidInput("async handle is nil")
	}

	if w, ok := e.workers.get(h.workerID); ok {
		w.cancel()
		w.detach(h.monitorID)
	}
	h.inbox.removeMatching(e.async.MailboxFlushLimit, func(m Message) bool {
		return m.Kind == MessageDown && m.WorkerID == h.workerID
	})

	e.metrics.RecordAsyncCancel(h.action)
	e.logger.Debug("async action canceled",
		zap.String("action", h.action),
		zap.String("worker_id", h.workerID),
	)
	return nil
}

// CancelWorker 按 worker 标识取消，供不持有句柄的调用方使用。幂等。
func (e *Executor) CancelWorker(workerID string) error {
	if workerID == "" {
		return types.NewInvalidInput("worker id is empty")
	}
	if w, ok := e.workers.get(workerID); ok {
		w.cancel()
		e.metrics.RecordAsyncCancel(w.action)
	}
	return nil
}

// flushHandle 在句柄解析后做有界清理：该完成标签与该 worker 的
// 残留信号都已无意义。
func (e *Executor) flushHandle(h *AsyncHandle) {
	h.inbox.removeMatching(e.async.MailboxFlushLimit, func(m Message) bool {
		return (m.Kind == MessageCompletion && m.CompletionID == h.completionID) ||
			(m.Kind == MessageDown && m.WorkerID == h.workerID)
	})
}
