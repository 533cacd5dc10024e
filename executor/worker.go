package executor

import (
	"context"
	"sync"
)

// ====== 异步 worker：取消域 + 监视器 ======

// Worker 拥有一次异步派发的取消域与监视列表。取消其作用域会级联
// 终止域内派生的全部子任务；退出时向每个在册监视器投递 down 信号。
type Worker struct {
	id           string
	completionID string
	action       string
	cancel       context.CancelFunc
	done         chan struct{}

	mu       sync.Mutex
	monitors map[string]*Inbox
	exited   bool
	reason   string
}

func newWorker(id, completionID, actionName string, cancel context.CancelFunc) *Worker {
	return &Worker{
		id:           id,
		completionID: completionID,
		action:       actionName,
		cancel:       cancel,
		done:         make(chan struct{}),
		monitors:     make(map[string]*Inbox, 1),
	}
}

// ID 返回 worker 标识。
func (w *Worker) ID() string { return w.id }

// CompletionID 返回本次派发的完成标签。
func (w *Worker) CompletionID() string { return w.completionID }

// Done 在 worker 退出（down 信号投递完毕）后关闭。
func (w *Worker) Done() <-chan struct{} { return w.done }

// attach 注册监视器。worker 已退出时返回 false，由调用方合成 noproc。
func (w *Worker) attach(monitorID string, inbox *Inbox) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exited {
		return false
	}
	w.monitors[monitorID] = inbox
	return true
}

// detach 注销监视器，幂等。
func (w *Worker) detach(monitorID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.monitors, monitorID)
}

// exit 标记 worker 退出并向所有监视器投递 down，只生效一次。
func (w *Worker) exit(reason string) {
	w.mu.Lock()
	if w.exited {
		w.mu.Unlock()
		return
	}
	w.exited = true
	w.reason = reason
	monitors := make(map[string]*Inbox, len(w.monitors))
	for id, inbox := range w.monitors {
		monitors[id] = inbox
	}
	w.mu.Unlock()

	for id, inbox := range monitors {
		inbox.Push(Message{
			Kind:      MessageDown,
			WorkerID:  w.id,
			MonitorID: id,
			Reason:    reason,
		})
	}
	close(w.done)
}

// ====== worker 注册表 ======

// workerRegistry 以 WorkerID 索引在途 worker。worker 退出即摘除，
// 对缺失 worker 的监视由调用方合成 noproc down。
type workerRegistry struct {
	mu      sync.RWMutex
	workers map[string]*Worker
}

func newWorkerRegistry() *workerRegistry {
	return &workerRegistry{
		workers: make(map[string]*Worker),
	}
}

func (r *workerRegistry) add(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.id] = w
}

func (r *workerRegistry) get(id string) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

func (r *workerRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

func (r *workerRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
