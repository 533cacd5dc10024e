package executor

import (
	"sync"

	"github.com/BaSui01/actionflow/types"
)

// ====== 异步信箱：选择性接收 ======

// MessageKind 区分信箱消息类别
type MessageKind uint8

const (
	// MessageCompletion 携带动作的最终 Outcome，以完成标签寻址
	MessageCompletion MessageKind = iota + 1
	// MessageDown 携带 worker 的退出原因，由监视器投递
	MessageDown
)

// worker 退出原因
const (
	ReasonNormal = "normal"
	ReasonKilled = "killed"
	ReasonNoProc = "noproc"
)

// Message 是投递到信箱的一条信号。completion 与 down 各自只有
// 匹配标签（CompletionID / WorkerID）的那条有意义，其余皆为噪音。
type Message struct {
	Kind         MessageKind
	CompletionID string
	WorkerID     string
	MonitorID    string
	Outcome      types.Outcome
	Reason       string
}

// Inbox 是每个 owner 的私有信箱。接收方按谓词取走首条匹配消息，
// 不匹配的消息原位保留，永不阻塞匹配。
type Inbox struct {
	mu   sync.Mutex
	msgs []Message
	wake chan struct{}
}

// NewInbox 创建信箱，capacity 为底层缓冲的初始容量。
func NewInbox(capacity int) *Inbox {
	if capacity < 0 {
		capacity = 0
	}
	return &Inbox{
		msgs: make([]Message, 0, capacity),
		wake: make(chan struct{}, 1),
	}
}

// Push 投递一条消息并唤醒等待者。容量 1 的唤醒通道合并重复信号：
// 等待方消费信号后重新扫描，不会丢失唤醒。
func (b *Inbox) Push(m Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Len 返回当前积压的消息数。
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

// takeMatch 取走首条满足谓词的消息；没有匹配时返回 false。
func (b *Inbox) takeMatch(pred func(Message) bool) (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, m := range b.msgs {
		if pred(m) {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			return m, true
		}
	}
	return Message{}, false
}

// removeMatching 清除满足谓词的消息，最多检查队首 limit 条。
// 有界扫描保证清理永远不会被噪音洪泛拖垮。
func (b *Inbox) removeMatching(limit int, pred func(Message) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	kept := make([]Message, 0, len(b.msgs))
	for i, m := range b.msgs {
		if i < limit && pred(m) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	b.msgs = kept
	return removed
}
