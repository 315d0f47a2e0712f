package broker

import (
	"container/heap"
	"sync"
	"time"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// pendingMessage is a queued entry carrying its own expiry, derived from the
// send's TTL (or the channel default) at enqueue time.
type pendingMessage struct {
	msg      messaging.Message
	priority int
	expiry   time.Time // zero means no expiry
	seq      uint64
}

func (p *pendingMessage) expired(now time.Time) bool {
	return !p.expiry.IsZero() && now.After(p.expiry)
}

// pendingHeap orders entries priority-major (higher first), then by insertion
// sequence so ties are FIFO.
type pendingHeap []*pendingMessage

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(*pendingMessage)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// pendingQueue is the concurrency-safe priority buffer behind a QUEUE channel.
type pendingQueue struct {
	mu  sync.Mutex
	h   pendingHeap
	seq uint64
}

func newPendingQueue() *pendingQueue {
	q := &pendingQueue{}
	heap.Init(&q.h)
	return q
}

// push enqueues an entry, assigning its FIFO tie-break sequence.
func (q *pendingQueue) push(pm *pendingMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if pm.seq == 0 {
		q.seq++
		pm.seq = q.seq
	}
	heap.Push(&q.h, pm)
}

// pop removes and returns the highest-priority entry, or false when empty.
func (q *pendingQueue) pop() (*pendingMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*pendingMessage), true
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
