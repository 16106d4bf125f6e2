package queue

import (
	"sync"

	"entropyd/internal/domain"
	"entropyd/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
// It is the single hand-off point between concurrent source loops and
// the feed loop.
type MemQueue struct {
	mu   sync.Mutex
	data []*domain.Block
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]*domain.Block, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(b *domain.Block) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, b)
	return true
}

func (q *MemQueue) Dequeue() (*domain.Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil, false
	}
	b := q.data[0]
	q.data = append(q.data[:0], q.data[1:]...)
	return b, true
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.BlockQueue = (*MemQueue)(nil)
