package memory

import (
	"container/heap"
	"time"
)

// expiry records the time at which key is due for eviction.
type expiry struct {
	expires time.Time
	key     string
}

// expiryHeap is a min-heap of expiry entries ordered by expiration time.
type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expires.Before(h[j].expires) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(e any) {
	*h = append(*h, e.(expiry))
}

func (h *expiryHeap) Pop() any {
	n := len(*h)
	e := (*h)[n-1]
	*h = (*h)[:n-1]
	return e
}

// evictionQueue tracks pending expirations, earliest first.
type evictionQueue struct {
	h expiryHeap
}

func newEvictionQueue() *evictionQueue {
	return &evictionQueue{}
}

func (eq *evictionQueue) Push(key string, expires time.Time) {
	heap.Push(&eq.h, expiry{expires: expires, key: key})
}

func (eq *evictionQueue) Pop() expiry {
	return heap.Pop(&eq.h).(expiry)
}

func (eq *evictionQueue) Peek() expiry {
	return eq.h[0]
}

func (eq *evictionQueue) Len() int {
	return eq.h.Len()
}
