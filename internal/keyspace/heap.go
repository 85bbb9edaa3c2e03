package keyspace

import "time"

// heapItem is one entry in the expiration min-heap: the earliest deadline
// sits at index 0. Popped items are tolerant of staleness — sweepExpired
// re-checks the popped deadline against the map's current entry before
// deleting anything, so a heap item orphaned by a later Set/Expire on the
// same key is silently dropped instead of evicting a live value.
type heapItem struct {
	key      string
	deadline time.Time
}

// expirationHeap implements container/heap.Interface, ordered so the
// earliest deadline is always at index 0.
type expirationHeap []heapItem

func (h expirationHeap) Len() int { return len(h) }

func (h expirationHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h expirationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expirationHeap) Push(x any) {
	*h = append(*h, x.(heapItem))
}

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
