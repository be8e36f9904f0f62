package delivery

import (
	"container/heap"
	"sync"
	"time"
)

// dueItem is a delivery waiting in the queue
type dueItem struct {
	ID     string
	At     time.Time
	Weight int
	seq    uint64
	Index  int // Index in the heap
}

// dueHeap implements heap.Interface
type dueHeap []*dueItem

func (h dueHeap) Len() int { return len(h) }

func (h dueHeap) Less(i, j int) bool {
	if !h[i].At.Equal(h[j].At) {
		return h[i].At.Before(h[j].At)
	}
	// Same due time: more urgent first, then FIFO
	if h[i].Weight != h[j].Weight {
		return h[i].Weight > h[j].Weight
	}
	return h[i].seq < h[j].seq
}

func (h dueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].Index = i
	h[j].Index = j
}

func (h *dueHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*dueItem)
	item.Index = n
	*h = append(*h, item)
}

func (h *dueHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.Index = -1
	*h = old[0 : n-1]
	return item
}

// DueQueue is a thread-safe queue of delivery ids ordered by due time
type DueQueue struct {
	items dueHeap
	byID  map[string]*dueItem
	seq   uint64
	mu    sync.Mutex
}

// NewDueQueue creates an empty queue
func NewDueQueue() *DueQueue {
	q := &DueQueue{
		items: make(dueHeap, 0),
		byID:  make(map[string]*dueItem),
	}
	heap.Init(&q.items)
	return q
}

// Push schedules id at at. Pushing an id already queued moves it.
func (q *DueQueue) Push(id string, at time.Time, weight int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item, ok := q.byID[id]; ok {
		item.At = at
		item.Weight = weight
		heap.Fix(&q.items, item.Index)
		return
	}
	q.seq++
	item := &dueItem{ID: id, At: at, Weight: weight, seq: q.seq}
	heap.Push(&q.items, item)
	q.byID[id] = item
}

// Remove drops id from the queue and reports whether it was queued
func (q *DueQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.items, item.Index)
	delete(q.byID, id)
	return true
}

// PopDue removes and returns every id due at or before now, earliest first
func (q *DueQueue) PopDue(now time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []string
	for q.items.Len() > 0 && !q.items[0].At.After(now) {
		item := heap.Pop(&q.items).(*dueItem)
		delete(q.byID, item.ID)
		due = append(due, item.ID)
	}
	return due
}

// NextDue returns the earliest due time, if any
func (q *DueQueue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return time.Time{}, false
	}
	return q.items[0].At, true
}

// Len returns the number of queued deliveries
func (q *DueQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
