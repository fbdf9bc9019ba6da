package dispatch

import (
	"container/heap"
	"time"
)

// conversationQueue orders pending work for exactly one conversation by
// (priority, submission sequence). It holds no execution logic; the
// dispatcher serializes all access to it.
type conversationQueue struct {
	items itemHeap

	// active is true while a drain goroutine owns this queue, covering both
	// the Pending and InFlight states.
	active bool
	// inFlight is true while a handler runs for this conversation.
	inFlight bool
	// emptySince records when the queue last drained, for idle retirement.
	emptySince time.Time
}

func newConversationQueue() *conversationQueue {
	q := &conversationQueue{items: make(itemHeap, 0, 4)}
	heap.Init(&q.items)
	return q
}

func (q *conversationQueue) push(item *workItem) {
	heap.Push(&q.items, item)
}

// pop removes the highest-priority, oldest-enqueued item, or nil when empty.
func (q *conversationQueue) pop() *workItem {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*workItem)
}

func (q *conversationQueue) len() int {
	return len(q.items)
}

func (q *conversationQueue) isEmpty() bool {
	return len(q.items) == 0
}

// itemHeap is a min-heap keyed by (priority, seq). The monotonic sequence
// number keeps ordering stable within a priority level.
type itemHeap []*workItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(value any) {
	*h = append(*h, value.(*workItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	last := len(old) - 1
	item := old[last]
	old[last] = nil
	*h = old[:last]
	return item
}
