package dispatch

import (
	"testing"

	"github.com/johnlen7/teacher-sarah/internal/domain"
)

func queuedItem(seq uint64, priority domain.Priority, label string) *workItem {
	return &workItem{
		conversationID: 1,
		payload:        label,
		priority:       priority,
		seq:            seq,
		ticket:         newTicket(label),
	}
}

func TestConversationQueueOrdersByPriorityThenArrival(t *testing.T) {
	q := newConversationQueue()
	q.push(queuedItem(1, domain.PriorityExpensive, "voice-1"))
	q.push(queuedItem(2, domain.PriorityInteractive, "text-1"))
	q.push(queuedItem(3, domain.PriorityExpensive, "voice-2"))
	q.push(queuedItem(4, domain.PriorityInteractive, "text-2"))

	want := []string{"text-1", "text-2", "voice-1", "voice-2"}
	for i, expected := range want {
		item := q.pop()
		if item == nil {
			t.Fatalf("pop %d: got nil, want %q", i, expected)
		}
		if got := item.payload.(string); got != expected {
			t.Errorf("pop %d: got %q, want %q", i, got, expected)
		}
	}
	if !q.isEmpty() {
		t.Errorf("queue not empty after draining, len=%d", q.len())
	}
}

func TestConversationQueueFIFOWithinPriority(t *testing.T) {
	q := newConversationQueue()
	for i := uint64(1); i <= 5; i++ {
		q.push(queuedItem(i, domain.PriorityInteractive, ""))
	}
	var prev uint64
	for !q.isEmpty() {
		item := q.pop()
		if item.seq <= prev {
			t.Fatalf("sequence went backwards: %d after %d", item.seq, prev)
		}
		prev = item.seq
	}
}

func TestConversationQueuePopEmpty(t *testing.T) {
	q := newConversationQueue()
	if item := q.pop(); item != nil {
		t.Fatalf("pop on empty queue returned %v", item)
	}
}
