package dispatch

// StatusSnapshot is a point-in-time view of dispatcher load. It is assembled
// under the registry lock, so counts are mutually consistent, but the
// dispatcher keeps moving the moment the call returns.
type StatusSnapshot struct {
	// PendingByConversation maps conversation id to queued (not yet running)
	// item count. Conversations with an empty queue are omitted.
	PendingByConversation map[int64]int `json:"pending_by_conversation"`
	TotalPending          int           `json:"total_pending"`
	// InFlight lists conversations with a handler currently executing.
	InFlight []int64 `json:"in_flight"`
	// ActiveConversations counts registry entries not yet retired.
	ActiveConversations int `json:"active_conversations"`
	HeldSlots           int `json:"held_slots"`
	Capacity            int `json:"capacity"`
}

func (d *Dispatcher) Status() StatusSnapshot {
	snapshot := StatusSnapshot{
		PendingByConversation: make(map[int64]int),
		InFlight:              []int64{},
		HeldSlots:             d.gate.Held(),
		Capacity:              d.gate.Capacity(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot.ActiveConversations = len(d.queues)
	for id, queue := range d.queues {
		if n := queue.len(); n > 0 {
			snapshot.PendingByConversation[id] = n
			snapshot.TotalPending += n
		}
		if queue.inFlight {
			snapshot.InFlight = append(snapshot.InFlight, id)
		}
	}
	return snapshot
}
