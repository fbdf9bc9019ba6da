package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/johnlen7/teacher-sarah/internal/domain"
)

type Config struct {
	// Capacity is the admission gate size: the maximum number of
	// conversations processed concurrently.
	Capacity int
	// HandlerTimeout bounds one handler invocation. Zero disables the bound.
	HandlerTimeout time.Duration
	// IdleRetirementGrace is how long an empty queue survives before its
	// registry entry is reclaimed.
	IdleRetirementGrace time.Duration
	Logger              *log.Logger
}

// Dispatcher routes inbound events into per-conversation queues and runs them
// against a bounded pool. Within one conversation items execute in
// (priority, arrival) order and never concurrently; across conversations the
// only bound is the admission gate.
type Dispatcher struct {
	handler Handler
	gate    *AdmissionGate
	timeout time.Duration
	grace   time.Duration
	logger  *log.Logger

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[int64]*conversationQueue
	seq    uint64
	closed bool
}

func New(handler Handler, cfg Config) *Dispatcher {
	if cfg.HandlerTimeout < 0 {
		cfg.HandlerTimeout = 0
	}
	if cfg.IdleRetirementGrace < 0 {
		cfg.IdleRetirementGrace = 0
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		gate:    NewAdmissionGate(cfg.Capacity),
		timeout: cfg.HandlerTimeout,
		grace:   cfg.IdleRetirementGrace,
		logger:  cfg.Logger,
		runCtx:  runCtx,
		cancel:  cancel,
		queues:  make(map[int64]*conversationQueue),
	}
}

// Submit enqueues one unit of work for a conversation and returns immediately
// with a ticket the caller can wait on. It never blocks on the admission gate
// and never rejects work under load; backpressure is expressed as queueing.
func (d *Dispatcher) Submit(
	_ context.Context,
	conversationID int64,
	payload any,
	priority domain.Priority,
) (*Ticket, error) {
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	item := &workItem{
		conversationID: conversationID,
		payload:        payload,
		priority:       priority,
		enqueuedAt:     time.Now().UTC(),
		ticket:         newTicket(uuid.NewString()),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDispatcherClosed
	}

	queue, ok := d.queues[conversationID]
	if !ok {
		queue = newConversationQueue()
		d.queues[conversationID] = queue
	}
	d.seq++
	item.seq = d.seq
	queue.push(item)

	startDrain := !queue.active
	if startDrain {
		queue.active = true
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if startDrain {
		go d.drain(conversationID)
	}
	return item.ticket, nil
}

// drain services one conversation until its queue is empty: acquire a slot,
// pop the next item, run it, release, repeat. Exactly one drain goroutine
// exists per conversation with pending work, which is what guarantees the
// single-in-flight invariant.
func (d *Dispatcher) drain(conversationID int64) {
	defer d.wg.Done()

	for {
		permit, err := d.gate.Acquire(d.runCtx)
		if err != nil {
			d.failPending(conversationID, ErrDispatcherClosed)
			return
		}

		d.mu.Lock()
		queue := d.queues[conversationID]
		if queue == nil || queue.isEmpty() {
			if queue != nil {
				queue.active = false
				queue.emptySince = time.Now()
			}
			d.mu.Unlock()
			permit.Release()
			d.scheduleRetire(conversationID)
			return
		}
		item := queue.pop()
		queue.inFlight = true
		d.mu.Unlock()

		d.runItem(item)

		d.mu.Lock()
		queue.inFlight = false
		more := !queue.isEmpty()
		if !more {
			queue.active = false
			queue.emptySince = time.Now()
		}
		d.mu.Unlock()
		permit.Release()

		if !more {
			d.scheduleRetire(conversationID)
			return
		}
	}
}

// runItem invokes the handler with the configured timeout and writes the
// outcome to the ticket. A timed-out handler keeps running on a cancelled
// context; its eventual return is discarded by the ticket's write-once slot.
func (d *Dispatcher) runItem(item *workItem) {
	ctx := d.runCtx
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan struct{})
	var (
		value any
		err   error
	)
	go func() {
		defer close(done)
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("dispatch: handler panic: %v", recovered)
			}
		}()
		value, err = d.handler(ctx, item.conversationID, item.payload)
	}()

	var outcome error
	select {
	case <-done:
		outcome = err
		item.ticket.complete(value, err)
	case <-ctx.Done():
		outcome = ctx.Err()
		if errors.Is(outcome, context.DeadlineExceeded) {
			outcome = ErrHandlerTimeout
		}
		item.ticket.complete(nil, outcome)
	}

	if d.logger != nil && outcome != nil {
		d.logger.Printf(
			"dispatch item failed conversation_id=%d priority=%d duration_ms=%d err=%v",
			item.conversationID,
			item.priority,
			time.Since(start).Milliseconds(),
			outcome,
		)
	}
}

// failPending completes every queued item for a conversation with err. Used
// only during shutdown, when the drain loop can no longer acquire slots.
func (d *Dispatcher) failPending(conversationID int64, err error) {
	d.mu.Lock()
	queue := d.queues[conversationID]
	var stranded []*workItem
	if queue != nil {
		for {
			item := queue.pop()
			if item == nil {
				break
			}
			stranded = append(stranded, item)
		}
		queue.active = false
		delete(d.queues, conversationID)
	}
	d.mu.Unlock()

	for _, item := range stranded {
		item.ticket.complete(nil, err)
	}
}

// scheduleRetire reclaims the conversation's registry entry once it has been
// empty and idle past the grace window. A submission arriving in the interim
// reactivates the queue and the retire becomes a no-op.
func (d *Dispatcher) scheduleRetire(conversationID int64) {
	if d.grace <= 0 {
		d.retireIfIdle(conversationID)
		return
	}
	time.AfterFunc(d.grace, func() {
		d.retireIfIdle(conversationID)
	})
}

func (d *Dispatcher) retireIfIdle(conversationID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue := d.queues[conversationID]
	if queue == nil || queue.active || queue.inFlight || !queue.isEmpty() {
		return
	}
	if d.grace > 0 && time.Since(queue.emptySince) < d.grace {
		return
	}
	delete(d.queues, conversationID)
}

// Close stops accepting work, cancels running handlers and waits for drain
// goroutines to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
