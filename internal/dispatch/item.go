package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/domain"
)

var (
	// ErrHandlerTimeout marks a completion where the handler did not return
	// within the configured deadline, as opposed to running and failing.
	ErrHandlerTimeout = errors.New("dispatch: handler timed out")

	ErrDispatcherClosed = errors.New("dispatch: dispatcher is closed")

	ErrInvalidPriority = errors.New("dispatch: invalid priority")
)

// Handler processes one work item's payload for one conversation. It is
// supplied by the business-logic layer and may call out to transcription,
// inference and persistence services; it must honor ctx cancellation.
type Handler func(ctx context.Context, conversationID int64, payload any) (any, error)

// workItem is one scheduled unit of work. Immutable after creation except the
// ticket, which is completed exactly once.
type workItem struct {
	conversationID int64
	payload        any
	priority       domain.Priority
	enqueuedAt     time.Time
	seq            uint64
	ticket         *Ticket
}

// Ticket is the caller-facing handle for a submitted event. The result is
// written exactly once, when the handler finishes, fails or times out.
type Ticket struct {
	ID string

	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newTicket(id string) *Ticket {
	return &Ticket{
		ID:   id,
		done: make(chan struct{}),
	}
}

// Wait blocks until the item completes or ctx is cancelled.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.value, t.err
	}
}

// Done reports completion without blocking.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// complete records the outcome. Later calls are ignored, which also discards
// the eventual return of a handler that was abandoned after a timeout.
func (t *Ticket) complete(value any, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}
