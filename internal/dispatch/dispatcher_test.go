package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/domain"
)

func waitTicket(t *testing.T, ticket *Ticket) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, err := ticket.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("ticket never completed")
	}
	return value, err
}

func TestSubmitRejectsInvalidPriority(t *testing.T) {
	d := New(func(context.Context, int64, any) (any, error) { return nil, nil }, Config{})
	defer d.Close(context.Background())

	if _, err := d.Submit(context.Background(), 1, "x", domain.Priority(9)); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("err = %v, want ErrInvalidPriority", err)
	}
}

func TestPerConversationOrdering(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		order []string
	)
	handler := func(_ context.Context, _ int64, payload any) (any, error) {
		label := payload.(string)
		if label == "blocker" {
			close(started)
			<-release
		}
		mu.Lock()
		order = append(order, label)
		mu.Unlock()
		return label, nil
	}

	d := New(handler, Config{Capacity: 4})
	defer d.Close(context.Background())

	blocker, err := d.Submit(context.Background(), 7, "blocker", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit blocker: %v", err)
	}
	<-started

	// Queued while the blocker holds the conversation: the interactive item
	// must overtake the earlier expensive one.
	voice, err := d.Submit(context.Background(), 7, "voice", domain.PriorityExpensive)
	if err != nil {
		t.Fatalf("submit voice: %v", err)
	}
	text, err := d.Submit(context.Background(), 7, "text", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit text: %v", err)
	}

	close(release)
	waitTicket(t, blocker)
	waitTicket(t, voice)
	waitTicket(t, text)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"blocker", "text", "voice"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSingleInFlightPerConversation(t *testing.T) {
	var inFlight, breaches atomic.Int64
	handler := func(context.Context, int64, any) (any, error) {
		if inFlight.Add(1) > 1 {
			breaches.Add(1)
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}

	d := New(handler, Config{Capacity: 8})
	defer d.Close(context.Background())

	var tickets []*Ticket
	for i := 0; i < 30; i++ {
		ticket, err := d.Submit(context.Background(), 42, i, domain.PriorityInteractive)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		tickets = append(tickets, ticket)
	}
	for _, ticket := range tickets {
		waitTicket(t, ticket)
	}
	if n := breaches.Load(); n > 0 {
		t.Fatalf("observed %d concurrent executions within one conversation", n)
	}
}

func TestCapacityBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	release := make(chan struct{})
	handler := func(context.Context, int64, any) (any, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil, nil
	}

	d := New(handler, Config{Capacity: 2})
	defer d.Close(context.Background())

	var tickets []*Ticket
	for chat := int64(1); chat <= 3; chat++ {
		ticket, err := d.Submit(context.Background(), chat, "work", domain.PriorityInteractive)
		if err != nil {
			t.Fatalf("submit chat %d: %v", chat, err)
		}
		tickets = append(tickets, ticket)
	}

	deadline := time.After(2 * time.Second)
	for running.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("pool never reached capacity")
		case <-time.After(time.Millisecond):
		}
	}
	if held := d.gate.Held(); held != 2 {
		t.Fatalf("held slots = %d, want 2", held)
	}

	close(release)
	for _, ticket := range tickets {
		waitTicket(t, ticket)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeded capacity 2", peak.Load())
	}
}

func TestHandlerTimeout(t *testing.T) {
	blocked := make(chan struct{})
	handler := func(ctx context.Context, _ int64, payload any) (any, error) {
		if payload == "slow" {
			<-blocked
			return nil, ctx.Err()
		}
		return payload, nil
	}

	d := New(handler, Config{Capacity: 1, HandlerTimeout: 20 * time.Millisecond})
	defer d.Close(context.Background())
	defer close(blocked)

	slow, err := d.Submit(context.Background(), 5, "slow", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit slow: %v", err)
	}
	if _, err := waitTicket(t, slow); !errors.Is(err, ErrHandlerTimeout) {
		t.Fatalf("err = %v, want ErrHandlerTimeout", err)
	}

	// The slot must be free again: a fresh item on the same conversation runs.
	next, err := d.Submit(context.Background(), 5, "next", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit next: %v", err)
	}
	value, err := waitTicket(t, next)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if value != "next" {
		t.Fatalf("value = %v, want next", value)
	}
}

func TestFailureIsolation(t *testing.T) {
	boom := errors.New("model unavailable")
	handler := func(_ context.Context, chatID int64, payload any) (any, error) {
		if payload == "bad" {
			return nil, boom
		}
		return fmt.Sprintf("ok-%d", chatID), nil
	}

	d := New(handler, Config{Capacity: 2})
	defer d.Close(context.Background())

	bad, _ := d.Submit(context.Background(), 1, "bad", domain.PriorityInteractive)
	after, _ := d.Submit(context.Background(), 1, "good", domain.PriorityInteractive)
	other, _ := d.Submit(context.Background(), 2, "good", domain.PriorityInteractive)

	if _, err := waitTicket(t, bad); !errors.Is(err, boom) {
		t.Fatalf("bad item err = %v, want wrapped failure", err)
	}
	if _, err := waitTicket(t, after); err != nil {
		t.Fatalf("item after failure on same conversation: %v", err)
	}
	if value, err := waitTicket(t, other); err != nil || value != "ok-2" {
		t.Fatalf("unrelated conversation: value=%v err=%v", value, err)
	}
}

func TestIdleRetirementAndResubmission(t *testing.T) {
	handler := func(_ context.Context, _ int64, payload any) (any, error) {
		return payload, nil
	}
	d := New(handler, Config{Capacity: 2, IdleRetirementGrace: 10 * time.Millisecond})
	defer d.Close(context.Background())

	first, err := d.Submit(context.Background(), 11, "first", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTicket(t, first)

	deadline := time.After(2 * time.Second)
	for d.Status().ActiveConversations != 0 {
		select {
		case <-deadline:
			t.Fatalf("conversation never retired, status=%+v", d.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}

	second, err := d.Submit(context.Background(), 11, "second", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("submit after retirement: %v", err)
	}
	if value, err := waitTicket(t, second); err != nil || value != "second" {
		t.Fatalf("resubmission: value=%v err=%v", value, err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(_ context.Context, _ int64, payload any) (any, error) {
		if payload == "blocker" {
			close(started)
			<-release
		}
		return nil, nil
	}

	d := New(handler, Config{Capacity: 3})
	defer d.Close(context.Background())

	blocker, _ := d.Submit(context.Background(), 1, "blocker", domain.PriorityInteractive)
	<-started
	queuedA, _ := d.Submit(context.Background(), 1, "queued", domain.PriorityInteractive)
	queuedB, _ := d.Submit(context.Background(), 1, "queued", domain.PriorityExpensive)

	status := d.Status()
	if status.Capacity != 3 {
		t.Errorf("capacity = %d, want 3", status.Capacity)
	}
	if status.TotalPending != 2 {
		t.Errorf("total pending = %d, want 2", status.TotalPending)
	}
	if status.PendingByConversation[1] != 2 {
		t.Errorf("pending for chat 1 = %d, want 2", status.PendingByConversation[1])
	}
	if len(status.InFlight) != 1 || status.InFlight[0] != 1 {
		t.Errorf("in flight = %v, want [1]", status.InFlight)
	}
	if status.HeldSlots != 1 {
		t.Errorf("held slots = %d, want 1", status.HeldSlots)
	}

	close(release)
	waitTicket(t, blocker)
	waitTicket(t, queuedA)
	waitTicket(t, queuedB)

	status = d.Status()
	if status.TotalPending != 0 || len(status.InFlight) != 0 {
		t.Errorf("status after drain = %+v, want empty", status)
	}
}

func TestCloseFailsQueuedWork(t *testing.T) {
	started := make(chan struct{})
	handler := func(ctx context.Context, _ int64, payload any) (any, error) {
		if payload == "blocker" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	}

	d := New(handler, Config{Capacity: 1})

	blocker, _ := d.Submit(context.Background(), 1, "blocker", domain.PriorityInteractive)
	<-started
	queued, _ := d.Submit(context.Background(), 2, "queued", domain.PriorityInteractive)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := waitTicket(t, blocker); err == nil {
		t.Fatal("blocker completed without error after shutdown")
	}
	if _, err := waitTicket(t, queued); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("queued err = %v, want ErrDispatcherClosed", err)
	}

	if _, err := d.Submit(context.Background(), 3, "late", domain.PriorityInteractive); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("submit after close err = %v, want ErrDispatcherClosed", err)
	}
}
