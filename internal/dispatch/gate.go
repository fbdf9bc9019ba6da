package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultCapacity = 15

// AdmissionGate bounds how many conversations are actively processed at once,
// independent of how many have pending work. It is the single global limiter
// for handler concurrency.
type AdmissionGate struct {
	sem      *semaphore.Weighted
	capacity int
	held     atomic.Int64
}

func NewAdmissionGate(capacity int) *AdmissionGate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AdmissionGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (g *AdmissionGate) Acquire(ctx context.Context) (*Permit, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.held.Add(1)
	return &Permit{gate: g}, nil
}

func (g *AdmissionGate) Capacity() int {
	return g.capacity
}

// Held returns the number of slots currently taken.
func (g *AdmissionGate) Held() int {
	return int(g.held.Load())
}

// Permit represents one held admission slot. Releasing more than once is a
// programming error; the extra calls are ignored.
type Permit struct {
	gate *AdmissionGate
	once sync.Once
}

func (p *Permit) Release() {
	p.once.Do(func() {
		p.gate.held.Add(-1)
		p.gate.sem.Release(1)
	})
}
