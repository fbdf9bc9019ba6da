package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestAdmissionGateDefaultCapacity(t *testing.T) {
	gate := NewAdmissionGate(0)
	if gate.Capacity() != DefaultCapacity {
		t.Fatalf("capacity = %d, want %d", gate.Capacity(), DefaultCapacity)
	}
}

func TestAdmissionGateBlocksAtCapacity(t *testing.T) {
	gate := NewAdmissionGate(2)

	first, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	second, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if gate.Held() != 2 {
		t.Fatalf("held = %d, want 2", gate.Held())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := gate.Acquire(ctx); err == nil {
		t.Fatal("acquire beyond capacity succeeded")
	}

	first.Release()
	third, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	third.Release()
	second.Release()

	if gate.Held() != 0 {
		t.Fatalf("held = %d after releasing everything, want 0", gate.Held())
	}
}

func TestPermitReleaseIsIdempotent(t *testing.T) {
	gate := NewAdmissionGate(1)
	permit, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	permit.Release()
	permit.Release()
	if gate.Held() != 0 {
		t.Fatalf("held = %d, want 0", gate.Held())
	}

	again, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after double release: %v", err)
	}
	again.Release()
}
