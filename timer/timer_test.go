package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_FiresOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewTimerManager(ctx, 5*time.Millisecond)

	fired := make(chan struct{}, 2)
	m.AddTimer(10*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case <-fired:
		t.Fatal("one-shot timer fired twice")
	case <-time.After(50 * time.Millisecond):
	}

	if m.Pending() != 0 {
		t.Errorf("Expected empty queue after one-shot timer fired, got %d", m.Pending())
	}
}

func TestTimerManager_RemoveTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewTimerManager(ctx, 5*time.Millisecond)

	var calls atomic.Int32
	id := m.AddTimer(30*time.Millisecond, 0, func() { calls.Add(1) })
	m.RemoveTimer(id)

	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("Removed timer should not fire, fired %d times", calls.Load())
	}

	// Removing an unknown id is a no-op.
	m.RemoveTimer(id)
	m.RemoveTimer(9999)
}

func TestTimerManager_Repeating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewTimerManager(ctx, 5*time.Millisecond)

	var calls atomic.Int32
	id := m.AddTimer(5*time.Millisecond, 10*time.Millisecond, func() { calls.Add(1) })

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("Expected repeating timer to fire at least 3 times, got %d", calls.Load())
	}

	m.RemoveTimer(id)
	if m.Pending() != 0 {
		t.Errorf("Expected repeating timer removed from queue, got %d pending", m.Pending())
	}
}

func TestTimerManager_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewTimerManager(ctx, 5*time.Millisecond)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("timer manager did not stop after context cancel")
	}
}
