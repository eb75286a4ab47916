package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsEventsInOrder(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	var got []int
	for i := 0; i < 10; i++ {
		loop.Post(func() { got = append(got, i) })
	}
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("events ran out of order: %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 events, got %d", len(got))
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if loop.Post(func() {}) {
		t.Error("Post should fail after the loop stopped")
	}
	if err := loop.Do(context.Background(), func() {}); err == nil {
		t.Error("Do should fail after the loop stopped")
	}
}

func TestLoopSurvivesPanics(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	loop.Post(func() { panic("boom") })

	var ran atomic.Bool
	if err := loop.Do(ctx, func() { ran.Store(true) }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !ran.Load() {
		t.Error("loop stopped processing after a panic")
	}
}

func TestGocronTimersInvalidateUnknown(t *testing.T) {
	timers, err := NewGocronTimers(nil)
	if err != nil {
		t.Fatalf("NewGocronTimers failed: %v", err)
	}
	defer func() { _ = timers.Shutdown() }()
	timers.Start()

	fired := make(chan struct{}, 1)
	h, err := timers.Arm(time.Now().Add(-time.Second), func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("past timer did not fire")
	}

	timers.Invalidate(h)
	timers.Invalidate(TimerHandle{})
}
