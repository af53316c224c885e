package workqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kahoon/engine/errs"
)

func TestQueue_SubmitRunsAndSettles(t *testing.T) {
	q, err := New[string](Config{MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	promise, err := q.Submit(ctx, 0, 1, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	o, err := promise.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if o.Value != "done" {
		t.Fatalf("expected %q, got %q", "done", o.Value)
	}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q, err := New[int](Config{MaxConcurrent: 1, MaxPriority: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	var mu sync.Mutex
	var order []int

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(ctx, 0, 1, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	lowP, _ := q.Submit(ctx, 0, 1, func(ctx context.Context) (int, error) {
		mu.Lock()
		order = append(order, 0)
		mu.Unlock()
		return 0, nil
	})
	highP, _ := q.Submit(ctx, 1, 1, func(ctx context.Context) (int, error) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		return 0, nil
	})

	close(release)
	lowP.Wait(context.Background())
	highP.Wait(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 {
		t.Fatalf("expected the higher-priority task first, got %v", order)
	}
}

func TestQueue_RetryExhaustionSettlesError(t *testing.T) {
	q, err := New[int](Config{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	boom := errors.New("boom")
	var attempts int
	promise, err := q.Submit(ctx, 0, 3, func(ctx context.Context) (int, error) {
		attempts++
		return 0, boom
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	o, err := promise.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !errors.Is(o.Err, boom) {
		t.Fatalf("expected %v, got %v", boom, o.Err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestNew_RejectsZeroConcurrency(t *testing.T) {
	_, err := New[int](Config{MaxConcurrent: 0})
	if !errs.Is(err, errs.KindNullArgument) {
		t.Fatalf("expected KindNullArgument, got %v", err)
	}
}

func TestQueue_StopDrainsInFlight(t *testing.T) {
	q, err := New[int](Config{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	q.Start(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(ctx, 0, 1, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})

	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_StopCancelsQueuedNeverStarted(t *testing.T) {
	q, err := New[int](Config{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	q.Start(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(ctx, 0, 1, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	// This second submission never gets taken off the queue: the sole
	// worker slot is occupied by the first task until after Stop has begun.
	queued, err := q.Submit(ctx, 0, 1, func(ctx context.Context) (int, error) {
		t.Fatal("a never-taken task must not run after Stop")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Stop waits for the in-flight first task, so it is released from
	// another goroutine once Stop is underway.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	o, err := queued.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !o.Cancelled {
		t.Fatalf("expected the never-taken task to settle cancelled, got %+v", o)
	}
}
