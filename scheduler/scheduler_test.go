package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kahoon/engine/errs"
)

func TestAddDelayed_FiresAfterDelayAndSettlesValue(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	sink, err := AddDelayed[string](s, ctx, 10*time.Millisecond, func(ctx context.Context) (string, error) {
		return "fired", nil
	})
	if err != nil {
		t.Fatalf("AddDelayed: %v", err)
	}

	o, err := sink.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if o.Err != nil || o.Cancelled || o.Value != "fired" {
		t.Fatalf("unexpected outcome: %+v", o)
	}
}

func TestAddDelayed_RejectsNegativeDelay(t *testing.T) {
	s := New()
	_, err := AddDelayed[int](s, context.Background(), -time.Second, func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadDelay) {
		t.Fatalf("expected KindBadDelay, got %v", err)
	}
}

func TestAddDelayed_RejectsZeroDelay(t *testing.T) {
	s := New()
	_, err := AddDelayed[int](s, context.Background(), 0, func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadDelay) {
		t.Fatalf("expected KindBadDelay, got %v", err)
	}
}

func TestAddDelayed_RejectsNilFn(t *testing.T) {
	s := New()
	_, err := AddDelayed[int](s, context.Background(), time.Second, nil)
	if !errs.Is(err, errs.KindNullArgument) {
		t.Fatalf("expected KindNullArgument, got %v", err)
	}
}

func TestAddScheduled_RejectsZeroTime(t *testing.T) {
	s := New()
	_, err := AddScheduled[int](s, context.Background(), time.Time{}, func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadTime) {
		t.Fatalf("expected KindBadTime, got %v", err)
	}
}

func TestAddScheduled_RejectsPastTime(t *testing.T) {
	s := New()
	_, err := AddScheduled[int](s, context.Background(), time.Now().Add(-time.Hour), func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadTime) {
		t.Fatalf("expected KindBadTime, got %v", err)
	}
}

func TestScheduler_CancelBeforeDueSettlesCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	callerCtx, callerCancel := context.WithCancel(context.Background())
	sink, err := AddDelayed[int](s, callerCtx, time.Hour, func(ctx context.Context) (int, error) {
		t.Fatal("should not fire once cancelled before due")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("AddDelayed: %v", err)
	}

	callerCancel()

	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("expected sink to settle promptly after cancellation")
	}

	o, err := sink.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !o.Cancelled {
		t.Fatalf("expected Cancelled outcome, got %+v", o)
	}
}

func TestScheduler_ErrorPropagatesToSink(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	boom := errors.New("boom")
	sink, err := AddDelayed[int](s, ctx, time.Millisecond, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if err != nil {
		t.Fatalf("AddDelayed: %v", err)
	}

	o, err := sink.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !errors.Is(o.Err, boom) {
		t.Fatalf("expected %v, got %v", boom, o.Err)
	}
}

func TestAddRepeated_FiresExecBudgetTimes(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	start := time.Now()
	stream, err := AddRepeated[int](s, ctx, start, 20*time.Millisecond, 3, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if err != nil {
		t.Fatalf("AddRepeated: %v", err)
	}

	count := 0
	for range stream.Outcomes() {
		count++
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 firings from the exec budget, got %d", count)
	}
}

func TestAddRepeated_RejectsNonPositiveInterval(t *testing.T) {
	s := New()
	_, err := AddRepeated[int](s, context.Background(), time.Time{}, 0, 1, func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadDelay) {
		t.Fatalf("expected KindBadDelay, got %v", err)
	}
}

func TestAddRepeated_ZeroBudgetCompletesImmediatelyEmpty(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	stream, err := AddRepeated[int](s, ctx, time.Time{}, 20*time.Millisecond, 0, func(ctx context.Context) (int, error) {
		t.Fatal("a zero exec budget must never fire")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("AddRepeated: %v", err)
	}

	count := 0
	select {
	case _, ok := <-stream.Outcomes():
		if ok {
			count++
		}
	case <-time.After(time.Second):
		t.Fatal("expected the stream to complete promptly")
	}
	if count != 0 {
		t.Fatalf("expected zero firings, got %d", count)
	}
}

func TestAddCron_RejectsBadExpression(t *testing.T) {
	s := New()
	_, err := AddCron[int](s, context.Background(), "not a cron expr", 1, func(ctx context.Context) (int, error) { return 0, nil })
	if !errs.Is(err, errs.KindBadCron) {
		t.Fatalf("expected KindBadCron, got %v", err)
	}
}

func TestAddCron_ZeroBudgetCompletesImmediatelyEmpty(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	stream, err := AddCron[int](s, ctx, "* * * * * *", 0, func(ctx context.Context) (int, error) {
		t.Fatal("a zero exec budget must never fire")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	select {
	case _, ok := <-stream.Outcomes():
		if ok {
			t.Fatal("expected zero firings")
		}
	case <-time.After(time.Second):
		t.Fatal("expected the stream to complete promptly")
	}
}

func TestAddCron_FiresOnEverySecondBoundary(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	const n = 3
	start := time.Now()
	stream, err := AddCron[int](s, ctx, "*/1 * * * * *", n, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	count := 0
	for o := range stream.Outcomes() {
		count++
		if o.Err != nil || o.Cancelled || o.Value != 7 {
			t.Fatalf("unexpected outcome: %+v", o)
		}
	}
	if count != n {
		t.Fatalf("expected exactly %d firings from the exec budget, got %d", n, count)
	}
	if elapsed := time.Since(start); elapsed < time.Duration(n-1)*time.Second {
		t.Fatalf("firings completed too fast to be real seconds-boundary ticks: %v", elapsed)
	}
}

func TestScheduler_StopCancelsPendingRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	runCtx, runCancel := context.WithCancel(ctx)
	s.Start(runCtx)

	sink, err := AddDelayed[int](s, ctx, time.Hour, func(ctx context.Context) (int, error) { return 0, nil })
	if err != nil {
		t.Fatalf("AddDelayed: %v", err)
	}

	runCancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("expected pending record to be cancelled on shutdown")
	}
}
