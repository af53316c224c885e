// Package scheduler implements time-based firing of units of work: one-shot
// delayed or absolute-time firing, and repeating cron/interval firing, all
// served out of a single min-heap ordered by due time (§4.6).
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kahoon/engine/errs"
	"github.com/kahoon/engine/telemetry"
)

// Scheduler owns a min-heap of pending schedule records and a single driver
// goroutine that sleeps until the next due time, fires it, and reinserts
// repeating records at their next occurrence.
type Scheduler struct {
	sink telemetry.Sink

	mu     sync.Mutex
	h      recordHeap
	byID   map[recordKey]*heapEntry
	nextID recordKey
	wake   chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithTelemetry installs a telemetry.Sink used for scheduler-level logging
// of firing failures. Validation and parse errors are returned by the Add*
// helpers, not logged.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// New constructs a Scheduler. Call Start to begin serving due records.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		byID: make(map[recordKey]*heapEntry),
		wake: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.sink = telemetry.OrNop(s.sink)
	return s
}

// Start launches the driver loop. Cancelling ctx (or calling Stop) begins
// shutdown: every still-pending record is cancelled and its sink settled as
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the driver loop and waits for it to drain, or for ctx to
// finish first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	doneCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) nextKey() recordKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// insert adds rec to the heap and wakes the driver loop if rec is now the
// earliest-due record (or the heap was empty).
func (s *Scheduler) insert(rec record) {
	s.mu.Lock()
	e := &heapEntry{rec: rec}
	heap.Push(&s.h, e)
	s.byID[rec.recordID()] = e
	wasMin := s.h[0] == e
	s.mu.Unlock()
	if wasMin {
		s.poke()
	}
}

// evict removes the record with the given key from the heap, if still
// present, reporting whether it found (and removed) it.
func (s *Scheduler) evict(key recordKey) bool {
	s.mu.Lock()
	e, ok := s.byID[key]
	if ok {
		heap.Remove(&s.h, e.index)
		delete(s.byID, key)
	}
	s.mu.Unlock()
	return ok
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is the single driver goroutine: sleep until the earliest due time (or
// a new earlier insert wakes it early), pop and fire every record now due,
// reinsert repeating records that report they should continue.
func (s *Scheduler) loop() {
	defer s.wg.Done()
	defer s.drain()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		if s.h.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.h[0].rec.dueTime())
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			continue
		case <-timer.C:
			s.fireDue()
		}
	}
}

// fireDue pops and fires every record whose due time has arrived.
func (s *Scheduler) fireDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.h.Len() == 0 || s.h[0].rec.dueTime().After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.h).(*heapEntry)
		delete(s.byID, e.rec.recordID())
		s.mu.Unlock()

		if e.rec.fire(now) {
			s.insert(e.rec)
		}
	}
}

// drain cancels every record still pending when the driver loop exits.
func (s *Scheduler) drain() {
	s.mu.Lock()
	pending := make([]record, 0, s.h.Len())
	for _, e := range s.h {
		pending = append(pending, e.rec)
	}
	s.h = nil
	s.byID = make(map[recordKey]*heapEntry)
	s.mu.Unlock()

	for _, p := range pending {
		p.cancelNow()
	}
}

// watch links a watcher goroutine to callerCtx: if callerCtx is cancelled
// before rec fires or is otherwise removed, watch evicts rec from the heap
// and, only if the eviction actually found it still pending, calls
// rec.cancelNow(). A record that already fired naturally removes itself
// from byID first, so the watcher's evict is a harmless no-op in that case.
func (s *Scheduler) watch(callerCtx context.Context, key recordKey, rec record) {
	go func() {
		select {
		case <-callerCtx.Done():
			if s.evict(key) {
				rec.cancelNow()
			}
		case <-s.ctx.Done():
			// scheduler shutdown already drains and cancels every pending
			// record; nothing further to do here.
		}
	}()
}

// linkedCancel derives a context that is cancelled when either callerCtx or
// the scheduler's own shutdown context is cancelled. context.Context has no
// native multi-parent merge, so this forwards shutdown manually.
func (s *Scheduler) linkedCancel(callerCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(callerCtx)
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// AddDelayed schedules fn to run once, after delay has elapsed.
func AddDelayed[S any](s *Scheduler, ctx context.Context, delay time.Duration, fn Unit[S]) (*PromiseSink[S], error) {
	if fn == nil {
		return nil, errs.New(errs.KindNullArgument, "fn must not be nil")
	}
	if delay <= 0 {
		return nil, errs.New(errs.KindBadDelay, "delay must be positive")
	}
	return addSingle(s, ctx, time.Now().Add(delay), fn)
}

// AddScheduled schedules fn to run once, at the given absolute time. at must
// be strictly after the current time (§4.6: "time > now").
func AddScheduled[S any](s *Scheduler, ctx context.Context, at time.Time, fn Unit[S]) (*PromiseSink[S], error) {
	if fn == nil {
		return nil, errs.New(errs.KindNullArgument, "fn must not be nil")
	}
	if !at.After(time.Now()) {
		return nil, errs.New(errs.KindBadTime, "at must be strictly after now")
	}
	return addSingle(s, ctx, at, fn)
}

func addSingle[S any](s *Scheduler, callerCtx context.Context, due time.Time, fn Unit[S]) (*PromiseSink[S], error) {
	ctx, cancel := s.linkedCancel(callerCtx)
	sink := newPromiseSink[S]()
	rec := &singleRecord[S]{
		baseRecord: baseRecord{
			id:     uuid.New(),
			key:    s.nextKey(),
			due:    due,
			ctx:    ctx,
			cancel: cancel,
			sink:   s.sink,
		},
		fn:   fn,
		sink: sink,
	}
	s.insert(rec)
	s.watch(callerCtx, rec.key, rec)
	return sink, nil
}

// AddRepeated schedules fn to run every interval, starting at start (or
// immediately, if start is zero), continuing until execBudget firings have
// run or ctx is cancelled. execBudget == 0 means no firings at all: the
// returned stream completes immediately, empty. A negative execBudget means
// unbounded. Firing times land at start + k*interval exactly; drift never
// accumulates (§4.6).
func AddRepeated[S any](s *Scheduler, ctx context.Context, start time.Time, interval time.Duration, execBudget int, fn Unit[S]) (*StreamSink[S], error) {
	if fn == nil {
		return nil, errs.New(errs.KindNullArgument, "fn must not be nil")
	}
	if interval <= 0 {
		return nil, errs.New(errs.KindBadDelay, "interval must be positive")
	}
	if execBudget == 0 {
		sink := newStreamSink[S]()
		sink.finish()
		return sink, nil
	}
	if start.IsZero() {
		start = time.Now()
	}
	nextFn := func(prevDue, _ time.Time) (time.Time, bool) {
		return prevDue.Add(interval), true
	}
	return addRepeating(s, ctx, start, execBudget, nextFn, fn)
}

// AddCron schedules fn according to a standard 6-field cron expression
// (seconds precision, per §8 scenario 5's `*/1 * * * * *`), starting from the
// first occurrence after now, continuing until execBudget firings have run,
// the cron schedule reports no further occurrence, or ctx is cancelled.
// execBudget == 0, or an expression with no future occurrence, means no
// firings at all: the returned stream completes immediately, empty. A
// negative execBudget means unbounded.
func AddCron[S any](s *Scheduler, ctx context.Context, expr string, execBudget int, fn Unit[S]) (*StreamSink[S], error) {
	if fn == nil {
		return nil, errs.New(errs.KindNullArgument, "fn must not be nil")
	}
	if execBudget == 0 {
		sink := newStreamSink[S]()
		sink.finish()
		return sink, nil
	}
	cs, err := parseCron(expr)
	if err != nil {
		return nil, err
	}
	first, ok := cs.next(time.Now())
	if !ok {
		sink := newStreamSink[S]()
		sink.finish()
		return sink, nil
	}
	nextFn := func(_ time.Time, now time.Time) (time.Time, bool) {
		return cs.next(now)
	}
	return addRepeating(s, ctx, first, execBudget, nextFn, fn)
}

// addRepeating inserts a repeating record. The execBudget == 0 case (no
// firings) is handled by each public Add* entry point before reaching here,
// since it needs no scheduler record at all; only execBudget != 0 arrives.
func addRepeating[S any](s *Scheduler, callerCtx context.Context, due time.Time, execBudget int, nextFn func(prevDue, now time.Time) (time.Time, bool), fn Unit[S]) (*StreamSink[S], error) {
	ctx, cancel := s.linkedCancel(callerCtx)
	sink := newStreamSink[S]()
	budget := execBudget
	if budget < 0 {
		budget = -1
	}
	rec := &repeatingRecord[S]{
		baseRecord: baseRecord{
			id:     uuid.New(),
			key:    s.nextKey(),
			due:    due,
			ctx:    ctx,
			cancel: cancel,
			sink:   s.sink,
		},
		fn:         fn,
		sink:       sink,
		execBudget: budget,
		nextFn:     nextFn,
	}
	s.insert(rec)
	s.watch(callerCtx, rec.key, rec)
	return sink, nil
}
