package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kahoon/engine/telemetry"
)

// Unit is a schedulable unit of work. It is the same (ctx, arg) -> (S, err)
// shape as task.Call with no argument: a synchronous function just returns
// without blocking on anything the caller cares about, an asynchronous one
// blocks on ctx or a channel internally (§9 DESIGN NOTES collapses
// sync/async callable variants into one shape). Queued targets (§4.6) are
// composed by handing a Unit that itself calls into a work/access/conveyor
// queue and waits on the resulting promise — the scheduler only ever sees
// "a function to call when due".
type Unit[S any] func(ctx context.Context) (S, error)

type baseRecord struct {
	id     uuid.UUID
	key    recordKey
	due    time.Time
	ctx    context.Context
	cancel context.CancelFunc
	sink   telemetry.Sink
}

func (b *baseRecord) recordID() recordKey { return b.key }
func (b *baseRecord) dueTime() time.Time  { return b.due }
func (b *baseRecord) seqNum() uint64      { return uint64(b.key) }

// singleRecord fires exactly once: delayed or absolute-time scheduling.
type singleRecord[S any] struct {
	baseRecord
	fn   Unit[S]
	sink *PromiseSink[S]
}

func (r *singleRecord[S]) fire(now time.Time) bool {
	go func() {
		defer r.cancel()
		val, err := r.fn(r.ctx)
		switch {
		case r.ctx.Err() != nil:
			r.sink.promise.SettleCancelled()
		case err != nil:
			r.sink.promise.SettleError(err)
			r.baseRecord.sink.Warn("scheduler: delayed/scheduled unit failed",
				telemetry.F("record_id", r.id.String()), telemetry.F("error", err.Error()))
		default:
			r.sink.promise.SettleValue(val)
		}
	}()
	return false
}

func (r *singleRecord[S]) cancelNow() {
	r.sink.promise.SettleCancelled()
	r.cancel()
}

// repeatingRecord fires on a cron schedule or a fixed interval, according to
// nextFn, until execBudget is exhausted, nextFn reports no further
// occurrence, or its cancellation scope fires.
type repeatingRecord[S any] struct {
	baseRecord
	fn         Unit[S]
	sink       *StreamSink[S]
	execBudget int // -1 means unbounded
	nextFn     func(prevDue, now time.Time) (time.Time, bool)
}

func (r *repeatingRecord[S]) fire(now time.Time) bool {
	final := false
	if r.execBudget > 0 {
		r.execBudget--
		final = r.execBudget == 0
	}
	var next time.Time
	if !final {
		var ok bool
		next, ok = r.nextFn(r.due, now)
		final = !ok
	}

	r.sink.track()
	go func() {
		if final {
			// The record ends with this firing; its scope is released only
			// after the firing has run, so the last outcome is not cancelled.
			defer r.cancel()
		}
		val, err := r.fn(r.ctx)
		switch {
		case r.ctx.Err() != nil:
			r.sink.deliver(Outcome[S]{Cancelled: true})
		case err != nil:
			r.sink.deliver(Outcome[S]{Err: err})
			r.baseRecord.sink.Warn("scheduler: repeating unit failed",
				telemetry.F("record_id", r.id.String()), telemetry.F("error", err.Error()))
		default:
			r.sink.deliver(Outcome[S]{Value: val})
		}
	}()

	if final {
		r.sink.finish()
		return false
	}
	r.due = next
	return true
}

func (r *repeatingRecord[S]) cancelNow() {
	r.sink.finish()
	r.cancel()
}
