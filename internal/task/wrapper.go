package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/kahoon/engine/telemetry"
)

// Call is a unit of user work bound to an argument of type A. Synchronous and
// asynchronous user code are collapsed into this one shape (§9 DESIGN
// NOTES): a synchronous function simply returns without blocking on
// anything the caller cares about.
type Call[A, S any] func(ctx context.Context, arg A) (S, error)

// Wrapper pairs a callable with its attempts counter and outcome Promise. It
// is argument-agnostic until Execute is called with a bound argument, so the
// same Wrapper type serves work (A = struct{}), access (A = R), and conveyor
// (A = M) queues.
type Wrapper[A, S any] struct {
	ID      uuid.UUID
	Call    Call[A, S]
	Promise *Promise[S]

	ctx               context.Context
	attemptsRemaining int
}

// NewWrapper builds a Wrapper. ctx is the linked cancellation scope: once it
// is done, the wrapper settles cancelled the next time it is observed
// (dropped by Manager.Take if still queued, or mid-flight inside Execute).
func NewWrapper[A, S any](ctx context.Context, call Call[A, S], attempts int) *Wrapper[A, S] {
	if attempts < 1 {
		attempts = 1
	}
	return &Wrapper[A, S]{
		ID:                uuid.New(),
		Call:              call,
		Promise:           NewPromise[S](),
		ctx:               ctx,
		attemptsRemaining: attempts,
	}
}

// Cancelled reports whether the wrapper's cancellation scope has already
// fired, without touching the promise.
func (w *Wrapper[A, S]) Cancelled() bool {
	return w.ctx.Err() != nil
}

// Execute runs the callable against arg. It returns true once the promise has
// been settled (success, exhausted failure, or cancellation), and false when
// the call failed but attempts remain — in which case the caller (the
// processor, via Manager.Revert) must re-queue the wrapper.
func (w *Wrapper[A, S]) Execute(arg A, sink telemetry.Sink) bool {
	if w.ctx.Err() != nil {
		w.Promise.SettleCancelled()
		return true
	}

	val, err := w.Call(w.ctx, arg)

	if w.ctx.Err() != nil {
		w.Promise.SettleCancelled()
		return true
	}

	if err == nil {
		w.Promise.SettleValue(val)
		return true
	}

	w.attemptsRemaining--
	if w.attemptsRemaining <= 0 {
		w.Promise.SettleError(err)
		return true
	}

	sink.Warn("task: attempt failed, will retry",
		telemetry.F("task_id", w.ID.String()),
		telemetry.F("remaining_attempts", w.attemptsRemaining),
		telemetry.F("error", err.Error()),
	)
	return false
}
