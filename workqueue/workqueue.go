// Package workqueue is the simplest host-facing façade over the engine's
// priority task manager and argument processor: a bounded-concurrency work
// queue with no meaningful argument to distribute, only a concurrency bound
// (§6: "direct" targets with no resource/document to bind). It is built on
// the static strategy with MaxConcurrent identical empty-struct slots, which
// is exactly a semaphore-bounded worker pool.
package workqueue

import (
	"context"

	"github.com/kahoon/engine/errs"
	"github.com/kahoon/engine/internal/arg"
	"github.com/kahoon/engine/internal/task"
	"github.com/kahoon/engine/telemetry"
)

// Queue is a bounded-concurrency, priority-ordered FIFO work queue.
type Queue[S any] struct {
	manager     *task.Manager[struct{}, S]
	processor   *arg.Processor[struct{}, S]
	maxAttempts int
}

// Config configures a Queue.
type Config struct {
	// MaxConcurrent bounds how many tasks may run at once. Must be >= 1.
	MaxConcurrent int
	// MaxPriority is the highest priority slot accepted by Submit (slots run
	// 0..MaxPriority inclusive). Zero means a plain FIFO queue.
	MaxPriority int
	// MaxAttempts caps the attempts a caller may request of Submit; values
	// above it are coerced down (§6/§8: "attempts_count... > max_attempts is
	// coerced to max_attempts"). Zero means no cap.
	MaxAttempts int
	Sink        telemetry.Sink
}

// New builds a Queue. Call Start before Submitting any work.
func New[S any](cfg Config) (*Queue[S], error) {
	if cfg.MaxConcurrent < 1 {
		return nil, errs.New(errs.KindNullArgument, "MaxConcurrent must be at least 1")
	}

	manager := task.NewPriorityManager[struct{}, S](cfg.MaxPriority)

	staticArgs := make([]struct{}, cfg.MaxConcurrent)
	processor, err := arg.New[struct{}, S](manager, arg.Config[struct{}]{
		Strategy:   arg.StrategyStatic,
		StaticArgs: staticArgs,
		Sink:       cfg.Sink,
	})
	if err != nil {
		return nil, err
	}

	return &Queue[S]{manager: manager, processor: processor, maxAttempts: cfg.MaxAttempts}, nil
}

// Start launches the queue's worker loop.
func (q *Queue[S]) Start(ctx context.Context) { q.processor.Start(ctx) }

// Stop drains in-flight work and stops the worker loop.
func (q *Queue[S]) Stop(ctx context.Context) error { return q.processor.Stop(ctx) }

// Submit enqueues call at the given priority, with up to attempts total
// tries on failure, returning a Promise for its eventual outcome. call's ctx
// is derived from callerCtx: cancelling callerCtx cancels the task whether
// it is still queued or already running.
func (q *Queue[S]) Submit(callerCtx context.Context, priority int, attempts int, call func(ctx context.Context) (S, error)) (*task.Promise[S], error) {
	if q.maxAttempts > 0 && attempts > q.maxAttempts {
		attempts = q.maxAttempts
	}
	w := task.NewWrapper[struct{}, S](callerCtx, func(ctx context.Context, _ struct{}) (S, error) {
		return call(ctx)
	}, attempts)
	if err := q.manager.Enqueue(w, priority); err != nil {
		return nil, err
	}
	return w.Promise, nil
}
