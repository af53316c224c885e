// Package accessqueue serializes access to a shared, limited resource (a
// database handle, a browser session, an external API client) across
// competing tasks, using the full six-strategy argument processor: static,
// reuse, or one-time provisioning, each at single or multi concurrency
// (§4.3, §6: resource-bound targets).
package accessqueue

import (
	"context"

	"github.com/kahoon/engine/internal/arg"
	"github.com/kahoon/engine/internal/task"
	"github.com/kahoon/engine/telemetry"
)

// Strategy re-exports the argument provisioning strategy so callers never
// need to import the internal arg package directly.
type Strategy = arg.Strategy

const (
	StrategyStatic  = arg.StrategyStatic
	StrategyReuse   = arg.StrategyReuse
	StrategyOneTime = arg.StrategyOneTime
)

// Activatable and Throttleable let a resource type opt into lifecycle
// activation (e.g. opening/closing a connection) and pacing between uses
// (e.g. a rate-limited API client), re-exported from internal/arg.
type Activatable = arg.Activatable
type Throttleable = arg.Throttleable

// Config configures an accessqueue.Queue.
type Config[R any] struct {
	Strategy      Strategy
	MaxConcurrent int
	StaticArgs    []R
	Factory       func(ctx context.Context) (R, error)
	MaxPriority   int
	// MaxAttempts caps the attempts a caller may request of Submit; values
	// above it are coerced down (§6/§8: "attempts_count... > max_attempts is
	// coerced to max_attempts"). Zero means no cap.
	MaxAttempts int
	Sink        telemetry.Sink
}

// Queue binds tasks to a resource of type R under Config's strategy.
type Queue[R, S any] struct {
	manager     *task.Manager[R, S]
	processor   *arg.Processor[R, S]
	maxAttempts int
}

// New builds a Queue. Call Start before Submitting any work.
func New[R, S any](cfg Config[R]) (*Queue[R, S], error) {
	manager := task.NewPriorityManager[R, S](cfg.MaxPriority)

	processor, err := arg.New[R, S](manager, arg.Config[R]{
		Strategy:      cfg.Strategy,
		MaxConcurrent: cfg.MaxConcurrent,
		StaticArgs:    cfg.StaticArgs,
		Factory:       cfg.Factory,
		Sink:          cfg.Sink,
	})
	if err != nil {
		return nil, err
	}

	return &Queue[R, S]{manager: manager, processor: processor, maxAttempts: cfg.MaxAttempts}, nil
}

// Start launches the queue's worker loop.
func (q *Queue[R, S]) Start(ctx context.Context) { q.processor.Start(ctx) }

// Stop drains in-flight work and stops the worker loop.
func (q *Queue[R, S]) Stop(ctx context.Context) error { return q.processor.Stop(ctx) }

// Submit enqueues call at the given priority, bound to a resource instance
// at execution time per Config's strategy, with up to attempts total tries
// on failure.
func (q *Queue[R, S]) Submit(callerCtx context.Context, priority int, attempts int, call func(ctx context.Context, resource R) (S, error)) (*task.Promise[S], error) {
	if q.maxAttempts > 0 && attempts > q.maxAttempts {
		attempts = q.maxAttempts
	}
	w := task.NewWrapper[R, S](callerCtx, call, attempts)
	if err := q.manager.Enqueue(w, priority); err != nil {
		return nil, err
	}
	return w.Promise, nil
}
