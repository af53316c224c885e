// Package conveyor processes a stream of input documents through a bounded
// pool of Machine instances, re-emitting results in the same order the
// documents arrived even though they may finish out of order (§6: streaming
// targets with an ordering guarantee).
package conveyor

import (
	"context"
	"sync"

	"github.com/kahoon/engine/internal/arg"
	"github.com/kahoon/engine/internal/task"
	"github.com/kahoon/engine/telemetry"
)

// Machine transforms one document of type D into a result of type S. A
// Machine instance is the conveyor's "argument": it may be static, built
// fresh per document, or reused, exactly like any other argument type.
type Machine[D, S any] interface {
	Process(ctx context.Context, doc D) (S, error)
}

// Outcome is a single document's processing result, including the error
// produced by an exhausted retry budget or cancellation.
type Outcome[S any] struct {
	Value     S
	Err       error
	Cancelled bool
}

// Config configures a Conveyor's machine pool.
type Config[D, S any] struct {
	Strategy      arg.Strategy
	MaxConcurrent int
	StaticArgs    []Machine[D, S]
	Factory       func(ctx context.Context) (Machine[D, S], error)
	// MaxPriority is the highest priority slot accepted by Process (slots run
	// 0..MaxPriority inclusive). Zero means a plain FIFO conveyor; ProcessStream
	// always submits at priority 0 regardless of this setting.
	MaxPriority int
	// MaxAttempts caps the attempts a caller may request of Process/
	// ProcessStream; values above it (including the constructor's default
	// attempts) are coerced down (§6/§8: "attempts_count... > max_attempts is
	// coerced to max_attempts"). Zero means no cap.
	MaxAttempts int
	Sink        telemetry.Sink
}

// Conveyor binds a stream of documents to a pool of Machines, emitting
// results in input order.
type Conveyor[D, S any] struct {
	manager     *task.Manager[Machine[D, S], S]
	processor   *arg.Processor[Machine[D, S], S]
	attempts    int
	maxAttempts int
}

// New builds a Conveyor. Call Start before Process/ProcessStream.
func New[D, S any](cfg Config[D, S], attempts int) (*Conveyor[D, S], error) {
	if attempts < 1 {
		attempts = 1
	}
	if cfg.MaxAttempts > 0 && attempts > cfg.MaxAttempts {
		attempts = cfg.MaxAttempts
	}
	manager := task.NewPriorityManager[Machine[D, S], S](cfg.MaxPriority)

	processor, err := arg.New[Machine[D, S], S](manager, arg.Config[Machine[D, S]]{
		Strategy:      cfg.Strategy,
		MaxConcurrent: cfg.MaxConcurrent,
		StaticArgs:    cfg.StaticArgs,
		Factory:       cfg.Factory,
		Sink:          cfg.Sink,
	})
	if err != nil {
		return nil, err
	}

	return &Conveyor[D, S]{manager: manager, processor: processor, attempts: attempts, maxAttempts: cfg.MaxAttempts}, nil
}

// Start launches the conveyor's worker loop.
func (c *Conveyor[D, S]) Start(ctx context.Context) { c.processor.Start(ctx) }

// Stop drains in-flight work and stops the worker loop.
func (c *Conveyor[D, S]) Stop(ctx context.Context) error { return c.processor.Stop(ctx) }

// Process submits a single document at the given priority, with up to
// attempts total tries on failure, returning a Promise for its eventual
// outcome. This is the single-document counterpart to ProcessStream, for the
// common case of a host that has just one document at a time to run (§6
// External Interfaces: "process" is a distinct operation from
// "process_stream").
func (c *Conveyor[D, S]) Process(callerCtx context.Context, doc D, priority int, attempts int) (*task.Promise[S], error) {
	if c.maxAttempts > 0 && attempts > c.maxAttempts {
		attempts = c.maxAttempts
	}
	w := task.NewWrapper[Machine[D, S], S](callerCtx, func(ctx context.Context, m Machine[D, S]) (S, error) {
		return m.Process(ctx, doc)
	}, attempts)
	if err := c.manager.Enqueue(w, priority); err != nil {
		return nil, err
	}
	return w.Promise, nil
}

// ProcessStream submits every document read from in, one task per document,
// and returns a channel delivering their Outcomes in the same order the
// documents were read — not the order processing finished. The returned
// channel is closed once in is closed and every submitted task has
// completed or ctx is done.
func (c *Conveyor[D, S]) ProcessStream(ctx context.Context, in <-chan D) <-chan Outcome[S] {
	out := make(chan Outcome[S])

	go func() {
		defer close(out)

		var (
			mu       sync.Mutex
			nextEmit uint64
			pending  = make(map[uint64]Outcome[S])
			wg       sync.WaitGroup
		)

		emit := func(seq uint64, o Outcome[S]) {
			mu.Lock()
			pending[seq] = o
			ready := make([]Outcome[S], 0, 1)
			for {
				v, ok := pending[nextEmit]
				if !ok {
					break
				}
				ready = append(ready, v)
				delete(pending, nextEmit)
				nextEmit++
			}
			mu.Unlock()

			for _, v := range ready {
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}

		var seq uint64
	readLoop:
		for {
			select {
			case doc, ok := <-in:
				if !ok {
					break readLoop
				}
				mySeq := seq
				seq++

				w := task.NewWrapper[Machine[D, S], S](ctx, func(ctx context.Context, m Machine[D, S]) (S, error) {
					return m.Process(ctx, doc)
				}, c.attempts)

				wg.Add(1)
				go func(seq uint64, promise *task.Promise[S]) {
					defer wg.Done()
					o, err := promise.Wait(ctx)
					if err != nil {
						emit(seq, Outcome[S]{Cancelled: true})
						return
					}
					emit(seq, Outcome[S]{Value: o.Value, Err: o.Err, Cancelled: o.Cancelled})
				}(mySeq, w.Promise)

				if err := c.manager.Enqueue(w, 0); err != nil {
					w.Promise.SettleError(err)
				}
			case <-ctx.Done():
				break readLoop
			}
		}

		wg.Wait()
	}()

	return out
}
