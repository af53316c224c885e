package arg

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kahoon/engine/errs"
	"github.com/kahoon/engine/internal/task"
	"github.com/kahoon/engine/telemetry"
)

// Factory builds a fresh argument instance, used by the reuse and one-time
// strategies.
type Factory[A any] func(ctx context.Context) (A, error)

// Config configures a Processor's concurrency and provisioning strategy.
type Config[A any] struct {
	Strategy      Strategy
	MaxConcurrent int        // ignored (derived from len(StaticArgs)) when Strategy == StrategyStatic
	StaticArgs    []A        // required, non-empty, when Strategy == StrategyStatic
	Factory       Factory[A] // required when Strategy != StrategyStatic
	Sink          telemetry.Sink
}

// holder tracks per-instance activation state alongside the argument value,
// since "active" is processor-tracked state, not a property the argument
// exposes itself (§3: "Processor... optional per-argument state").
type holder[A any] struct {
	arg     A
	active  bool
	limiter *rate.Limiter
}

// Processor binds tasks taken from a Queue to arguments under a concurrency
// bound, running the shared driver loop and run_one algorithm of §4.3. It
// also serves as the Task Worker (§2): Start's internal goroutine is the
// "wait-for-task -> invoke processor -> repeat" loop, so no separate worker
// type is needed (see DESIGN.md).
type Processor[A, S any] struct {
	queue         task.Queue[A, S]
	strategy      Strategy
	maxConcurrent int
	factory       Factory[A]
	sink          telemetry.Sink

	permits chan struct{}
	pool    chan *holder[A] // only used for static/reuse

	wg       sync.WaitGroup
	runWG    sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New builds a Processor. An empty StaticArgs with Strategy == StrategyStatic
// is an "empty argument set" construction error.
func New[A, S any](queue task.Queue[A, S], cfg Config[A]) (*Processor[A, S], error) {
	sink := telemetry.OrNop(cfg.Sink)

	p := &Processor[A, S]{
		queue:    queue,
		strategy: cfg.Strategy,
		factory:  cfg.Factory,
		sink:     sink,
	}

	switch cfg.Strategy {
	case StrategyStatic:
		if len(cfg.StaticArgs) == 0 {
			return nil, errs.New(errs.KindEmptyArgumentSet, "static strategy requires at least one argument")
		}
		p.maxConcurrent = len(cfg.StaticArgs)
		p.pool = make(chan *holder[A], p.maxConcurrent)
		for _, a := range cfg.StaticArgs {
			p.pool <- &holder[A]{arg: a}
		}
	case StrategyReuse:
		p.maxConcurrent = max1(cfg.MaxConcurrent)
		p.pool = make(chan *holder[A], p.maxConcurrent)
	case StrategyOneTime:
		p.maxConcurrent = max1(cfg.MaxConcurrent)
	}

	p.permits = make(chan struct{}, p.maxConcurrent)
	return p, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Start launches the driver loop on its own goroutine. Cancelling ctx (or
// calling Stop) stops the loop; Stop then waits for in-flight tasks.
func (p *Processor[A, S]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop cancels the driver loop and blocks until all in-flight runOne
// goroutines have released their arguments, or ctx is done first.
func (p *Processor[A, S]) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})

	doneCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.drainPending()
		p.runWG.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainPending settles as cancelled every wrapper still sitting in the queue
// once the driver loop has exited, so a caller awaiting a queued-but-never-
// taken wrapper's promise doesn't block forever after Stop returns (§5:
// "shutdown cancels all pending wrappers... returns only after in-flight
// sub-tasks settle").
func (p *Processor[A, S]) drainPending() {
	for _, w := range p.queue.DrainAll() {
		w.Promise.SettleCancelled()
	}
}

func (p *Processor[A, S]) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		if err := p.queue.WaitForTask(ctx); err != nil {
			return
		}
		for p.queue.HasTask() {
			if ctx.Err() != nil {
				return
			}
			// Capacity is acquired before a task is taken, so the task chosen
			// is the highest-priority one waiting when an argument frees up.
			h, release, err := p.acquire(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.sink.Error("arg: argument factory failed", err)
				continue
			}

			w, meta, ok := p.queue.Take()
			if !ok {
				release(h)
				break
			}

			p.runWG.Add(1)
			go p.runOne(ctx, w, meta, h, release)
		}
	}
}

// release puts a used holder back in circulation (static/reuse) and frees
// its concurrency permit.
func (p *Processor[A, S]) release(h *holder[A]) {
	if p.pool != nil {
		p.pool <- h
	}
	<-p.permits
}

// acquire implements the six acquisition strategies of §4.3.
func (p *Processor[A, S]) acquire(ctx context.Context) (*holder[A], func(*holder[A]), error) {
	select {
	case p.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	switch p.strategy {
	case StrategyStatic:
		select {
		case h := <-p.pool:
			return h, p.release, nil
		case <-ctx.Done():
			<-p.permits
			return nil, nil, ctx.Err()
		}
	case StrategyReuse:
		select {
		case h := <-p.pool:
			return h, p.release, nil
		default:
			a, err := p.factory(ctx)
			if err != nil {
				<-p.permits
				return nil, nil, err
			}
			return &holder[A]{arg: a}, p.release, nil
		}
	default: // StrategyOneTime
		a, err := p.factory(ctx)
		if err != nil {
			<-p.permits
			return nil, nil, err
		}
		return &holder[A]{arg: a}, func(*holder[A]) { <-p.permits }, nil
	}
}

// runOne implements the run_one algorithm of §4.3.
func (p *Processor[A, S]) runOne(ctx context.Context, w *task.Wrapper[A, S], meta task.Meta, h *holder[A], release func(*holder[A])) {
	defer p.runWG.Done()
	defer release(h)

	if act, ok := any(h.arg).(Activatable); ok && !h.active {
		if err := act.Activate(ctx); err != nil {
			p.sink.Error("arg: activation failed", err, telemetry.F("task_id", w.ID.String()))
			p.queue.Revert(w, meta)
			return
		}
		h.active = true
	}

	done := w.Execute(h.arg, p.sink)
	if !done {
		p.queue.Revert(w, meta)
	}

	if th, ok := any(h.arg).(Throttleable); ok && p.queue.HasTask() {
		p.throttle(ctx, h, th.ThrottleInterval())
	}

	if p.strategy.deactivateOnRelease() {
		if act, ok := any(h.arg).(Activatable); ok && h.active {
			if err := act.Deactivate(ctx); err != nil {
				p.sink.Warn("arg: deactivation failed", telemetry.F("task_id", w.ID.String()), telemetry.F("error", err.Error()))
			}
			h.active = false
		}
	}
}

// throttle paces successive uses of a Throttleable argument with a
// single-token rate.Limiter, rather than a raw time.Sleep: the first wait on
// an argument blocks for the full interval, later waits block only until
// interval has passed since the previous one, and every wait respects ctx
// cancellation promptly (§5 suspension points).
func (p *Processor[A, S]) throttle(ctx context.Context, h *holder[A], interval time.Duration) {
	if interval <= 0 {
		return
	}
	if h.limiter == nil {
		h.limiter = rate.NewLimiter(rate.Every(interval), 1)
		h.limiter.Allow() // consume the initial burst token so the first wait is real
	}
	if err := h.limiter.Wait(ctx); err != nil {
		p.sink.Warn("arg: throttle wait aborted", telemetry.F("error", err.Error()))
	}
}
