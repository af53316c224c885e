package scheduler

import (
	"context"
	"sync"

	"github.com/kahoon/engine/internal/task"
)

// Outcome is a single firing's result, re-exported from internal/task so
// callers outside the module never need to import an internal package.
type Outcome[S any] = task.Outcome[S]

// PromiseSink is the result sink for a single-shot (delayed/scheduled)
// record: exactly one Outcome is ever delivered.
type PromiseSink[S any] struct {
	promise *task.Promise[S]
}

func newPromiseSink[S any]() *PromiseSink[S] {
	return &PromiseSink[S]{promise: task.NewPromise[S]()}
}

// Wait blocks for the firing's outcome, or ctx being done.
func (p *PromiseSink[S]) Wait(ctx context.Context) (Outcome[S], error) {
	return p.promise.Wait(ctx)
}

// Done is closed once the single firing has settled.
func (p *PromiseSink[S]) Done() <-chan struct{} { return p.promise.Done() }

// StreamSink is the result sink for a repeating (cron/repeat) record: one
// Outcome per firing, with the outbound channel closed at schedule end (§4.6:
// exec budget exhausted or cancellation). deliver never drops an outcome —
// every firing must reach the stream (§4.6/§7) — so outcomes a consumer
// hasn't yet read accumulate on an internal unbounded buffer rather than on
// a fixed-size channel, decoupling the scheduler's fire goroutines from how
// promptly the host drains Outcomes.
type StreamSink[S any] struct {
	ch        chan Outcome[S]
	in        chan Outcome[S]
	wg        sync.WaitGroup
	finishOne sync.Once
}

func newStreamSink[S any]() *StreamSink[S] {
	s := &StreamSink[S]{
		ch: make(chan Outcome[S]),
		in: make(chan Outcome[S]),
	}
	go s.pump()
	return s
}

// pump is the sole owner of the unbounded buffer: it accepts outcomes off in
// as fast as they arrive and forwards them to ch in order, only as fast as
// the consumer reads, so deliver (the producer side) never blocks on a slow
// consumer.
func (s *StreamSink[S]) pump() {
	var buf []Outcome[S]
	for {
		if len(buf) == 0 {
			v, ok := <-s.in
			if !ok {
				close(s.ch)
				return
			}
			buf = append(buf, v)
			continue
		}
		select {
		case v, ok := <-s.in:
			if !ok {
				for _, o := range buf {
					s.ch <- o
				}
				close(s.ch)
				return
			}
			buf = append(buf, v)
		case s.ch <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Outcomes returns the cold, pull-based channel of per-firing outcomes. It is
// closed once the schedule ends and every buffered outcome has been read.
func (s *StreamSink[S]) Outcomes() <-chan Outcome[S] { return s.ch }

// track registers an in-flight firing. Must be called synchronously, before
// the firing goroutine is spawned, so finish can't race a track that hasn't
// happened yet.
func (s *StreamSink[S]) track() { s.wg.Add(1) }

func (s *StreamSink[S]) deliver(o Outcome[S]) {
	defer s.wg.Done()
	s.in <- o
}

// finish closes the outcome stream once every tracked firing has delivered,
// so a concurrent deliver can never race a close. Safe to call more than
// once.
func (s *StreamSink[S]) finish() {
	s.finishOne.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.in)
		}()
	})
}
