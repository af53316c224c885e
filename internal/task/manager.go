package task

import (
	"context"
	"sync"

	"github.com/kahoon/engine/errs"
)

// Meta is returned alongside a taken wrapper and passed back to Revert so a
// reverted task returns to the tail of the priority slot it came from (§3
// ownership: "revert... puts it back at the same slot").
type Meta struct {
	Priority int
}

// Queue is the interface a Processor drains. *Manager satisfies it; a
// manager from NewFIFOManager is simply a priority manager with one slot.
type Queue[A, S any] interface {
	Enqueue(w *Wrapper[A, S], priority int) error
	HasTask() bool
	Take() (*Wrapper[A, S], Meta, bool)
	Revert(w *Wrapper[A, S], meta Meta)
	WaitForTask(ctx context.Context) error
	DrainAll() []*Wrapper[A, S]
}

// Manager is a priority-ordered FIFO of pending wrappers. Priority slots run
// from 0 to MaxPriority inclusive; Take always returns from the
// highest-numbered non-empty slot (strict priority, no aging, no
// preemption), FIFO within a slot.
type Manager[A, S any] struct {
	mu          sync.Mutex
	slots       [][]*Wrapper[A, S]
	maxPriority int
	notify      chan struct{}
}

// NewFIFOManager returns a non-priority manager: a single FIFO slot at
// priority 0.
func NewFIFOManager[A, S any]() *Manager[A, S] {
	return NewPriorityManager[A, S](0)
}

// NewPriorityManager returns a manager with maxPriority+1 FIFO slots.
func NewPriorityManager[A, S any](maxPriority int) *Manager[A, S] {
	return &Manager[A, S]{
		slots:       make([][]*Wrapper[A, S], maxPriority+1),
		maxPriority: maxPriority,
		notify:      make(chan struct{}),
	}
}

func (m *Manager[A, S]) Enqueue(w *Wrapper[A, S], priority int) error {
	if priority < 0 || priority > m.maxPriority {
		return errs.New(errs.KindBadPriority, "priority out of range")
	}

	m.mu.Lock()
	wasEmpty := m.isEmptyLocked()
	m.slots[priority] = append(m.slots[priority], w)
	if wasEmpty {
		m.signalLocked()
	}
	m.mu.Unlock()
	return nil
}

// Revert re-inserts a wrapper at the tail of the slot it was taken from.
// The open question of head-vs-tail placement is resolved as tail, uniformly
// across strategies (spec.md §9).
func (m *Manager[A, S]) Revert(w *Wrapper[A, S], meta Meta) {
	m.mu.Lock()
	wasEmpty := m.isEmptyLocked()
	m.slots[meta.Priority] = append(m.slots[meta.Priority], w)
	if wasEmpty {
		m.signalLocked()
	}
	m.mu.Unlock()
}

func (m *Manager[A, S]) HasTask() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.isEmptyLocked()
}

func (m *Manager[A, S]) isEmptyLocked() bool {
	for _, slot := range m.slots {
		if len(slot) > 0 {
			return false
		}
	}
	return true
}

// Take returns the highest-priority, oldest-enqueued wrapper. A wrapper
// whose cancellation fired before being taken is dropped silently (its
// promise is already settled) and Take continues to the next candidate; if
// none remain, it reports ok=false.
func (m *Manager[A, S]) Take() (*Wrapper[A, S], Meta, bool) {
	for {
		m.mu.Lock()
		w, meta, ok := m.popHighestLocked()
		m.mu.Unlock()
		if !ok {
			return nil, Meta{}, false
		}
		if w.Cancelled() {
			w.Promise.SettleCancelled()
			continue
		}
		return w, meta, true
	}
}

func (m *Manager[A, S]) popHighestLocked() (*Wrapper[A, S], Meta, bool) {
	for p := len(m.slots) - 1; p >= 0; p-- {
		if len(m.slots[p]) == 0 {
			continue
		}
		w := m.slots[p][0]
		m.slots[p] = m.slots[p][1:]
		return w, Meta{Priority: p}, true
	}
	return nil, Meta{}, false
}

// WaitForTask completes when HasTask becomes true (edge-triggered: signalled
// only on the empty-to-non-empty transition, per §4.2) or ctx is done.
func (m *Manager[A, S]) WaitForTask(ctx context.Context) error {
	m.mu.Lock()
	if !m.isEmptyLocked() {
		m.mu.Unlock()
		return nil
	}
	ch := m.notify
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainAll empties every priority slot and returns every wrapper that was
// still pending, in no particular cross-slot order. Used by a shutting-down
// Processor to settle every wrapper it never got to Take (§5: shutdown
// cancels all pending wrappers, not just in-flight ones).
func (m *Manager[A, S]) DrainAll() []*Wrapper[A, S] {
	m.mu.Lock()
	defer m.mu.Unlock()
	var drained []*Wrapper[A, S]
	for p, slot := range m.slots {
		drained = append(drained, slot...)
		m.slots[p] = nil
	}
	return drained
}

// signalLocked wakes every current waiter and arms a fresh channel for the
// next empty-to-non-empty transition. Caller must hold mu.
func (m *Manager[A, S]) signalLocked() {
	close(m.notify)
	m.notify = make(chan struct{})
}
