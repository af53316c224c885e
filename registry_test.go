package engine

import (
	"testing"

	"github.com/kahoon/engine/accessqueue"
)

type widget struct{ n int }

func newWidgetQueue(t *testing.T) *accessqueue.Queue[*widget, int] {
	t.Helper()
	q, err := accessqueue.New[*widget, int](accessqueue.Config[*widget]{
		Strategy:   accessqueue.StrategyStatic,
		StaticArgs: []*widget{{n: 1}},
	})
	if err != nil {
		t.Fatalf("accessqueue.New: %v", err)
	}
	return q
}

func newTestEngine() *Engine {
	return New(nil)
}

func TestResolver_RegisterAndLookup(t *testing.T) {
	h := newTestEngine()
	q := newWidgetQueue(t)

	if err := RegisterAccessQueue[*widget, int](h, "widgets", q); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := LookupAccessQueue[*widget, int](h, "widgets")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != q {
		t.Fatal("lookup returned a different queue instance")
	}
}

func TestResolver_DuplicateRegistration(t *testing.T) {
	h := newTestEngine()
	q := newWidgetQueue(t)

	if err := RegisterAccessQueue[*widget, int](h, "widgets", q); err != nil {
		t.Fatalf("first register: %v", err)
	}

	err := RegisterAccessQueue[*widget, int](h, "widgets", q)
	if !Is(err, KindDuplicateRegistration) {
		t.Fatalf("expected KindDuplicateRegistration, got %v", err)
	}
}

func TestResolver_LookupMissing(t *testing.T) {
	h := newTestEngine()
	_, err := LookupAccessQueue[*widget, int](h, "nope")
	if !Is(err, KindNoServiceRegistered) {
		t.Fatalf("expected KindNoServiceRegistered, got %v", err)
	}
}

func TestResolver_LookupWrongType(t *testing.T) {
	h := newTestEngine()
	q := newWidgetQueue(t)
	if err := RegisterAccessQueue[*widget, int](h, "widgets", q); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := LookupAccessQueue[*widget, string](h, "widgets")
	if !Is(err, KindNoServiceRegistered) {
		t.Fatalf("expected KindNoServiceRegistered for mismatched type, got %v", err)
	}
}

func TestResolver_ConcurrentRegisterLookup(t *testing.T) {
	h := newTestEngine()
	const n = 16

	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			q := newWidgetQueue(t)
			name := "q"
			_ = RegisterAccessQueue[*widget, int](h, name, q)
			_, _ = LookupAccessQueue[*widget, int](h, name)
		}(i)
	}

	for i := 0; i < n; i++ {
		<-done
	}

	_, err := LookupAccessQueue[*widget, int](h, "q")
	if err != nil {
		t.Fatalf("expected exactly one registration to have won, got lookup error: %v", err)
	}
}
