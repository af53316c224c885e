package scheduler

import (
	"container/heap"
	"testing"
	"time"
)

type fakeRecord struct {
	id  recordKey
	due time.Time
	seq uint64
}

func (f *fakeRecord) recordID() recordKey { return f.id }
func (f *fakeRecord) dueTime() time.Time  { return f.due }
func (f *fakeRecord) seqNum() uint64      { return f.seq }
func (f *fakeRecord) fire(time.Time) bool { return false }
func (f *fakeRecord) cancelNow()          {}

func TestRecordHeap_OrdersByDueTime(t *testing.T) {
	var h recordHeap
	base := time.Now()

	heap.Push(&h, &heapEntry{rec: &fakeRecord{id: 1, due: base.Add(3 * time.Second), seq: 1}})
	heap.Push(&h, &heapEntry{rec: &fakeRecord{id: 2, due: base.Add(time.Second), seq: 2}})
	heap.Push(&h, &heapEntry{rec: &fakeRecord{id: 3, due: base.Add(2 * time.Second), seq: 3}})

	var order []recordKey
	for h.Len() > 0 {
		e := heap.Pop(&h).(*heapEntry)
		order = append(order, e.rec.recordID())
	}

	if len(order) != 3 || order[0] != 2 || order[1] != 3 || order[2] != 1 {
		t.Fatalf("expected pop order [2 3 1] by due time, got %v", order)
	}
}

func TestRecordHeap_TieBreaksBySeqNum(t *testing.T) {
	var h recordHeap
	due := time.Now().Add(time.Second)

	heap.Push(&h, &heapEntry{rec: &fakeRecord{id: 1, due: due, seq: 5}})
	heap.Push(&h, &heapEntry{rec: &fakeRecord{id: 2, due: due, seq: 2}})

	first := heap.Pop(&h).(*heapEntry)
	if first.rec.recordID() != 2 {
		t.Fatalf("expected the lower seqNum to win an equal-due-time tie, got id %d", first.rec.recordID())
	}
}

func TestRecordHeap_RemoveMidHeap(t *testing.T) {
	var h recordHeap
	base := time.Now()

	entries := make(map[recordKey]*heapEntry)
	for i, offset := range []time.Duration{1, 2, 3, 4} {
		e := &heapEntry{rec: &fakeRecord{id: recordKey(i + 1), due: base.Add(offset * time.Second), seq: uint64(i + 1)}}
		heap.Push(&h, e)
		entries[e.rec.recordID()] = e
	}

	target := entries[3]
	heap.Remove(&h, target.index)

	for h.Len() > 0 {
		e := heap.Pop(&h).(*heapEntry)
		if e.rec.recordID() == 3 {
			t.Fatal("removed record should not reappear")
		}
	}
}
