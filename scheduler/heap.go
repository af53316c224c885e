package scheduler

import "time"

// record is the heap element interface. Concrete types (singleRecord,
// repeatingRecord) are generic over their own result type S; the heap only
// needs due-time ordering and identity, so it stores the non-generic
// interface (§4.6: "a priority queue of schedule records keyed by
// next_due_at").
type record interface {
	recordID() recordKey
	dueTime() time.Time
	seqNum() uint64
	// fire runs the record's due firing. It returns true if the record
	// should be reinserted (its dueTime has already been updated to the
	// next occurrence), false if it is now finished.
	fire(now time.Time) bool
	// cancelNow settles/ends the record's sink as cancelled. Only called
	// for a record that is still pending (found in the heap) when its
	// cancellation scope fires.
	cancelNow()
}

type recordKey uint64

type heapEntry struct {
	rec   record
	index int
}

type recordHeap []*heapEntry

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	di, dj := h[i].rec.dueTime(), h[j].rec.dueTime()
	if di.Equal(dj) {
		return h[i].rec.seqNum() < h[j].rec.seqNum()
	}
	return di.Before(dj)
}

func (h recordHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *recordHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
