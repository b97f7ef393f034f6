package priorityQueue

import (
	"container/heap"
)

// An OutstandingSegment is a sent-but-unacknowledged segment tracked for
// retransmission. Absolute sequence numbers never wrap, so they order the
// queue directly.
type OutstandingSegment struct {
	AbsSeqno uint64 // absolute sequence number of the segment's first byte
	Length   uint64 // sequence space the segment occupies
	Index    int    // the index of the item in the heap
	Segment  any    // the queued segment itself
}

// A PriorityQueue implements heap.Interface and holds OutstandingSegments.
type PriorityQueue []*OutstandingSegment

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	// We want Pop to give us the lowest, not highest, priority so we use less than here
	return pq[i].AbsSeqno < pq[j].AbsSeqno
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*OutstandingSegment)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // don't stop the GC from reclaiming the item eventually
	item.Index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Peek returns the oldest outstanding segment without removing it.
func (pq PriorityQueue) Peek() *OutstandingSegment {
	if len(pq) == 0 {
		return nil
	}
	return pq[0]
}

var _ heap.Interface = (*PriorityQueue)(nil)
