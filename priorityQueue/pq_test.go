package priorityQueue

import (
	"container/heap"
	"testing"
)

func TestPopsInSeqnoOrder(t *testing.T) {
	pq := PriorityQueue{}
	for _, seq := range []uint64{40, 10, 30, 20} {
		heap.Push(&pq, &OutstandingSegment{AbsSeqno: seq, Length: 1})
	}

	if pq.Peek().AbsSeqno != 10 {
		t.Fatalf("peek = %d, want 10", pq.Peek().AbsSeqno)
	}
	want := []uint64{10, 20, 30, 40}
	for _, w := range want {
		got := heap.Pop(&pq).(*OutstandingSegment)
		if got.AbsSeqno != w {
			t.Fatalf("pop = %d, want %d", got.AbsSeqno, w)
		}
	}
	if pq.Peek() != nil {
		t.Fatal("peek on empty queue")
	}
}
