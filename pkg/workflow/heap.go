package workflow

// seqHeap is a binary min-heap of outstanding sequence numbers — the
// "request-priority-queue" from spec.md §3's Workflow-Sync state. Access
// is always made under Sync's process mutex, so no internal locking is
// needed (spec.md §9's note that a plain binary heap suffices here).
type seqHeap []uint64

func (h *seqHeap) push(v uint64) {
	*h = append(*h, v)
	h.siftUp(len(*h) - 1)
}

func (h *seqHeap) peek() (uint64, bool) {
	if len(*h) == 0 {
		return 0, false
	}
	return (*h)[0], true
}

func (h *seqHeap) pop() (uint64, bool) {
	n := len(*h)
	if n == 0 {
		return 0, false
	}
	top := (*h)[0]
	(*h)[0] = (*h)[n-1]
	*h = (*h)[:n-1]
	h.siftDown(0)
	return top, true
}

func (h seqHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h[parent] <= h[i] {
			return
		}
		h[parent], h[i] = h[i], h[parent]
		i = parent
	}
}

func (h seqHeap) siftDown(i int) {
	n := len(h)
	for {
		l, r := 2*i+1, 2*i+2
		smallest := i
		if l < n && h[l] < h[smallest] {
			smallest = l
		}
		if r < n && h[r] < h[smallest] {
			smallest = r
		}
		if smallest == i {
			return
		}
		h[i], h[smallest] = h[smallest], h[i]
		i = smallest
	}
}

// processedEntry is one element of the "processed-priority-queue" from
// spec.md §3: a completed (sequence, result) pair waiting for its turn.
type processedEntry[R any] struct {
	seq    uint64
	result R
	has    bool // false when f chose to skip producing an output (spec.md §4.6 edge case)
}

type processedHeap[R any] []processedEntry[R]

func (h *processedHeap[R]) push(e processedEntry[R]) {
	*h = append(*h, e)
	n := len(*h) - 1
	for n > 0 {
		parent := (n - 1) / 2
		if (*h)[parent].seq <= (*h)[n].seq {
			return
		}
		(*h)[parent], (*h)[n] = (*h)[n], (*h)[parent]
		n = parent
	}
}

func (h *processedHeap[R]) peekSeq() (uint64, bool) {
	if len(*h) == 0 {
		return 0, false
	}
	return (*h)[0].seq, true
}

func (h *processedHeap[R]) pop() (processedEntry[R], bool) {
	n := len(*h)
	if n == 0 {
		var zero processedEntry[R]
		return zero, false
	}
	top := (*h)[0]
	(*h)[0] = (*h)[n-1]
	*h = (*h)[:n-1]
	h.siftDown(0)
	return top, true
}

func (h processedHeap[R]) siftDown(i int) {
	n := len(h)
	for {
		l, r := 2*i+1, 2*i+2
		smallest := i
		if l < n && h[l].seq < h[smallest].seq {
			smallest = l
		}
		if r < n && h[r].seq < h[smallest].seq {
			smallest = r
		}
		if smallest == i {
			return
		}
		h[i], h[smallest] = h[smallest], h[i]
		i = smallest
	}
}
