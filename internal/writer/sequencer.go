// Package writer implements the sequential output writers from spec.md
// §4.5/§5/§6: PGN, SGF, message log, and sample file sinks, each fed
// out-of-order game completions but emitting strictly in ascending
// job idx via a min-heap, per spec.md §5/§9 design notes ("naturally
// expressed as a min-heap keyed by idx").
package writer

import (
	"container/heap"
	"sync"
)

// item is one pending out-of-order payload waiting for its turn.
type item struct {
	idx     int
	payload any
}

type minheap []item

func (h minheap) Len() int            { return len(h) }
func (h minheap) Less(i, j int) bool  { return h[i].idx < h[j].idx }
func (h minheap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minheap) Push(x any)         { *h = append(*h, x.(item)) }
func (h *minheap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Emit is called once per payload, strictly in ascending idx order, once
// the sequencer has seen every idx from 0 up to and including it.
type Emit func(idx int, payload any)

// Sequencer buffers out-of-order completions behind its own mutex and
// emits them in order, per spec.md §5 ("Output writers are sequenced by
// idx, not by completion order").
type Sequencer struct {
	mu       sync.Mutex
	pending  minheap
	nextWant int
	emit     Emit
}

// NewSequencer builds a Sequencer that calls emit for each payload in
// ascending idx order, starting at idx 0.
func NewSequencer(emit Emit) *Sequencer {
	s := &Sequencer{emit: emit}
	heap.Init(&s.pending)
	return s
}

// Push is the TranscriptSink-shaped entrypoint: accepts a completed
// payload at idx, possibly out of order, and emits everything now ready
// in order.
func (s *Sequencer) Push(idx int, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.pending, item{idx: idx, payload: payload})
	for len(s.pending) > 0 && s.pending[0].idx == s.nextWant {
		it := heap.Pop(&s.pending).(item)
		s.emit(it.idx, it.payload)
		s.nextWant++
	}
}

// Pending reports how many completions are buffered waiting for an
// earlier idx to arrive (for tests/diagnostics).
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
