// Package topk implements a bounded min-heap over (score, docid) entries,
// used as the primary and secondary top-k structures of the WAND / BMW
// evaluation driver.
package topk

import (
	"container/heap"
	"sort"
)

// Entry is a single scored posting.
type Entry struct {
	Score float32
	DocID uint64
}

// entryHeap is a min-heap of Entry ordered by score, satisfying
// container/heap.Interface.
type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Heap is a fixed-capacity min-heap ordered by score, min at root.
// Capacity 0 makes the heap inert: every operation is a no-op that
// reports "not entered".
type Heap struct {
	k     int
	data  entryHeap
	final bool
}

// New creates an empty heap with the given capacity.
func New(k int) *Heap {
	if k < 0 {
		k = 0
	}
	return &Heap{k: k, data: make(entryHeap, 0, k)}
}

// Cap returns the heap's configured capacity.
func (h *Heap) Cap() int { return h.k }

// Len returns the number of entries currently held.
func (h *Heap) Len() int { return len(h.data) }

// WouldEnter reports whether a score would be accepted by Insert.
func (h *Heap) WouldEnter(score float32) bool {
	if h.k == 0 {
		return false
	}
	if len(h.data) < h.k {
		return true
	}
	return score > h.data[0].Score
}

// Insert inserts (score, docid) if it would enter. Duplicate calls with
// identical entries push duplicates; the heap provides no idempotence.
func (h *Heap) Insert(score float32, docid uint64) {
	_, _, _, _ = h.InsertWithEviction(score, docid)
}

// InsertWithEviction inserts (score, docid) if it would enter, reporting
// whether a prior entry was displaced to make room. accepted is false if
// the entry was rejected outright. evicted is true only when the heap
// was already full and score displaced its prior minimum; callers must
// branch on evicted, not accepted, before trusting evictedScore/
// evictedDocID — an accepted insert into a not-yet-full heap evicts
// nothing, and (0, 0) is a valid docid/score pair, not a sentinel.
func (h *Heap) InsertWithEviction(score float32, docid uint64) (accepted, evicted bool, evictedScore float32, evictedDocID uint64) {
	if h.k == 0 {
		return false, false, 0, 0
	}
	if len(h.data) < h.k {
		heap.Push(&h.data, Entry{Score: score, DocID: docid})
		return true, false, 0, 0
	}
	if score <= h.data[0].Score {
		return false, false, 0, 0
	}
	old := h.data[0]
	h.data[0] = Entry{Score: score, DocID: docid}
	heap.Fix(&h.data, 0)
	return true, true, old.Score, old.DocID
}

// Threshold returns the current minimum score once the heap holds k
// entries, and 0 before that (including k=0), so it never decreases over
// the heap's life.
func (h *Heap) Threshold() float32 {
	if h.k == 0 || len(h.data) < h.k {
		return 0
	}
	return h.data[0].Score
}

// Finalize permutes internal storage into descending-score order. No
// further insertions are permitted after Finalize.
func (h *Heap) Finalize() {
	sort.SliceStable(h.data, func(i, j int) bool {
		return h.data[i].Score > h.data[j].Score
	})
	h.final = true
}

// TopK returns the finalized ranking. If Finalize has not been called yet,
// TopK calls it first, so the result is always in descending-score order.
func (h *Heap) TopK() []Entry {
	if !h.final {
		h.Finalize()
	}
	out := make([]Entry, len(h.data))
	copy(out, h.data)
	return out
}
