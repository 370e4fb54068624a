// Package cyclicqueue implements a fixed-capacity ring buffer of
// (score, docid) entries recording the threshold trajectory of a bounded
// top-k heap, used by Method 1 and Method 3 of the WAND / BMW evaluation
// driver.
package cyclicqueue

import "sort"

// Entry is a single (score, docid) slot.
type Entry struct {
	Score float32
	DocID uint64
}

// Queue is a fixed-capacity ring buffer. Capacity 0 makes it inert:
// Threshold and DisplacedID return 0, and Insert is a no-op.
type Queue struct {
	k     int
	data  []Entry
	index int
}

// New creates a queue of capacity k, all slots zero-initialized.
func New(k int) *Queue {
	if k < 0 {
		k = 0
	}
	return &Queue{k: k, data: make([]Entry, k)}
}

// Cap returns the queue's configured capacity.
func (q *Queue) Cap() int { return q.k }

// Size returns the number of slots currently allocated (always k once
// constructed, matching the C++ source's semantics where the backing
// vector is sized to capacity up front).
func (q *Queue) Size() int { return len(q.data) }

// Insert writes (score, docid) at the write index, then advances the
// write index modulo k.
func (q *Queue) Insert(score float32, docid uint64) {
	if q.k == 0 {
		return
	}
	q.data[q.index] = Entry{Score: score, DocID: docid}
	q.index = (q.index + 1) % q.k
}

// Threshold returns the score at the current write index: the oldest
// entry, about to be overwritten by the next Insert.
func (q *Queue) Threshold() float32 {
	if q.k == 0 {
		return 0
	}
	return q.data[q.index].Score
}

// DisplacedID returns the docid of the entry with the largest score <=
// threshold, scanning slots newer than the write index first, then older
// ones, preferring the later-encountered qualifying entry on ties. If no
// slot qualifies, it returns the docid at the write index itself.
//
// Scan order: (index, len) then [0, index). This is a pinned contract —
// see spec §4.2 and §8 scenario 6 — not an implementation detail.
func (q *Queue) DisplacedID(threshold float32) uint64 {
	if q.k == 0 {
		return 0
	}
	idx := q.index
	for i := q.index + 1; i < len(q.data); i++ {
		if q.data[i].Score <= threshold {
			idx = i
		}
	}
	for i := 0; i < q.index; i++ {
		if q.data[i].Score <= threshold {
			idx = i
		}
	}
	return q.data[idx].DocID
}

// Finalize sorts the queue's contents into descending-score order for
// output.
func (q *Queue) Finalize() {
	sort.SliceStable(q.data, func(i, j int) bool {
		return q.data[i].Score > q.data[j].Score
	})
	q.index = 0
}

// TopK returns the queue's current contents.
func (q *Queue) TopK() []Entry {
	out := make([]Entry, len(q.data))
	copy(out, q.data)
	return out
}
