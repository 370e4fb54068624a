package engine

import "wandsearch/internal/topk"

// ScoredDoc represents a document with its score.
type ScoredDoc struct {
	DocID uint32
	Score float32
}

// TopKCollector collects the top-K scoring documents, delegating the
// bounded min-heap itself to topk.Heap rather than keeping a second
// heap implementation around.
type TopKCollector struct {
	h *topk.Heap
}

// NewTopKCollector creates a collector for the top K documents.
func NewTopKCollector(k int) *TopKCollector {
	if k <= 0 {
		k = 10
	}
	return &TopKCollector{h: topk.New(k)}
}

// Collect adds a document to the collector if it qualifies for top-K.
func (c *TopKCollector) Collect(docID uint32, score float32) {
	c.h.Insert(score, uint64(docID))
}

// MinScore returns the current minimum score in the collector.
// Returns 0 if fewer than K documents have been collected.
func (c *TopKCollector) MinScore() float32 {
	return c.h.Threshold()
}

// Len returns the number of documents collected so far.
func (c *TopKCollector) Len() int {
	return c.h.Len()
}

// Results returns the collected documents sorted descending by score.
func (c *TopKCollector) Results() []ScoredDoc {
	entries := c.h.TopK()
	result := make([]ScoredDoc, len(entries))
	for i, e := range entries {
		result[i] = ScoredDoc{DocID: uint32(e.DocID), Score: e.Score}
	}
	return result
}
