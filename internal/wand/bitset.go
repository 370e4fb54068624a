package wand

import "github.com/RoaringBitmap/roaring/v2"

// Bitset tracks docids already scored during Method 3's stage one, so
// stage two can skip rescoring them. Backed by a compressed roaring
// bitmap rather than a dense bit array: the scored set is typically a
// small fraction of max_docid.
type Bitset struct {
	bm *roaring.Bitmap
}

// NewBitset returns an empty scored-docid set.
func NewBitset() *Bitset {
	return &Bitset{bm: roaring.New()}
}

// Set records that docid has been scored. The uint32 narrowing matches
// index.MaxDocsPerSegment (1<<31): segment docids fit comfortably.
func (b *Bitset) Set(docid uint64) {
	b.bm.Add(uint32(docid))
}

// Test reports whether docid has been scored.
func (b *Bitset) Test(docid uint64) bool {
	return b.bm.Contains(uint32(docid))
}

// Reset clears the set for reuse across queries.
func (b *Bitset) Reset() {
	b.bm.Clear()
}

// BitsetPool allows callers that evaluate many queries under a shared
// worker pool to reuse Bitset allocations instead of allocating one per
// query (spec §9 leaves this choice open).
type BitsetPool struct {
	free []*Bitset
}

// NewBitsetPool creates an empty pool.
func NewBitsetPool() *BitsetPool {
	return &BitsetPool{}
}

// Get returns a cleared Bitset, reusing one from the pool if available.
func (p *BitsetPool) Get() *Bitset {
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		return b
	}
	return NewBitset()
}

// Put returns a Bitset to the pool after clearing it.
func (p *BitsetPool) Put(b *Bitset) {
	b.Reset()
	p.free = append(p.free, b)
}
