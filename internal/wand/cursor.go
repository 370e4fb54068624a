// Package wand implements the disjunctive top-k query evaluation core:
// the WAND and Block-Max WAND dynamic-pruning pivot driver shared by a
// baseline and three ejection-capture methods, plus the supporting
// ordered cursor set, scored-docid bitset, and query orchestrator.
package wand

// Cursor is the minimal capability a posting-list cursor must expose for
// plain WAND evaluation.
type Cursor interface {
	// DocID returns the current position. Cursors report a value >=
	// the query's max_docid once exhausted.
	DocID() uint64

	// Score returns the contribution of this list at the current docid.
	Score() float32

	// QueryWeight returns this list's term weight.
	QueryWeight() float32

	// MaxScore returns the list-wide upper bound, weight already applied.
	MaxScore() float32

	// Next advances one posting.
	Next()

	// NextGEQ advances to the first posting with docid >= target.
	NextGEQ(target uint64)

	// Reset returns the cursor to its initial position.
	Reset()
}

// BlockMaxCursor extends Cursor with the per-block bounds Block-Max WAND
// needs to tighten the pivot bound before committing to scoring.
type BlockMaxCursor interface {
	Cursor

	// BlockMaxDocID returns the upper endpoint of the current block.
	BlockMaxDocID() uint64

	// BlockMaxScore returns the current block's upper bound, unweighted;
	// the caller applies QueryWeight() at the call site.
	BlockMaxScore() float32

	// BlockMaxNextGEQ advances the block-bound cursor to cover target.
	BlockMaxNextGEQ(target uint64)

	// BlockMaxReset returns the block-bound cursor to its initial state.
	BlockMaxReset()
}

// wandOnlyCursor adapts a plain Cursor to BlockMaxCursor so it can run
// through the same driver loop as block-max cursors. Its block-max
// methods are never invoked: the driver only calls them when operating
// in block-max bound mode.
type wandOnlyCursor struct {
	Cursor
}

func (wandOnlyCursor) BlockMaxDocID() uint64        { return 0 }
func (wandOnlyCursor) BlockMaxScore() float32       { return 0 }
func (wandOnlyCursor) BlockMaxNextGEQ(target uint64) {}
func (wandOnlyCursor) BlockMaxReset()               {}

// AsBlockMaxCursors adapts plain Cursors for evaluation under the shared
// driver in WAND (non-block-max) mode.
func AsBlockMaxCursors(cursors []Cursor) []BlockMaxCursor {
	out := make([]BlockMaxCursor, len(cursors))
	for i, c := range cursors {
		if bmc, ok := c.(BlockMaxCursor); ok {
			out[i] = bmc
			continue
		}
		out[i] = wandOnlyCursor{c}
	}
	return out
}
