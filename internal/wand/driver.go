package wand

import "wandsearch/internal/topk"

// onScoreFunc is invoked with the aligned-run's combined score and the
// pivot docid it was computed for; it implements a capture policy's
// effect on the primary/secondary heaps and cyclic queue.
type onScoreFunc func(score float32, docid uint64)

// alreadyScoredFunc, when non-nil, lets the driver skip rescoring a
// pivot docid that a prior stage already scored (Method 3 stage two
// only).
type alreadyScoredFunc func(docid uint64) bool

// runLoop is the single pivot-selection / list-advancement state machine
// shared by WAND and Block-Max WAND, and by the baseline and all three
// capture methods. useBlockMax selects the bound source: false sums
// plain per-list max scores (WAND); true additionally tightens the pivot
// bound with per-block bounds before committing to scoring (BMW).
// pruning is the active top-k heap consulted for WouldEnter — primary
// throughout baseline/Method 1/Method 2/Method 3 stage one, secondary in
// Method 3 stage two.
func runLoop(cs []BlockMaxCursor, maxDocID uint64, pruning *topk.Heap, useBlockMax bool, alreadyScored alreadyScoredFunc, onScore onScoreFunc) {
	sortByDocID(cs)

	for {
		// Step 1: pivot selection.
		var upperBound float32
		pivot := -1
		for p := 0; p < len(cs); p++ {
			if cs[p].DocID() >= maxDocID {
				break
			}
			upperBound += cs[p].MaxScore()
			if pruning.WouldEnter(upperBound) {
				pivot = p
				for pivot+1 < len(cs) && cs[pivot+1].DocID() == cs[pivot].DocID() {
					pivot++
				}
				break
			}
		}
		if pivot == -1 {
			return
		}
		pivotID := cs[pivot].DocID()

		// Step 2: BMW tightening (no-op under plain WAND bound source).
		blockUpperBound := upperBound
		if useBlockMax {
			var tightened float32
			for i := 0; i <= pivot; i++ {
				if cs[i].BlockMaxDocID() < pivotID {
					cs[i].BlockMaxNextGEQ(pivotID)
				}
				tightened += cs[i].BlockMaxScore() * cs[i].QueryWeight()
			}
			blockUpperBound = tightened
		}
		if !pruning.WouldEnter(blockUpperBound) {
			skipStep(cs, pivot, pivotID, maxDocID)
			continue
		}

		// Stage-two-only case: pivot already scored in stage one.
		if alreadyScored != nil && alreadyScored(pivotID) {
			cs[pivot].Next()
			bubbleDown(cs, pivot, false) // <= variant
			continue
		}

		// Step 3: candidate step.
		if pivotID == cs[0].DocID() {
			var score float32
			for _, c := range cs {
				if c.DocID() != pivotID {
					break
				}
				score += c.Score()
				c.Next()
			}
			onScore(score, pivotID)
			sortByDocID(cs)
		} else {
			nextList := pivot
			for cs[nextList].DocID() == pivotID {
				nextList--
			}
			cs[nextList].NextGEQ(pivotID)
			bubbleDown(cs, nextList, false) // <= variant
		}
	}
}

// skipStep is the driver's step 4: advance the cursor with the largest
// list-wide upper bound to the nearest docid any block bound could
// improve on, then restore docid order.
func skipStep(cs []BlockMaxCursor, pivot int, pivotID, maxDocID uint64) {
	nextList := pivot
	maxWeight := cs[nextList].MaxScore()
	for i := 0; i < pivot; i++ {
		if cs[i].MaxScore() > maxWeight {
			nextList = i
			maxWeight = cs[i].MaxScore()
		}
	}

	next := maxDocID
	for i := 0; i <= pivot; i++ {
		if cs[i].BlockMaxDocID() < next {
			next = cs[i].BlockMaxDocID()
		}
	}
	next++
	if pivot+1 < len(cs) && cs[pivot+1].DocID() < next {
		next = cs[pivot+1].DocID()
	}
	if next <= pivotID {
		next = pivotID + 1
	}

	cs[nextList].NextGEQ(next)
	bubbleDown(cs, nextList, true) // < variant
}
