package wand

import (
	"errors"
	"fmt"

	"wandsearch/internal/cyclicqueue"
	"wandsearch/internal/topk"
)

// Variant selects one of the eight evaluation strategies: {WAND, BMW} x
// {baseline, Method 1, Method 2, Method 3}.
type Variant string

const (
	WandBaseline Variant = "wand"
	WandMethod1  Variant = "wand_m1"
	WandMethod2  Variant = "wand_m2"
	WandMethod3  Variant = "wand_m3"
	BMWBaseline  Variant = "bmw"
	BMWMethod1   Variant = "bmw_m1"
	BMWMethod2   Variant = "bmw_m2"
	BMWMethod3   Variant = "bmw_m3"
)

// ErrUnsupportedVariant is returned when an unrecognized variant tag is
// requested.
var ErrUnsupportedVariant = errors.New("wand: unsupported variant")

// ErrSecondaryCapacityRequired is returned when a variant that uses the
// secondary structure is requested with secondary_k = 0.
var ErrSecondaryCapacityRequired = errors.New("wand: variant requires secondary_k > 0")

// usesBlockMax reports whether a variant consults block-max bounds.
func usesBlockMax(v Variant) bool {
	switch v {
	case BMWBaseline, BMWMethod1, BMWMethod2, BMWMethod3:
		return true
	default:
		return false
	}
}

// usesSecondary reports whether a variant requires secondary_k > 0.
func usesSecondary(v Variant) bool {
	switch v {
	case WandMethod2, WandMethod3, BMWMethod2, BMWMethod3:
		return true
	default:
		return false
	}
}

// Result is the orchestrator's output for one query: a primary top-k and
// a variant-dependent secondary sequence (empty for baseline, the cyclic
// queue contents for Method 1, the secondary heap contents for Methods 2
// and 3).
type Result struct {
	Primary   []topk.Entry
	Secondary []topk.Entry
}

// Evaluate runs variant over cursors and returns the finalized primary
// and secondary rankings. cursors may be a mix of BlockMaxCursor
// implementations and plain Cursors adapted via AsBlockMaxCursors; BMW
// variants require every cursor to genuinely implement BlockMaxCursor.
func Evaluate(variant Variant, cursors []BlockMaxCursor, maxDocID uint64, k, secondaryK int) (Result, error) {
	if !validVariant(variant) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedVariant, variant)
	}
	if usesSecondary(variant) && secondaryK <= 0 {
		return Result{}, fmt.Errorf("%w: variant %q", ErrSecondaryCapacityRequired, variant)
	}

	// Empty cursor set: immediate empty result, no error.
	if len(cursors) == 0 {
		return Result{}, nil
	}

	cs := make([]BlockMaxCursor, len(cursors))
	copy(cs, cursors)

	h1 := topk.New(k)
	useBlockMax := usesBlockMax(variant)

	switch variant {
	case WandBaseline, BMWBaseline:
		runLoop(cs, maxDocID, h1, useBlockMax, nil, func(score float32, docid uint64) {
			h1.Insert(score, docid)
		})
		h1.Finalize()
		return Result{Primary: h1.TopK()}, nil

	case WandMethod1, BMWMethod1:
		q := cyclicqueue.New(secondaryK)
		runLoop(cs, maxDocID, h1, useBlockMax, nil, func(score float32, docid uint64) {
			_, evicted, es, ed := h1.InsertWithEviction(score, docid)
			if evicted {
				q.Insert(es, ed)
			}
		})
		h1.Finalize()
		q.Finalize()
		return Result{Primary: h1.TopK(), Secondary: queueEntries(q.TopK())}, nil

	case WandMethod2, BMWMethod2:
		h2 := topk.New(secondaryK)
		runLoop(cs, maxDocID, h1, useBlockMax, nil, func(score float32, docid uint64) {
			accepted, evicted, es, ed := h1.InsertWithEviction(score, docid)
			switch {
			case evicted:
				h2.Insert(es, ed)
			case !accepted:
				h2.Insert(score, docid)
			}
		})
		h1.Finalize()
		h2.Finalize()
		return Result{Primary: h1.TopK(), Secondary: h2.TopK()}, nil

	case WandMethod3, BMWMethod3:
		return evaluateMethod3(cs, maxDocID, h1, secondaryK, useBlockMax)
	}

	// Unreachable: validVariant already rejected anything else.
	return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedVariant, variant)
}

// evaluateMethod3 runs the safe-to-2k two-stage procedure: stage one is
// a standard safe top-k pass into h1 that also populates h2 and the
// cyclic queue with ejection history and marks every scored docid in a
// bitset; stage two rewinds cursors to a computed safe docid and replays
// with h2 as the pruning heap, skipping anything the bitset marks as
// already scored.
func evaluateMethod3(cs []BlockMaxCursor, maxDocID uint64, h1 *topk.Heap, secondaryK int, useBlockMax bool) (Result, error) {
	h2 := topk.New(secondaryK)
	q := cyclicqueue.New(secondaryK)
	scored := NewBitset()

	// Stage one.
	runLoop(cs, maxDocID, h1, useBlockMax, nil, func(score float32, docid uint64) {
		scored.Set(docid)
		accepted, evicted, es, ed := h1.InsertWithEviction(score, docid)
		switch {
		case evicted:
			h2.Insert(es, ed)
			// docid's entry displaced the threshold es from h1; record
			// the vacated threshold against the docid that caused it.
			q.Insert(es, docid)
		case !accepted:
			h2.Insert(score, docid)
		}
	})

	// Stage transition: find the earliest docid that might have been
	// missed, then rewind every cursor to it.
	lowerBound := q.DisplacedID(h2.Threshold())
	for _, c := range cs {
		c.Reset()
		if useBlockMax {
			c.BlockMaxReset()
		}
		c.NextGEQ(lowerBound)
	}

	// Stage two: pruning heap is h2; skip anything already scored.
	runLoop(cs, maxDocID, h2, useBlockMax, scored.Test, func(score float32, docid uint64) {
		h2.Insert(score, docid)
	})

	h1.Finalize()
	h2.Finalize()
	return Result{Primary: h1.TopK(), Secondary: h2.TopK()}, nil
}

func queueEntries(es []cyclicqueue.Entry) []topk.Entry {
	out := make([]topk.Entry, len(es))
	for i, e := range es {
		out[i] = topk.Entry{Score: e.Score, DocID: e.DocID}
	}
	return out
}

func validVariant(v Variant) bool {
	switch v {
	case WandBaseline, WandMethod1, WandMethod2, WandMethod3,
		BMWBaseline, BMWMethod1, BMWMethod2, BMWMethod3:
		return true
	default:
		return false
	}
}
