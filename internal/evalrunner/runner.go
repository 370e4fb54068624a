// Package evalrunner fans a batch of queries out across a worker pool,
// one query per goroutine against a shared read-only wandsegment.Segment,
// and collects results back in the batch's original order. The fan-out
// shape is the coordinator's shard-dispatch idiom repurposed for a single
// process: no query execution happens on the dispatching goroutine, and
// no mutable state is shared between workers.
package evalrunner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wandsearch/internal/metrics"
	"wandsearch/internal/wand"
	"wandsearch/internal/wandsegment"
)

// Term is one query term: the field it targets, its surface text (used
// as the postings-list lookup key), and its query weight.
type Term struct {
	Field  string
	Text   string
	Weight float32
}

// Query is one topic to evaluate.
type Query struct {
	ID    string
	Terms []Term
}

// Options configures how every query in a batch is evaluated.
type Options struct {
	Variant    wand.Variant
	K          int
	SecondaryK int
	MaxDocID   uint64
	Threads    int

	// Metrics, if set, records per-query latency and heap admission
	// counts. Nil is a valid no-op default.
	Metrics *metrics.Registry
}

// RunEntry is one ranked result, ready for TREC run formatting.
type RunEntry struct {
	QueryID string
	DocID   uint64
	Rank    int
	Score   float32
}

// Run evaluates every query in queries against seg, using at most
// opts.Threads concurrent workers (one query per goroutine, no query
// split across workers). Results are returned indexed by the queries'
// original position, not completion order. The first worker error
// encountered (in query order) is returned; ctx cancellation stops
// workers from starting new queries but does not interrupt ones already
// in flight.
func Run(ctx context.Context, seg *wandsegment.Segment, queries []Query, opts Options) ([][]RunEntry, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = 1
	}

	results := make([][]RunEntry, len(queries))
	errs := make([]error, len(queries))

	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup

	for i, q := range queries {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, query Query) {
			defer wg.Done()
			defer func() { <-sem }()
			start := time.Now()
			entries, err := evaluateOne(seg, query, opts)
			if opts.Metrics != nil {
				opts.Metrics.ObserveQuery(string(opts.Variant), time.Since(start), err)
			}
			results[idx] = entries
			errs[idx] = err
		}(i, q)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", queries[i].ID, err)
		}
	}
	return results, nil
}

func evaluateOne(seg *wandsegment.Segment, query Query, opts Options) ([]RunEntry, error) {
	cursors := make([]wand.BlockMaxCursor, 0, len(query.Terms))
	for _, t := range query.Terms {
		c, ok := seg.Cursor(t.Field, t.Text, t.Weight)
		if !ok {
			continue
		}
		cursors = append(cursors, c)
	}

	res, err := wand.Evaluate(opts.Variant, cursors, opts.MaxDocID, opts.K, opts.SecondaryK)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	if opts.Metrics != nil {
		for range res.Primary {
			opts.Metrics.AddCandidateAdmitted(string(opts.Variant), "primary")
		}
		for range res.Secondary {
			opts.Metrics.AddCandidateAdmitted(string(opts.Variant), "secondary")
		}
	}

	entries := make([]RunEntry, 0, len(res.Primary)+len(res.Secondary))
	rank := 0
	for _, e := range res.Primary {
		entries = append(entries, RunEntry{QueryID: query.ID, DocID: e.DocID, Rank: rank, Score: e.Score})
		rank++
	}
	for _, e := range res.Secondary {
		entries = append(entries, RunEntry{QueryID: query.ID, DocID: e.DocID, Rank: rank, Score: e.Score})
		rank++
	}
	return entries, nil
}
