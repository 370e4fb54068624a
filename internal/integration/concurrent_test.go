package integration

import (
	"context"
	"testing"

	"wandsearch/internal/analysis"
	"wandsearch/internal/evalrunner"
	"wandsearch/internal/indexing"
	"wandsearch/internal/scoring"
	"wandsearch/internal/testutil"
	"wandsearch/internal/wand"
	"wandsearch/internal/wandsegment"
)

// buildEvalSegment ingests the shared sample documents and compiles them
// into an openable wand segment, mirroring what the build CLI does.
func buildEvalSegment(t *testing.T) *wandsegment.Segment {
	t.Helper()

	schema := testutil.BasicSchema()
	registry := analysis.NewRegistry()
	w := indexing.NewWriter(schema, registry)
	testutil.IngestDocuments(t, w, testutil.SampleDocuments())

	buf := w.Buffer()
	scorer := scoring.NewBM25Scorer(int64(buf.DocCount), 10.0)

	builder := wandsegment.NewBuilder()
	data, err := builder.Build(buf, scorer)
	if err != nil {
		t.Fatalf("build segment: %v", err)
	}

	seg, err := wandsegment.Open(data.Files)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	return seg
}

// TestConcurrentQueries_MatchSequentialResults runs the same query batch
// through evalrunner.Run at several worker-pool widths and checks every
// width returns identical, correctly ordered results: the fan-out must
// not perturb a query's own ranking or scramble the batch's order.
func TestConcurrentQueries_MatchSequentialResults(t *testing.T) {
	seg := buildEvalSegment(t)

	queries := []evalrunner.Query{
		{ID: "q1", Terms: []evalrunner.Term{{Field: "body", Text: "search", Weight: 1.0}}},
		{ID: "q2", Terms: []evalrunner.Term{{Field: "body", Text: "index", Weight: 1.0}}},
		{ID: "q3", Terms: []evalrunner.Term{{Field: "body", Text: "bm25", Weight: 1.0}}},
		{ID: "q4", Terms: []evalrunner.Term{
			{Field: "body", Text: "search", Weight: 1.0},
			{Field: "body", Text: "fuzzy", Weight: 1.0},
		}},
	}

	baseOpts := evalrunner.Options{
		Variant:  wand.WandBaseline,
		K:        5,
		MaxDocID: 1 << 20,
	}

	baseOpts.Threads = 1
	want, err := evalrunner.Run(context.Background(), seg, queries, baseOpts)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}

	for _, threads := range []int{2, 4, 16} {
		opts := baseOpts
		opts.Threads = threads
		got, err := evalrunner.Run(context.Background(), seg, queries, opts)
		if err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
		if len(got) != len(want) {
			t.Fatalf("threads=%d: got %d result sets, want %d", threads, len(got), len(want))
		}
		for i := range want {
			if len(got[i]) != len(want[i]) {
				t.Fatalf("threads=%d: query %d got %d entries, want %d", threads, i, len(got[i]), len(want[i]))
			}
			for j := range want[i] {
				if got[i][j] != want[i][j] {
					t.Errorf("threads=%d: query %d entry %d = %+v, want %+v", threads, i, j, got[i][j], want[i][j])
				}
			}
		}
	}
}

// TestConcurrentQueries_IndependentSegments runs two independently built
// segments through the evaluator concurrently from separate goroutines,
// verifying no shared mutable state leaks between them.
func TestConcurrentQueries_IndependentSegments(t *testing.T) {
	segA := buildEvalSegment(t)
	segB := buildEvalSegment(t)

	queries := []evalrunner.Query{
		{ID: "q1", Terms: []evalrunner.Term{{Field: "body", Text: "search", Weight: 1.0}}},
	}
	opts := evalrunner.Options{
		Variant:  wand.WandBaseline,
		K:        5,
		MaxDocID: 1 << 20,
		Threads:  4,
	}

	errs := make(chan error, 2)
	for _, seg := range []*wandsegment.Segment{segA, segB} {
		go func(s *wandsegment.Segment) {
			_, err := evalrunner.Run(context.Background(), s, queries, opts)
			errs <- err
		}(seg)
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent run: %v", err)
		}
	}
}
