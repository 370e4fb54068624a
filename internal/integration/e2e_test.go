package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"wandsearch/internal/analysis"
	"wandsearch/internal/commit"
	"wandsearch/internal/evalrunner"
	"wandsearch/internal/index"
	"wandsearch/internal/indexing"
	"wandsearch/internal/scoring"
	"wandsearch/internal/testutil"
	"wandsearch/internal/wand"
	"wandsearch/internal/wandsegment"
)

// TestE2E_IngestBuildCommitEvaluate walks the full pipeline a real
// deployment would use: ingest documents into a writer, compile the
// buffer into a wand segment, commit it through the 7-phase protocol,
// reopen the committed files, and evaluate a query against them.
func TestE2E_IngestBuildCommitEvaluate(t *testing.T) {
	schema := testutil.BasicSchema()
	registry := analysis.NewRegistry()
	w := indexing.NewWriter(schema, registry)
	docs := testutil.SampleDocuments()
	testutil.IngestDocuments(t, w, docs)

	buf := w.Buffer()
	if buf.DocCount != len(docs) {
		t.Fatalf("DocCount = %d, want %d", buf.DocCount, len(docs))
	}

	scorer := scoring.NewBM25Scorer(int64(buf.DocCount), 10.0)
	builder := wandsegment.NewBuilder()
	data, err := builder.Build(buf, scorer)
	if err != nil {
		t.Fatalf("build segment: %v", err)
	}

	dir := index.NewIndexDir(filepath.Join(t.TempDir(), "idx"))
	if err := dir.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := index.WriteSchema(dir, schema); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	committer := commit.NewCommitter(dir, commit.DefaultOptions())
	result, err := committer.Commit(context.Background(), nil, data)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Generation != 1 {
		t.Errorf("generation = %d, want 1", result.Generation)
	}

	gen, err := index.ReadCurrentGeneration(dir)
	if err != nil {
		t.Fatalf("read current generation: %v", err)
	}
	manifest, err := index.LoadManifest(dir, gen)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(manifest.Segments))
	}
	segMeta := manifest.Segments[0]

	files := make(map[string][]byte, 3)
	for _, name := range []string{"postings.bin", "wandmeta.bin", "deletions.bin"} {
		content, err := os.ReadFile(dir.SegmentFile(segMeta.ID, name))
		if err != nil {
			t.Fatalf("read segment file %s: %v", name, err)
		}
		files[name] = content
	}
	seg, err := wandsegment.Open(files)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}

	queries := []evalrunner.Query{
		{ID: "q1", Terms: []evalrunner.Term{{Field: "body", Text: "search", Weight: 1.0}}},
	}
	opts := evalrunner.Options{
		Variant:  wand.WandBaseline,
		K:        10,
		MaxDocID: segMeta.MaxDocID + 1,
		Threads:  2,
	}

	results, err := evalrunner.Run(context.Background(), seg, queries, opts)
	if err != nil {
		t.Fatalf("run queries: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result set, got %d", len(results))
	}
	if len(results[0]) == 0 {
		t.Fatal("expected at least one matching document for 'search'")
	}
	for i := 1; i < len(results[0]); i++ {
		if results[0][i].Score > results[0][i-1].Score {
			t.Errorf("results not sorted: rank %d score %f > rank %d score %f",
				i, results[0][i].Score, i-1, results[0][i-1].Score)
		}
	}
}

// TestE2E_TermNotIndexed verifies a query term absent from the segment
// produces zero results rather than an error.
func TestE2E_TermNotIndexed(t *testing.T) {
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

	queries := []evalrunner.Query{
		{ID: "q1", Terms: []evalrunner.Term{{Field: "body", Text: "nonexistentterm", Weight: 1.0}}},
	}
	opts := evalrunner.Options{
		Variant:  wand.WandBaseline,
		K:        10,
		MaxDocID: data.MaxDocID + 1,
		Threads:  1,
	}
	results, err := evalrunner.Run(context.Background(), seg, queries, opts)
	if err != nil {
		t.Fatalf("run queries: %v", err)
	}
	if len(results[0]) != 0 {
		t.Errorf("expected 0 results for unindexed term, got %d", len(results[0]))
	}
}

func TestE2E_StoredFieldRetrieval(t *testing.T) {
	schema := &index.Schema{
		Version:         1,
		DefaultAnalyzer: "standard",
		Fields: []index.FieldDef{
			{Name: "id", Type: index.FieldTypeKeyword, Stored: true, Indexed: true},
			{Name: "title", Type: index.FieldTypeText, Analyzer: "standard", Stored: true, Indexed: true},
			{Name: "metadata", Type: index.FieldTypeStoredOnly, Stored: true, Indexed: false},
		},
	}
	registry := analysis.NewRegistry()
	w := indexing.NewWriter(schema, registry)

	w.AddDocument(indexing.Document{Fields: map[string]interface{}{
		"id":       "doc-1",
		"title":    "Test Document",
		"metadata": "some raw data",
	}})

	buf := w.Buffer()

	stored := buf.StoredFields[0]
	if stored == nil {
		t.Fatal("no stored fields for doc 0")
	}
	if string(stored["title"]) != "Test Document" {
		t.Errorf("stored title = %q, want %q", stored["title"], "Test Document")
	}
	if string(stored["metadata"]) != "some raw data" {
		t.Errorf("stored metadata = %q, want %q", stored["metadata"], "some raw data")
	}

	if _, ok := buf.InvertedIndex["metadata"]; ok {
		t.Error("stored_only field should not be indexed")
	}
}
