package wandsegment

import (
	"sort"
	"testing"

	"wandsearch/internal/indexing"
	"wandsearch/internal/scoring"
)

func buildTestBuffer() *indexing.WriteBuffer {
	buf := indexing.NewWriteBuffer()
	// doc 1: "foo foo" (dl=2), doc 2: "foo bar" (dl=2), doc 3: "bar bar bar" (dl=3)
	buf.AddPosting("body", "foo", 1, 2, nil)
	buf.AddPosting("body", "foo", 2, 1, nil)
	buf.AddPosting("body", "bar", 2, 1, nil)
	buf.AddPosting("body", "bar", 3, 3, nil)
	buf.DocCount = 3
	return buf
}

func TestBuilder_RoundTrip(t *testing.T) {
	buf := buildTestBuffer()
	scorer := scoring.NewBM25Scorer(3, 2.0)

	b := NewBuilder()
	b.BlockSize = 2
	data, err := b.Build(buf, scorer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if data.DocCount != 3 {
		t.Fatalf("DocCount = %d, want 3", data.DocCount)
	}
	if data.MinDocID != 1 || data.MaxDocID != 3 {
		t.Fatalf("docid range = [%d,%d], want [1,3]", data.MinDocID, data.MaxDocID)
	}

	seg, err := Open(data.Files)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fooCursor, ok := seg.Cursor("body", "foo", 1.0)
	if !ok {
		t.Fatal("expected a cursor for body:foo")
	}
	if fooCursor.DocID() != 1 {
		t.Fatalf("foo cursor starts at docid %d, want 1", fooCursor.DocID())
	}
	first := fooCursor.Score()
	fooCursor.Next()
	if fooCursor.DocID() != 2 {
		t.Fatalf("foo cursor after Next = %d, want 2", fooCursor.DocID())
	}
	second := fooCursor.Score()
	if first <= second {
		t.Fatalf("doc 1 (tf=2) should score higher than doc 2 (tf=1): %v vs %v", first, second)
	}
	if fooCursor.MaxScore() < first {
		t.Fatalf("MaxScore() = %v, should bound every posting's score (max seen %v)", fooCursor.MaxScore(), first)
	}

	fooCursor.Next()
	if fooCursor.DocID() != exhaustedDocID {
		t.Fatalf("foo cursor should be exhausted after 2 postings, got docid %d", fooCursor.DocID())
	}

	if _, ok := seg.Cursor("body", "missing", 1.0); ok {
		t.Fatal("expected no cursor for an unindexed term")
	}

	barCursor, ok := seg.Cursor("body", "bar", 1.0)
	if !ok {
		t.Fatal("expected a cursor for body:bar")
	}
	// block size 2 with exactly 2 postings (docid 2, docid 3): a single
	// block spanning both, ending at the last posting's docid.
	if barCursor.BlockMaxDocID() != 3 {
		t.Fatalf("bar cursor's first block should end at docid 3, got %d", barCursor.BlockMaxDocID())
	}
}

func TestSegment_TermsForField(t *testing.T) {
	buf := buildTestBuffer()
	scorer := scoring.NewBM25Scorer(3, 2.0)
	b := NewBuilder()
	data, err := b.Build(buf, scorer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seg, err := Open(data.Files)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	terms := seg.TermsForField("body")
	sort.Strings(terms)
	want := []string{"bar", "foo"}
	if len(terms) != len(want) || terms[0] != want[0] || terms[1] != want[1] {
		t.Fatalf("TermsForField(body) = %v, want %v", terms, want)
	}

	if got := seg.TermsForField("missing"); len(got) != 0 {
		t.Fatalf("TermsForField(missing) = %v, want empty", got)
	}
}

func TestBuilder_EmptyBuffer(t *testing.T) {
	buf := indexing.NewWriteBuffer()
	scorer := scoring.NewBM25Scorer(0, 0)
	b := NewBuilder()
	data, err := b.Build(buf, scorer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if data.MinDocID != 0 || data.MaxDocID != 0 {
		t.Fatalf("empty segment docid range = [%d,%d], want [0,0]", data.MinDocID, data.MaxDocID)
	}
	seg, err := Open(data.Files)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := seg.Cursor("body", "foo", 1.0); ok {
		t.Fatal("empty segment should have no cursors")
	}
}
