package query

import "testing"

func vocab() []string {
	return []string{"search", "searching", "searched", "engine", "engines", "index"}
}

func TestExpandPattern_Prefix(t *testing.T) {
	terms, err := ExpandPattern("body", "search*", vocab())
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 3 {
		t.Fatalf("expected 3 matches, got %d: %v", len(terms), terms)
	}
	for _, tq := range terms {
		if tq.Field != "body" {
			t.Errorf("field = %q, want body", tq.Field)
		}
	}
}

func TestExpandPattern_Wildcard(t *testing.T) {
	terms, err := ExpandPattern("body", "engine?", vocab())
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 1 || terms[0].Term != "engines" {
		t.Fatalf("expected [engines], got %v", terms)
	}
}

func TestExpandPattern_NoMatches(t *testing.T) {
	terms, err := ExpandPattern("body", "zzz*", vocab())
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 0 {
		t.Errorf("expected 0 matches, got %d", len(terms))
	}
}

func TestIsPattern(t *testing.T) {
	if !IsPattern("search*") {
		t.Error("search* should be a pattern")
	}
	if !IsPattern("se?rch") {
		t.Error("se?rch should be a pattern")
	}
	if IsPattern("search") {
		t.Error("search should not be a pattern")
	}
}
