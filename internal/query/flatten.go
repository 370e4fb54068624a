package query

import (
	"errors"
	"fmt"
)

// ErrNotDisjunctive is returned when a query cannot be expressed as a flat
// disjunction of terms: the WAND/BMW evaluation core only understands OR
// of single-term clauses, with no MUST, MUST_NOT, phrase, or nesting.
var ErrNotDisjunctive = errors.New("query: not expressible as a flat disjunction of terms")

// FlattenDisjunctive rewrites q to a fixed point and extracts its leaf term
// clauses into the flat list the evaluation core's cursor set is built
// from. A bare TermQuery flattens to a single-term list. A BooleanQuery
// flattens only if every clause is BooleanShould over a TermQuery;
// anything else (MUST, MUST_NOT, phrase/proximity/fuzzy/wildcard clauses,
// nested booleans that Rewrite could not flatten) is rejected with
// ErrNotDisjunctive, since the core has no representation for it.
func FlattenDisjunctive(q Query) ([]TermQuery, error) {
	q = Rewrite(q)

	switch v := q.(type) {
	case *TermQuery:
		return []TermQuery{*v}, nil
	case *MatchNoneQuery:
		return nil, nil
	case *BooleanQuery:
		terms := make([]TermQuery, 0, len(v.Clauses))
		for _, c := range v.Clauses {
			if c.Occur != BooleanShould {
				return nil, fmt.Errorf("%w: clause with occur %d", ErrNotDisjunctive, c.Occur)
			}
			t, ok := c.Query.(*TermQuery)
			if !ok {
				return nil, fmt.Errorf("%w: non-term clause %T", ErrNotDisjunctive, c.Query)
			}
			terms = append(terms, *t)
		}
		return terms, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotDisjunctive, q)
	}
}
