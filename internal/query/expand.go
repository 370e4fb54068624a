package query

import (
	"fmt"
	"strings"

	"wandsearch/internal/automaton"
)

// ExpandPattern resolves a prefix or wildcard surface pattern against a
// field's term vocabulary, returning one TermQuery per matching term. A
// pattern with a single trailing '*' and no other wildcard byte is
// compiled as a PrefixAutomaton; anything else containing '*' or '?' is
// compiled as a full WildcardAutomaton. The segment format here carries
// no FST to intersect against, so matching walks the supplied vocabulary
// directly rather than an automaton/FST product.
func ExpandPattern(field, pattern string, vocabulary []string) ([]TermQuery, error) {
	a, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
	}

	var out []TermQuery
	for _, term := range vocabulary {
		if accepts(a, term) {
			out = append(out, TermQuery{Field: field, Term: term})
		}
	}
	return out, nil
}

// IsPattern reports whether surface text should be treated as a prefix or
// wildcard pattern rather than a literal term.
func IsPattern(text string) bool {
	return strings.ContainsAny(text, "*?")
}

func compilePattern(pattern string) (automaton.Automaton, error) {
	if strings.Count(pattern, "*") == 1 && strings.HasSuffix(pattern, "*") &&
		!strings.ContainsAny(pattern[:len(pattern)-1], "*?") {
		return automaton.NewPrefixAutomaton([]byte(pattern[:len(pattern)-1])), nil
	}
	return automaton.NewWildcardAutomaton([]byte(pattern))
}

func accepts(a automaton.Automaton, s string) bool {
	state := a.Start()
	for i := 0; i < len(s); i++ {
		state = a.Step(state, s[i])
		if state == automaton.DeadState {
			return false
		}
	}
	return a.IsAccept(state)
}
