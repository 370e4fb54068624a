package wand

import "sort"

// sortByDocID performs the ordered cursor set's full resort: a stable
// sort by current docid, ascending.
func sortByDocID(cs []BlockMaxCursor) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].DocID() < cs[j].DocID()
	})
}

// bubbleDown restores docid order after the cursor at start was just
// advanced, by walking it forward past any now-smaller neighbors. strict
// selects the comparator: true uses "<" (ties keep the advanced cursor in
// its prior position), false uses "<=" (ties place the advanced cursor
// later). Both variants appear at different call sites in the driver;
// preserving the distinction per call site is load-bearing (spec §4.4).
func bubbleDown(cs []BlockMaxCursor, start int, strict bool) {
	for i := start + 1; i < len(cs); i++ {
		var swap bool
		if strict {
			swap = cs[i].DocID() < cs[i-1].DocID()
		} else {
			swap = cs[i].DocID() <= cs[i-1].DocID()
		}
		if !swap {
			break
		}
		cs[i], cs[i-1] = cs[i-1], cs[i]
	}
}
