package evalrunner

import (
	"bufio"
	"fmt"
	"io"
)

// WriteTRECRun writes every query's ranked entries to w in the standard
// six-field TREC run format: qid iteration docid rank score run_id.
// "iteration" is always the literal "Q0" per convention.
func WriteTRECRun(w io.Writer, runID string, perQuery [][]RunEntry) error {
	bw := bufio.NewWriter(w)
	for _, entries := range perQuery {
		for _, e := range entries {
			if _, err := fmt.Fprintf(bw, "%s Q0 %d %d %.6f %s\n", e.QueryID, e.DocID, e.Rank, e.Score, runID); err != nil {
				return fmt.Errorf("write trec run line: %w", err)
			}
		}
	}
	return bw.Flush()
}
