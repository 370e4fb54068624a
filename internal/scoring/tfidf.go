package scoring

import "math"

// TFIDFScorer computes plain length-unnormalized TF-IDF scores: a second,
// simpler Scorer alongside BM25Scorer for collections where BM25's length
// normalization is undesirable (e.g. near-uniform document lengths).
type TFIDFScorer struct {
	DocCount int64
}

// NewTFIDFScorer creates a scorer with the given segment document count.
func NewTFIDFScorer(docCount int64) *TFIDFScorer {
	return &TFIDFScorer{DocCount: docCount}
}

// IDF computes ln(1 + N/n(qi)), the classic smoothed inverse document
// frequency.
func (s *TFIDFScorer) IDF(docFreq int64) float32 {
	n := float64(docFreq)
	if n <= 0 {
		n = 1
	}
	N := float64(s.DocCount)
	return float32(math.Log(1 + N/n))
}

// Score computes sqrt(tf) × idf, ignoring docLen entirely.
func (s *TFIDFScorer) Score(termFreq uint32, docLen uint32, idf float32) float32 {
	return float32(math.Sqrt(float64(termFreq))) * idf
}
