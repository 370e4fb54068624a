// Package wandsegment builds and reads the segment file pair the WAND /
// BMW evaluation driver reads directly: a postings file of score-
// annotated, docid-sorted per-term lists, and a companion metadata file
// of per-term and per-block max-score bounds. It replaces the teacher's
// FST/positions/stored-field segment format, reusing the write buffer
// and commit protocol around it unchanged.
package wandsegment

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"wandsearch/internal/commit"
	"wandsearch/internal/index"
	"wandsearch/internal/indexing"
	"wandsearch/internal/metrics"
)

// DefaultBlockSize is the number of postings per block-max block when a
// Builder is not configured with one.
const DefaultBlockSize = 128

// Scorer scores a single term occurrence; satisfied by
// scoring.BM25Scorer and any other scorer sharing its shape.
type Scorer interface {
	IDF(docFreq int64) float32
	Score(termFreq uint32, docLen uint32, idf float32) float32
}

// Posting is one score-annotated occurrence of a term, sorted by DocID
// ascending within a TermList.
type Posting struct {
	DocID uint32
	Score float32
}

// Block is one block-max entry: the inclusive docid upper bound of the
// block and the maximum score among its postings.
type Block struct {
	DocIDEnd uint32
	MaxScore float32
}

// TermList holds one field:term's postings.
type TermList struct {
	Postings []Posting
}

// TermBound holds one field:term's pruning bounds.
type TermBound struct {
	MaxScore float32
	Blocks   []Block
}

// PostingsFile is the gob-encoded body of the segment's postings file.
type PostingsFile struct {
	Terms map[string]TermList
}

// WandMetaFile is the gob-encoded body of the segment's bounds file.
type WandMetaFile struct {
	BlockSize int
	Terms     map[string]TermBound
}

// DeletionsFile is the gob-encoded body of the segment's deletions file.
type DeletionsFile struct {
	ExternalIDs map[string]bool
}

// termKey joins field and term into the map key used by both files.
func termKey(field, term string) string {
	return field + "\x00" + term
}

// Builder turns a completed indexing.WriteBuffer into WAND-ready segment
// files.
type Builder struct {
	BlockSize int

	// Metrics, if set, records build latency and posting counts. Nil is
	// a valid no-op default.
	Metrics *metrics.Registry
}

// NewBuilder creates a Builder with DefaultBlockSize.
func NewBuilder() *Builder {
	return &Builder{BlockSize: DefaultBlockSize}
}

// Build scores every posting in buf with scorer, computes per-term and
// per-block max-score bounds, and returns the resulting segment files
// ready for commit.Committer.Commit.
func (b *Builder) Build(buf *indexing.WriteBuffer, scorer Scorer) (*commit.SegmentData, error) {
	start := time.Now()
	blockSize := b.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	docLens := docLengths(buf)

	postingsOut := PostingsFile{Terms: make(map[string]TermList)}
	boundsOut := WandMetaFile{BlockSize: blockSize, Terms: make(map[string]TermBound)}

	var minDocID uint64 = ^uint64(0)
	var maxDocID uint64
	sawPosting := false

	for field, termMap := range buf.InvertedIndex {
		for term, pl := range termMap {
			sorted := append([]indexing.PostingEntry(nil), pl.Entries...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })

			idf := scorer.IDF(int64(len(sorted)))

			postings := make([]Posting, len(sorted))
			var maxScore float32
			for i, e := range sorted {
				s := scorer.Score(e.Freq, docLens[e.DocID], idf)
				postings[i] = Posting{DocID: e.DocID, Score: s}
				if s > maxScore {
					maxScore = s
				}
				sawPosting = true
				if uint64(e.DocID) < minDocID {
					minDocID = uint64(e.DocID)
				}
				if uint64(e.DocID) > maxDocID {
					maxDocID = uint64(e.DocID)
				}
			}

			key := termKey(field, term)
			postingsOut.Terms[key] = TermList{Postings: postings}
			boundsOut.Terms[key] = TermBound{
				MaxScore: maxScore,
				Blocks:   buildBlocks(postings, blockSize),
			}
		}
	}
	if !sawPosting {
		minDocID = 0
	}

	postingsBytes, err := encodeGob(postingsOut)
	if err != nil {
		return nil, fmt.Errorf("encode postings: %w", err)
	}
	metaBytes, err := encodeGob(boundsOut)
	if err != nil {
		return nil, fmt.Errorf("encode wand metadata: %w", err)
	}
	delOut := DeletionsFile{ExternalIDs: buf.Deletions}
	delBytes, err := encodeGob(delOut)
	if err != nil {
		return nil, fmt.Errorf("encode deletions: %w", err)
	}

	files := map[string][]byte{
		"postings.bin":  append([]byte(index.MagicPostings), postingsBytes...),
		"wandmeta.bin":  append([]byte(index.MagicWandMeta), metaBytes...),
		"deletions.bin": append([]byte(index.MagicDeletions), delBytes...),
	}

	if b.Metrics != nil {
		postingCount := 0
		for _, tl := range postingsOut.Terms {
			postingCount += len(tl.Postings)
		}
		b.Metrics.ObserveBuild(time.Since(start), postingCount)
	}

	return &commit.SegmentData{
		Files:         files,
		DocCount:      uint32(buf.DocCount),
		DocCountAlive: uint32(buf.DocCount - len(buf.Deletions)),
		DelCount:      uint32(len(buf.Deletions)),
		MinDocID:      minDocID,
		MaxDocID:      maxDocID,
	}, nil
}

// buildBlocks partitions postings (already docid-sorted) into fixed-size
// blocks and computes each block's max score.
func buildBlocks(postings []Posting, blockSize int) []Block {
	var blocks []Block
	for i := 0; i < len(postings); i += blockSize {
		end := i + blockSize
		if end > len(postings) {
			end = len(postings)
		}
		var maxScore float32
		for _, p := range postings[i:end] {
			if p.Score > maxScore {
				maxScore = p.Score
			}
		}
		blocks = append(blocks, Block{DocIDEnd: postings[end-1].DocID, MaxScore: maxScore})
	}
	return blocks
}

// docLengths sums term frequencies per document across every indexed
// field, the document-length input BM25 (and similar scorers) need.
func docLengths(buf *indexing.WriteBuffer) map[uint32]uint32 {
	lens := make(map[uint32]uint32, buf.DocCount)
	for _, fieldMap := range buf.InvertedIndex {
		for _, pl := range fieldMap {
			for _, e := range pl.Entries {
				lens[e.DocID] += e.Freq
			}
		}
	}
	return lens
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
