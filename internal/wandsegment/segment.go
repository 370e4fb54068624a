package wandsegment

import (
	"errors"
	"fmt"
	"strings"

	"wandsearch/internal/index"
)

const magicLen = 8

// ErrBadMagic is returned when a segment file's header doesn't match its
// expected magic number.
var ErrBadMagic = errors.New("wandsegment: bad magic number")

// Segment is an opened, queryable segment: per-term postings and bounds,
// plus the set of externally-deleted IDs recorded against it.
type Segment struct {
	postings PostingsFile
	bounds   WandMetaFile
	deleted  map[string]bool
}

// Open parses a segment's file set (as produced by Builder.Build and
// written to disk by commit.Committer) back into a queryable Segment.
func Open(files map[string][]byte) (*Segment, error) {
	postingsRaw, ok := files["postings.bin"]
	if !ok {
		return nil, fmt.Errorf("wandsegment: missing postings.bin")
	}
	metaRaw, ok := files["wandmeta.bin"]
	if !ok {
		return nil, fmt.Errorf("wandsegment: missing wandmeta.bin")
	}
	delRaw, ok := files["deletions.bin"]
	if !ok {
		return nil, fmt.Errorf("wandsegment: missing deletions.bin")
	}

	var postings PostingsFile
	if err := readTagged(postingsRaw, index.MagicPostings, &postings); err != nil {
		return nil, fmt.Errorf("read postings.bin: %w", err)
	}
	var bounds WandMetaFile
	if err := readTagged(metaRaw, index.MagicWandMeta, &bounds); err != nil {
		return nil, fmt.Errorf("read wandmeta.bin: %w", err)
	}
	var dels DeletionsFile
	if err := readTagged(delRaw, index.MagicDeletions, &dels); err != nil {
		return nil, fmt.Errorf("read deletions.bin: %w", err)
	}

	return &Segment{postings: postings, bounds: bounds, deleted: dels.ExternalIDs}, nil
}

func readTagged(data []byte, magic string, v interface{}) error {
	if len(data) < magicLen || string(data[:magicLen]) != magic {
		return ErrBadMagic
	}
	return decodeGob(data[magicLen:], v)
}

// Cursor returns a BlockMaxCursor over field:term's postings weighted by
// weight, or false if the segment has no postings for that term.
func (s *Segment) Cursor(field, term string, weight float32) (*Cursor, bool) {
	key := termKey(field, term)
	tl, ok := s.postings.Terms[key]
	if !ok || len(tl.Postings) == 0 {
		return nil, false
	}
	bound := s.bounds.Terms[key]
	return newCursor(tl.Postings, bound, weight), true
}

// DeletedCount reports how many external IDs this segment has recorded
// as deleted.
func (s *Segment) DeletedCount() int {
	return len(s.deleted)
}

// TermsForField returns every term with postings under field, in
// unspecified order. Used to resolve prefix/wildcard surface patterns
// against the segment's actual vocabulary.
func (s *Segment) TermsForField(field string) []string {
	prefix := field + "\x00"
	var terms []string
	for key := range s.postings.Terms {
		if t, ok := strings.CutPrefix(key, prefix); ok {
			terms = append(terms, t)
		}
	}
	return terms
}
