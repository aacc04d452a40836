// Package posting defines the PostingIndex capability this system consumes
// and
// ships one concrete in-memory reference implementation so the traversal
// engines in pkg/query have something real to run against in tests and
// small/demo corpora. The on-disk encoding family (Elias-Fano, block codecs)
// remains out of spec scope; MemIndex is deliberately the simplest thing
// that satisfies the Cursor contract, not a production posting-list codec.
package posting

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// DefaultBitmapThreshold is the document-frequency point above which a term's
// posting list is stored as a roaring bitmap (SIMD-friendly skips) instead of
// a sorted slice (cache-friendly for short lists).
const DefaultBitmapThreshold = 2000

// Cursor is a per-term iterator over a posting list: docid, freq, next,
// next_geq, size.
// EOF is signalled by DocID() returning the index's NumDocs().
type Cursor interface {
	DocID() uint32
	Freq() uint32
	Next()
	NextGEQ(target uint32)
	Size() int
}

// Index is the opaque PostingIndex contract: num_docs,
// operator[](TermId) → Cursor, warmup(TermId).
type Index interface {
	NumDocs() uint64
	List(term uint32) (Cursor, bool)
	Warmup(term uint32)
}

// Posting is a single (DocID, Freq) pair as consumed by MemIndex.AddTerm.
type Posting struct {
	DocID uint32
	Freq  uint32
}

// termEntry holds exactly one of the two representations below.
type termEntry struct {
	docs  []uint32 // small lists: sorted, parallel to freqs
	freqs []uint32

	bm      *roaring.Bitmap // large lists: docid set
	freqMap map[uint32]uint32
}

// MemIndex is a reference PostingIndex implementation: dense docids in
// [0, NumDocs), dual-mode per-term storage (slice under
// DefaultBitmapThreshold, roaring.Bitmap at or above it), generalized to
// carry a parallel per-doc frequency alongside the docid set.
type MemIndex struct {
	numDocs uint64
	terms   map[uint32]*termEntry
}

// NewMemIndex creates an empty reference index over numDocs dense docids.
func NewMemIndex(numDocs uint64) *MemIndex {
	return &MemIndex{numDocs: numDocs, terms: make(map[uint32]*termEntry)}
}

// AddTerm registers the complete posting list for term. postings need not be
// pre-sorted; AddTerm sorts by DocID if necessary.
func (m *MemIndex) AddTerm(term uint32, postings []Posting) {
	if !sort.SliceIsSorted(postings, func(i, j int) bool { return postings[i].DocID < postings[j].DocID }) {
		sort.Slice(postings, func(i, j int) bool { return postings[i].DocID < postings[j].DocID })
	}
	postings = dedupPostings(postings)

	e := &termEntry{}
	if len(postings) >= DefaultBitmapThreshold {
		e.bm = roaring.New()
		e.freqMap = make(map[uint32]uint32, len(postings))
		for _, p := range postings {
			e.bm.Add(p.DocID)
			e.freqMap[p.DocID] = p.Freq
		}
	} else {
		e.docs = make([]uint32, len(postings))
		e.freqs = make([]uint32, len(postings))
		for i, p := range postings {
			e.docs[i] = p.DocID
			e.freqs[i] = p.Freq
		}
	}
	m.terms[term] = e
}

func dedupPostings(postings []Posting) []Posting {
	if len(postings) <= 1 {
		return postings
	}
	write := 1
	for read := 1; read < len(postings); read++ {
		if postings[read].DocID != postings[write-1].DocID {
			postings[write] = postings[read]
			write++
		}
	}
	return postings[:write]
}

// NumDocs returns N, the number of dense docids in [0, N).
func (m *MemIndex) NumDocs() uint64 { return m.numDocs }

// Warmup is a no-op for an in-memory index; a real mmap-backed
// implementation would fault the term's pages into residency here.
func (m *MemIndex) Warmup(uint32) {}

// List returns a fresh cursor positioned at the first posting for term, or
// false if the term has no registered posting list.
func (m *MemIndex) List(term uint32) (Cursor, bool) {
	e, ok := m.terms[term]
	if !ok {
		return nil, false
	}
	if e.bm != nil {
		return newBitmapCursor(e, m.numDocs), true
	}
	return newSliceCursor(e, m.numDocs), true
}

// DF returns the document frequency of term, or 0 if unknown.
func (m *MemIndex) DF(term uint32) uint64 {
	e, ok := m.terms[term]
	if !ok {
		return 0
	}
	if e.bm != nil {
		return e.bm.GetCardinality()
	}
	return uint64(len(e.docs))
}

// ---- slice-backed cursor ----

type sliceCursor struct {
	e   *termEntry
	idx int
	end uint32
}

func newSliceCursor(e *termEntry, numDocs uint64) *sliceCursor {
	return &sliceCursor{e: e, end: uint32(numDocs)}
}

func (c *sliceCursor) DocID() uint32 {
	if c.idx >= len(c.e.docs) {
		return c.end
	}
	return c.e.docs[c.idx]
}

func (c *sliceCursor) Freq() uint32 {
	if c.idx >= len(c.e.docs) {
		return 0
	}
	return c.e.freqs[c.idx]
}

func (c *sliceCursor) Next() {
	if c.idx < len(c.e.docs) {
		c.idx++
	}
}

func (c *sliceCursor) NextGEQ(target uint32) {
	if c.idx < len(c.e.docs) && c.e.docs[c.idx] >= target {
		return
	}
	lo := c.idx
	c.idx = lo + sort.Search(len(c.e.docs)-lo, func(i int) bool { return c.e.docs[lo+i] >= target })
}

func (c *sliceCursor) Size() int { return len(c.e.docs) }

// ---- bitmap-backed cursor ----

type bitmapCursor struct {
	e    *termEntry
	it   roaring.IntPeekable
	cur  uint32
	end  uint32
	done bool
}

func newBitmapCursor(e *termEntry, numDocs uint64) *bitmapCursor {
	it := e.bm.Iterator()
	c := &bitmapCursor{e: e, it: it, end: uint32(numDocs)}
	if it.HasNext() {
		c.cur = it.Next()
	} else {
		c.done = true
	}
	return c
}

func (c *bitmapCursor) DocID() uint32 {
	if c.done {
		return c.end
	}
	return c.cur
}

func (c *bitmapCursor) Freq() uint32 {
	if c.done {
		return 0
	}
	return c.e.freqMap[c.cur]
}

func (c *bitmapCursor) Next() {
	if c.done {
		return
	}
	if c.it.HasNext() {
		c.cur = c.it.Next()
	} else {
		c.done = true
	}
}

func (c *bitmapCursor) NextGEQ(target uint32) {
	if c.done || c.cur >= target {
		return
	}
	c.it.AdvanceIfNeeded(target)
	if c.it.HasNext() {
		c.cur = c.it.Next()
	} else {
		c.done = true
	}
}

func (c *bitmapCursor) Size() int { return int(c.e.bm.GetCardinality()) }
