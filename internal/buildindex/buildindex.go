// Package buildindex inverts a document-vector forward index
// into the one concrete PostingIndex this repo ships (pkg/posting.MemIndex).
// The production inverted-list encoding is out of spec scope;
// every cmd/ binary that needs something to drive pkg/query's traversal
// engines against builds it this way instead.
package buildindex

import (
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/posting"
)

// Invert builds a dense-docid MemIndex from a fully decoded forward index
// store: every (TermId, freq) pair across every document becomes one
// posting in that term's list.
func Invert(store *docvector.Store) *posting.MemIndex {
	idx := posting.NewMemIndex(uint64(len(store.Records)))
	byTerm := make(map[uint32][]posting.Posting)
	for _, rec := range store.Records {
		for i, t := range rec.TermIDs {
			byTerm[t] = append(byTerm[t], posting.Posting{DocID: rec.DocID, Freq: rec.Freqs[i]})
		}
	}
	for t, postings := range byTerm {
		idx.AddTerm(t, postings)
	}
	return idx
}

// DocLens extracts ℓ(d) for every docid in dense [0, N) order.
func DocLens(store *docvector.Store) []uint32 {
	lens := make([]uint32, len(store.Records))
	for _, rec := range store.Records {
		if int(rec.DocID) < len(lens) {
			lens[rec.DocID] = rec.DocLen
		}
	}
	return lens
}

// TermIDs returns every distinct TermId occurring in store, unsorted.
func TermIDs(store *docvector.Store) []uint32 {
	seen := make(map[uint32]struct{})
	for _, rec := range store.Records {
		for _, t := range rec.TermIDs {
			seen[t] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out
}
