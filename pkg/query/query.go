// Package query implements the dynamic-pruning top-k traversal engines:
// WAND, BlockMax-WAND, MaxScore, the RankedOr correctness oracle, and
// weighted MaxScore for second-stage expansion queries.
package query

import (
	"sort"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// Counters are the profiling counters every engine returns alongside its
// finalized TopK.
type Counters struct {
	UniquePivotsProcessed uint64
	PostingsScored        uint64
}

// cursor is the per-term traversal state shared by every engine.
type cursor struct {
	term          uint32
	postings      posting.Cursor
	qWeight       float64 // ranker.query_term_weight(f_qt, df), or the raw expansion weight
	maxTermWeight float64 // q_weight * WandMeta.max_term_weight(t)
	maxDocWeight  float64 // WandMeta.max_document_weight(t)
	ctf           uint64
	block         wand.BlockCursor // BMW only; nil otherwise
}

func (c *cursor) docID() uint32 { return c.postings.DocID() }

func statsFromMeta(m *wand.Meta) ranker.Stats {
	return ranker.Stats{
		NumDocs:           m.NumDocs(),
		AvgDocLen:         m.AverageDoclen(),
		TermsInCollection: m.TermsInCollection(),
	}
}

// countFreqs returns the per-distinct-term multiplicity f_qt.
func countFreqs(terms []uint32) map[uint32]uint32 {
	freqs := make(map[uint32]uint32, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	return freqs
}

// buildCursors builds and sorts the per-term cursors for an
// unweighted query: terms missing from either the posting index or the WAND
// metadata are silently dropped (the caller is responsible for dropping
// out-of-lexicon terms before traversal; a term absent from the index or
// metadata cannot be scored or bounded safely, so it is excluded here too).
func buildCursors(idx posting.Index, meta *wand.Meta, rk ranker.Ranker, termFreqs map[uint32]uint32, withBlocks bool) []*cursor {
	terms := make([]uint32, 0, len(termFreqs))
	for t := range termFreqs {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })

	stats := statsFromMeta(meta)
	cursors := make([]*cursor, 0, len(terms))
	for _, t := range terms {
		pc, ok := idx.List(t)
		if !ok || !meta.HasTerm(t) {
			continue
		}
		qw := rk.QueryTermWeight(termFreqs[t], uint64(pc.Size()), stats)
		c := &cursor{
			term:          t,
			postings:      pc,
			qWeight:       qw,
			maxTermWeight: qw * meta.MaxTermWeight(t),
			maxDocWeight:  meta.MaxDocumentWeight(t),
			ctf:           meta.CTF(t),
		}
		if withBlocks {
			c.block, _ = meta.Enum(t)
		}
		cursors = append(cursors, c)
	}
	return cursors
}

// WeightedTerm is one (TermId, weight) pair of an RM expansion query.
type WeightedTerm struct {
	TermID uint32
	Weight float64
}

// buildWeightedCursors is the weighted variant of buildCursors: the supplied
// weight replaces q_weight directly, and max_term_weight uses |weight|.
func buildWeightedCursors(idx posting.Index, meta *wand.Meta, weightQuery []WeightedTerm, withBlocks bool) []*cursor {
	sorted := append([]WeightedTerm(nil), weightQuery...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TermID < sorted[j].TermID })

	cursors := make([]*cursor, 0, len(sorted))
	for _, wt := range sorted {
		pc, ok := idx.List(wt.TermID)
		if !ok || !meta.HasTerm(wt.TermID) {
			continue
		}
		absWeight := wt.Weight
		if absWeight < 0 {
			absWeight = -absWeight
		}
		c := &cursor{
			term:          wt.TermID,
			postings:      pc,
			qWeight:       wt.Weight,
			maxTermWeight: absWeight * meta.MaxTermWeight(wt.TermID),
			maxDocWeight:  meta.MaxDocumentWeight(wt.TermID),
			ctf:           meta.CTF(wt.TermID),
		}
		if withBlocks {
			c.block, _ = meta.Enum(wt.TermID)
		}
		cursors = append(cursors, c)
	}
	return cursors
}

func sortCursorsByDocID(cursors []*cursor) {
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].docID() < cursors[j].docID() })
}

// scoreTied is the common scoring formula: the static
// document-weight term scaled by the query-length multiplier L, plus each
// tied cursor's per-posting contribution.
func scoreTied(tied []*cursor, docID uint32, rk ranker.Ranker, meta *wand.Meta, L float64, stats ranker.Stats) float64 {
	nl := meta.NormLen(docID)
	score := L * rk.CalculateDocumentWeight(nl)
	for _, c := range tied {
		score += c.qWeight * rk.DocTermWeight(c.postings.Freq(), nl, c.ctf, stats)
	}
	return score
}

// advanceFarthestBelowPivot implements the WAND/BMW "else" move: the rightmost cursor below pivotDoc is advanced to
// pivotDoc via next_geq.
func advanceFarthestBelowPivot(cursors []*cursor, pivot int, pivotDoc uint32) {
	i := pivot - 1
	for i > 0 && cursors[i].docID() == pivotDoc {
		i--
	}
	if i < 0 {
		i = 0
	}
	cursors[i].postings.NextGEQ(pivotDoc)
}

// RankedOr is the pruning-free correctness oracle: every
// docid present in any list is scored exactly.
func RankedOr(idx posting.Index, meta *wand.Meta, rk ranker.Ranker, terms []uint32, k int) (*topk.TopK, Counters) {
	tk := topk.New(k)
	var counters Counters
	if len(terms) == 0 {
		return tk, counters
	}
	cursors := buildCursors(idx, meta, rk, countFreqs(terms), false)
	if len(cursors) == 0 {
		return tk, counters
	}
	L := float64(len(terms))
	stats := statsFromMeta(meta)
	n := uint32(meta.NumDocs())

	sortCursorsByDocID(cursors)
	for cursors[0].docID() != n {
		curDoc := cursors[0].docID()
		var tied []*cursor
		for _, c := range cursors {
			if c.docID() == curDoc {
				tied = append(tied, c)
			}
		}
		counters.UniquePivotsProcessed++
		counters.PostingsScored += uint64(len(tied))

		score := scoreTied(tied, curDoc, rk, meta, L, stats)
		tk.Insert(score, curDoc)

		for _, c := range tied {
			c.postings.Next()
		}
		sortCursorsByDocID(cursors)
	}
	return tk, counters
}
