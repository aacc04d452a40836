package query

import (
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// WAND implements pivoting dynamic pruning using term-level
// max-contribution bounds only (no block granularity).
func WAND(idx posting.Index, meta *wand.Meta, rk ranker.Ranker, terms []uint32, k int) (*topk.TopK, Counters) {
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

	for {
		pivot, _, _ := findPivot(cursors, tk, L, n)
		if pivot == -1 {
			break
		}
		counters.UniquePivotsProcessed++
		pivotDoc := cursors[pivot].docID()

		if cursors[0].docID() == pivotDoc {
			end := pivot + 1
			for end < len(cursors) && cursors[end].docID() == pivotDoc {
				end++
			}
			tied := cursors[:end]
			counters.PostingsScored += uint64(len(tied))
			score := scoreTied(tied, pivotDoc, rk, meta, L, stats)
			tk.Insert(score, pivotDoc)
			for _, c := range tied {
				c.postings.Next()
			}
		} else {
			advanceFarthestBelowPivot(cursors, pivot, pivotDoc)
		}
		sortCursorsByDocID(cursors)
	}
	return tk, counters
}

// findPivot is the pivot-selection step shared by WAND and BlockMax-WAND.
// Returns pivot == -1 when no prefix admits or a cursor hits EOF first.
func findPivot(cursors []*cursor, tk *topk.TopK, L float64, n uint32) (pivot int, upperBound, maxStaticDocWeight float64) {
	pivot = -1
	for p := 0; p < len(cursors); p++ {
		if cursors[p].docID() == n {
			return -1, upperBound, maxStaticDocWeight
		}
		upperBound += cursors[p].maxTermWeight
		if cursors[p].maxDocWeight > maxStaticDocWeight {
			maxStaticDocWeight = cursors[p].maxDocWeight
		}
		if tk.WouldEnter(L*maxStaticDocWeight + upperBound) {
			return p, upperBound, maxStaticDocWeight
		}
	}
	return -1, upperBound, maxStaticDocWeight
}
