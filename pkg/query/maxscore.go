package query

import (
	"math"
	"sort"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// MaxScore runs the MaxScore dynamic-pruning traversal over a plain term-id query.
func MaxScore(idx posting.Index, meta *wand.Meta, rk ranker.Ranker, terms []uint32, k int) (*topk.TopK, Counters) {
	if len(terms) == 0 {
		return topk.New(k), Counters{}
	}
	cursors := buildCursors(idx, meta, rk, countFreqs(terms), false)
	return maxScoreCore(cursors, meta, rk, float64(len(terms)), k)
}

// maxScoreCore is the engine body shared by MaxScore and WeightedMaxScore:
// both differ only in how cursors and L are constructed.
func maxScoreCore(cursors []*cursor, meta *wand.Meta, rk ranker.Ranker, L float64, k int) (*topk.TopK, Counters) {
	tk := topk.New(k)
	var counters Counters
	if len(cursors) == 0 {
		return tk, counters
	}
	stats := statsFromMeta(meta)
	n := uint32(meta.NumDocs())

	sortByMaxTermWeightAsc(cursors)
	m := len(cursors)
	U := make([]float64, m)
	D := make([]float64, m)
	for i := 0; i < m; i++ {
		if i == 0 {
			U[i] = cursors[i].maxTermWeight
			D[i] = cursors[i].maxDocWeight
		} else {
			U[i] = U[i-1] + cursors[i].maxTermWeight
			D[i] = math.Max(D[i-1], cursors[i].maxDocWeight)
		}
	}

	nonEssential := 0
	curDoc := minDocID(cursors, n)

	for nonEssential < m && curDoc != n {
		nl := meta.NormLen(curDoc)
		score := L * rk.CalculateDocumentWeight(nl)

		nextDoc := n
		for i := nonEssential; i < m; i++ {
			c := cursors[i]
			d := c.docID()
			if d == curDoc {
				score += c.qWeight * rk.DocTermWeight(c.postings.Freq(), nl, c.ctf, stats)
				counters.PostingsScored++
			} else if d > curDoc && d < nextDoc {
				nextDoc = d
			}
		}

		for i := nonEssential - 1; i >= 0; i-- {
			if !tk.WouldEnter(score + U[i]) {
				break
			}
			c := cursors[i]
			c.postings.NextGEQ(curDoc)
			if c.docID() == curDoc {
				score += c.qWeight * rk.DocTermWeight(c.postings.Freq(), nl, c.ctf, stats)
				counters.PostingsScored++
			}
		}

		counters.UniquePivotsProcessed++
		if tk.Insert(score, curDoc) {
			for nonEssential < m && !tk.WouldEnter(U[nonEssential]+L*D[nonEssential]) {
				nonEssential++
			}
		}

		for i := nonEssential; i < m; i++ {
			if cursors[i].docID() == curDoc {
				cursors[i].postings.Next()
			}
			if d := cursors[i].docID(); d < nextDoc {
				nextDoc = d
			}
		}
		curDoc = nextDoc
	}
	return tk, counters
}

func sortByMaxTermWeightAsc(cursors []*cursor) {
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].maxTermWeight < cursors[j].maxTermWeight })
}

func minDocID(cursors []*cursor, n uint32) uint32 {
	min := n
	for _, c := range cursors {
		if c.docID() < min {
			min = c.docID()
		}
	}
	return min
}
