package query

import (
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// WeightedMaxScore is the second-stage retrieval
// pass over an RM expansion query, replacing per-term q_weight with the
// supplied weight and L with Σ weight. The spec defines expansion weights as
// non-negative; buildWeightedCursors still takes |weight| for the bound so
// the engine stays sound if that invariant is ever violated.
func WeightedMaxScore(idx posting.Index, meta *wand.Meta, weightQuery []WeightedTerm, k int) (*topk.TopK, Counters) {
	if len(weightQuery) == 0 {
		return topk.New(k), Counters{}
	}
	rk := rankerForWeighted(meta)
	cursors := buildWeightedCursors(idx, meta, weightQuery, false)

	var L float64
	for _, wt := range weightQuery {
		L += wt.Weight
	}
	return maxScoreCore(cursors, meta, rk, L, k)
}

// rankerForWeighted resolves the ranker recorded in meta so doc_term_weight
// and calculate_document_weight stay consistent with whatever metadata the
// expansion query is scored against.
func rankerForWeighted(meta *wand.Meta) ranker.Ranker {
	r, ok := ranker.ByID(ranker.ID(meta.RankerID()))
	if !ok {
		return ranker.BM25{}
	}
	return r
}
