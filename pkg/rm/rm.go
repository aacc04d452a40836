// Package rm implements Relevance-Model (RM) query expansion: a DaaT merge over the forward-index vectors of top-k feedback
// documents, plus the weight-transform helpers the multi-corpus
// orchestrator composes around it.
package rm

import (
	"math"
	"sort"

	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/query"
)

// FeedbackDoc is one pseudo-relevant document contributing to expansion:
// its first-stage retrieval score and its forward-index vector.
type FeedbackDoc struct {
	Score  float64
	Vector docvector.Record
}

// Expand merges feedback vectors DaaT, accumulating
// w(t) = Σ_d score_d · f_{d,t}/ℓ_d, then returns the top-T terms by weight
// descending (T <= 0 means no truncation).
func Expand(feedback []FeedbackDoc, t int) []query.WeightedTerm {
	cursors := make([]*docvector.Cursor, len(feedback))
	for i, f := range feedback {
		vec := f.Vector
		cursors[i] = docvector.NewCursor(&vec)
	}

	weights := make(map[uint32]float64)
	for {
		curTerm := uint32(docvector.EOFTermID)
		for _, c := range cursors {
			if c.TermID() < curTerm {
				curTerm = c.TermID()
			}
		}
		if curTerm == docvector.EOFTermID {
			break
		}
		for i, c := range cursors {
			if c.TermID() != curTerm {
				continue
			}
			if ld := float64(c.DocLen()); ld > 0 {
				weights[curTerm] += feedback[i].Score * float64(c.Freq()) / ld
			}
			c.Next()
		}
	}

	out := make([]query.WeightedTerm, 0, len(weights))
	for term, w := range weights {
		out = append(out, query.WeightedTerm{TermID: term, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].TermID < out[j].TermID
	})
	if t > 0 && len(out) > t {
		out = out[:t]
	}
	return out
}

// Normalize divides each weight by Σ|weight| so weights sum to 1 over the
// target vocabulary.
func Normalize(w []query.WeightedTerm) []query.WeightedTerm {
	var sum float64
	for _, t := range w {
		sum += math.Abs(t.Weight)
	}
	out := make([]query.WeightedTerm, len(w))
	if sum == 0 {
		copy(out, w)
		return out
	}
	for i, t := range w {
		out[i] = query.WeightedTerm{TermID: t.TermID, Weight: t.Weight / sum}
	}
	return out
}

// NormalizeExt drops entries whose TermId is absent from backMap, remaps
// the survivors through it, then normalizes.
func NormalizeExt(w []query.WeightedTerm, backMap map[uint32]uint32) []query.WeightedTerm {
	mapped := make([]query.WeightedTerm, 0, len(w))
	for _, t := range w {
		if tgt, ok := backMap[t.TermID]; ok {
			mapped = append(mapped, query.WeightedTerm{TermID: tgt, Weight: t.Weight})
		}
	}
	return Normalize(mapped)
}

// QueryFromExtToSrc remaps a raw query's term ids through backMap, dropping
// any term absent from it.
func QueryFromExtToSrc(q []uint32, backMap map[uint32]uint32) []uint32 {
	out := make([]uint32, 0, len(q))
	for _, t := range q {
		if tgt, ok := backMap[t]; ok {
			out = append(out, tgt)
		}
	}
	return out
}

// AddOriginalQuery scales every weight in w by (1-λ), then adds λ/|q| to the
// weight of each term in q, creating an entry if one is not already present.
func AddOriginalQuery(lambda float64, w []query.WeightedTerm, q []uint32) []query.WeightedTerm {
	weights := make(map[uint32]float64, len(w)+len(q))
	for _, t := range w {
		weights[t.TermID] = t.Weight * (1 - lambda)
	}
	if len(q) > 0 {
		share := lambda / float64(len(q))
		for _, t := range q {
			weights[t] += share
		}
	}
	out := make([]query.WeightedTerm, 0, len(weights))
	for term, wt := range weights {
		out = append(out, query.WeightedTerm{TermID: term, Weight: wt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TermID < out[j].TermID })
	return out
}
