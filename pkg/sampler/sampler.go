// Package sampler implements the weighted query-generation variant: sampling bag-of-words queries from a weighted term distribution via
// a seeded PRNG and inverse-CDF bisection.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/fenwick-ir/topk/pkg/query"
)

// Sampler draws queries from a weighted term distribution using a seeded
// PRNG.
type Sampler struct {
	rng *rand.Rand
}

// New creates a Sampler seeded deterministically for reproducible runs.
func New(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

func buildCDF(w []query.WeightedTerm) ([]uint32, []float64) {
	terms := make([]uint32, len(w))
	cdf := make([]float64, len(w))
	var sum float64
	for _, t := range w {
		sum += t.Weight
	}
	var running float64
	for i, t := range w {
		terms[i] = t.TermID
		running += t.Weight
		if sum > 0 {
			cdf[i] = running / sum
		} else {
			cdf[i] = float64(i+1) / float64(len(w))
		}
	}
	return terms, cdf
}

// bisect returns the smallest index i with cdf[i] >= target.
func bisect(cdf []float64, target float64) int {
	return sort.Search(len(cdf), func(i int) bool { return cdf[i] >= target })
}

// GenerateQuery draws a query of length n ~ Uniform{min..max}, each term
// i.i.d. from W via inverse-CDF bisect.
func (s *Sampler) GenerateQuery(w []query.WeightedTerm, min, max int) []uint32 {
	if len(w) == 0 || max < min {
		return nil
	}
	terms, cdf := buildCDF(w)
	n := min
	if max > min {
		n = min + s.rng.Intn(max-min+1)
	}
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		idx := bisect(cdf, s.rng.Float64())
		if idx >= len(terms) {
			idx = len(terms) - 1
		}
		out[i] = terms[idx]
	}
	return out
}

// GenerateQueryBatch runs b draws of GenerateQuery; each produced query also
// includes each term of original independently with probability 0.5.
func (s *Sampler) GenerateQueryBatch(w []query.WeightedTerm, original []uint32, min, max, b int) [][]uint32 {
	out := make([][]uint32, b)
	for i := 0; i < b; i++ {
		q := s.GenerateQuery(w, min, max)
		for _, t := range original {
			if s.rng.Float64() < 0.5 {
				q = append(q, t)
			}
		}
		out[i] = q
	}
	return out
}
