package query_test

import (
	"math/rand"
	"testing"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/query"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMeta(t *testing.T, idx *posting.MemIndex, terms []uint32, docLens []uint32, rk ranker.Ranker, blockSize int) *wand.Meta {
	t.Helper()
	m, err := wand.Build(idx, terms, wand.BuildOptions{Ranker: rk, DocLens: docLens, BlockSize: blockSize})
	require.NoError(t, err)
	return m
}

// TestS1BM25Tie checks a BM25 tie-break scenario.
func TestS1BM25Tie(t *testing.T) {
	idx := posting.NewMemIndex(4)
	idx.AddTerm(0, []posting.Posting{{DocID: 0, Freq: 3}, {DocID: 1, Freq: 3}, {DocID: 2, Freq: 1}, {DocID: 3, Freq: 3}})
	lens := []uint32{10, 10, 10, 20}
	m := buildMeta(t, idx, []uint32{0}, lens, ranker.BM25{}, 2)

	tk, counters := query.WAND(idx, m, ranker.BM25{}, []uint32{0}, 2)
	res := tk.Finalize()
	require.Len(t, res, 2)
	assert.Greater(t, counters.PostingsScored, uint64(0))

	docs := map[uint32]bool{res[0].DocID: true, res[1].DocID: true}
	assert.False(t, docs[2]) // lowest freq, excluded from top-2
}

// TestS2EmptyQuery checks empty-query behavior for every engine.
func TestS2EmptyQuery(t *testing.T) {
	idx := posting.NewMemIndex(4)
	idx.AddTerm(0, []posting.Posting{{DocID: 0, Freq: 1}})
	m := buildMeta(t, idx, []uint32{0}, []uint32{5, 5, 5, 5}, ranker.BM25{}, 2)

	for name, run := range map[string]func() (int, uint64, uint64){
		"wand": func() (int, uint64, uint64) {
			tk, c := query.WAND(idx, m, ranker.BM25{}, nil, 5)
			return len(tk.Finalize()), c.UniquePivotsProcessed, c.PostingsScored
		},
		"bmw": func() (int, uint64, uint64) {
			tk, c := query.BlockMaxWAND(idx, m, ranker.BM25{}, nil, 5)
			return len(tk.Finalize()), c.UniquePivotsProcessed, c.PostingsScored
		},
		"maxscore": func() (int, uint64, uint64) {
			tk, c := query.MaxScore(idx, m, ranker.BM25{}, nil, 5)
			return len(tk.Finalize()), c.UniquePivotsProcessed, c.PostingsScored
		},
		"rankedor": func() (int, uint64, uint64) {
			tk, c := query.RankedOr(idx, m, ranker.BM25{}, nil, 5)
			return len(tk.Finalize()), c.UniquePivotsProcessed, c.PostingsScored
		},
	} {
		n, pivots, scored := run()
		assert.Zero(t, n, name)
		assert.Zero(t, pivots, name)
		assert.Zero(t, scored, name)
	}
}

func randomIndex(t *testing.T, numDocs int, numTerms int, seed int64) (*posting.MemIndex, []uint32, []uint32) {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	idx := posting.NewMemIndex(uint64(numDocs))
	lens := make([]uint32, numDocs)
	for d := range lens {
		lens[d] = uint32(5 + r.Intn(50))
	}
	terms := make([]uint32, numTerms)
	for ti := 0; ti < numTerms; ti++ {
		term := uint32(ti)
		terms[ti] = term
		var postings []posting.Posting
		for d := 0; d < numDocs; d++ {
			if r.Float64() < 0.3 {
				postings = append(postings, posting.Posting{DocID: uint32(d), Freq: uint32(1 + r.Intn(5))})
			}
		}
		if len(postings) > 0 {
			idx.AddTerm(term, postings)
		}
	}
	return idx, terms, lens
}

// TestCorrectnessAgainstRankedOr checks that every
// dynamic-pruning engine's top-k matches RankedOr's, within tolerance.
func TestCorrectnessAgainstRankedOr(t *testing.T) {
	for _, rk := range []ranker.Ranker{ranker.BM25{}, ranker.LMDirichlet{}} {
		idx, allTerms, lens := randomIndex(t, 200, 12, 42)
		m := buildMeta(t, idx, allTerms, lens, rk, 8)

		q := []uint32{0, 1, 2, 3, 4}
		const k = 5

		oracle, _ := query.RankedOr(idx, m, rk, q, k)
		oracleRes := oracle.Finalize()

		wandTK, _ := query.WAND(idx, m, rk, q, k)
		wandRes := wandTK.Finalize()

		bmwTK, _ := query.BlockMaxWAND(idx, m, rk, q, k)
		bmwRes := bmwTK.Finalize()

		msTK, _ := query.MaxScore(idx, m, rk, q, k)
		msRes := msTK.Finalize()

		assertSameTopK(t, oracleRes, wandRes, rk.Name()+"/wand")
		assertSameTopK(t, oracleRes, bmwRes, rk.Name()+"/bmw")
		assertSameTopK(t, oracleRes, msRes, rk.Name()+"/maxscore")
	}
}

func assertSameTopK(t *testing.T, oracle, got []topk.Result, label string) {
	t.Helper()
	require.Len(t, got, len(oracle), label)
	for i := range oracle {
		assert.Equal(t, oracle[i].DocID, got[i].DocID, "%s rank %d", label, i)
		assert.InEpsilon(t, oracle[i].Score+1, got[i].Score+1, 1e-5, "%s rank %d", label, i)
	}
}

// TestWeightedMaxScoreMonotone checks that scaling
// every expansion weight by a constant must not change the ranking.
func TestWeightedMaxScoreMonotone(t *testing.T) {
	idx, allTerms, lens := randomIndex(t, 100, 6, 7)
	m := buildMeta(t, idx, allTerms, lens, ranker.BM25{}, 4)

	wq := []query.WeightedTerm{{TermID: 0, Weight: 0.5}, {TermID: 1, Weight: 0.3}, {TermID: 2, Weight: 0.2}}
	wq2 := make([]query.WeightedTerm, len(wq))
	for i, w := range wq {
		wq2[i] = query.WeightedTerm{TermID: w.TermID, Weight: w.Weight * 2}
	}

	tk1, _ := query.WeightedMaxScore(idx, m, wq, 5)
	tk2, _ := query.WeightedMaxScore(idx, m, wq2, 5)

	res1 := tk1.Finalize()
	res2 := tk2.Finalize()
	require.Len(t, res2, len(res1))
	for i := range res1 {
		assert.Equal(t, res1[i].DocID, res2[i].DocID)
		assert.InDelta(t, res1[i].Score*2, res2[i].Score, 1e-6)
	}
}

// TestLMDirichletRepeatedQueryTerm checks that a duplicated query term id
// contributes once to the term sum (query_term_weight is the constant 1 for
// LM-Dirichlet) while the static document weight still scales with the full
// query length including duplicates. The best doc's score is read through
// Threshold() since LM totals here are negative and Finalize would drop them.
func TestLMDirichletRepeatedQueryTerm(t *testing.T) {
	rk := ranker.LMDirichlet{}
	idx := posting.NewMemIndex(2)
	idx.AddTerm(0, []posting.Posting{{DocID: 0, Freq: 2}, {DocID: 1, Freq: 1}})
	idx.AddTerm(1, []posting.Posting{{DocID: 0, Freq: 1}})
	lens := []uint32{6, 4}
	m := buildMeta(t, idx, []uint32{0, 1}, lens, rk, 2)

	q := []uint32{0, 0, 1} // term 0 repeated: f_qt = 2, |q| = 3
	stats := ranker.Stats{NumDocs: 2, AvgDocLen: 5, TermsInCollection: 10}
	want := 3*rk.CalculateDocumentWeight(6) +
		rk.DocTermWeight(2, 6, 3, stats) +
		rk.DocTermWeight(1, 6, 1, stats)

	for name, run := range map[string]func() *topk.TopK{
		"rankedor": func() *topk.TopK { tk, _ := query.RankedOr(idx, m, rk, q, 1); return tk },
		"wand":     func() *topk.TopK { tk, _ := query.WAND(idx, m, rk, q, 1); return tk },
		"bmw":      func() *topk.TopK { tk, _ := query.BlockMaxWAND(idx, m, rk, q, 1); return tk },
		"maxscore": func() *topk.TopK { tk, _ := query.MaxScore(idx, m, rk, q, 1); return tk },
	} {
		tk := run()
		assert.InDelta(t, want, tk.Threshold(), 1e-9, name)
	}
}

// TestBMWBlockSkipStaysWithinBounds checks that block skipping never skips a matching document.
func TestBMWBlockSkipStaysWithinBounds(t *testing.T) {
	idx, allTerms, lens := randomIndex(t, 500, 3, 99)
	m := buildMeta(t, idx, allTerms, lens, ranker.BM25{}, 16)

	tk, counters := query.BlockMaxWAND(idx, m, ranker.BM25{}, allTerms, 3)
	require.NotNil(t, tk)
	assert.GreaterOrEqual(t, counters.UniquePivotsProcessed, uint64(0))

	oracle, _ := query.RankedOr(idx, m, ranker.BM25{}, allTerms, 3)
	assertSameTopK(t, oracle.Finalize(), tk.Finalize(), "bmw/block-skip")
}
