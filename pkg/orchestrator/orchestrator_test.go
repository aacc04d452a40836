package orchestrator_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/fenwick-ir/topk/pkg/lexicon"
	"github.com/fenwick-ir/topk/pkg/orchestrator"
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCorpus constructs a tiny in-memory corpus: docs are bags of term ids
// over a shared vocabulary, with a lexicon mapping surface forms 1:1 to
// term ids so the target and external corpora can share surfaces.
func buildCorpus(t *testing.T, name string, docs [][]uint32, surfaces map[string]uint32, isTarget bool) orchestrator.Corpus {
	t.Helper()
	numDocs := uint64(len(docs))
	idx := posting.NewMemIndex(numDocs)

	termDocs := map[uint32][]posting.Posting{}
	records := make([]docvector.Record, numDocs)
	docLens := make([]uint32, numDocs)
	for d, terms := range docs {
		freqs := map[uint32]uint32{}
		for _, term := range terms {
			freqs[term]++
		}
		var termIDs []uint32
		for term := range freqs {
			termIDs = append(termIDs, term)
		}
		sort.Slice(termIDs, func(i, j int) bool { return termIDs[i] < termIDs[j] })
		fs := make([]uint32, len(termIDs))
		for i, term := range termIDs {
			fs[i] = freqs[term]
			termDocs[term] = append(termDocs[term], posting.Posting{DocID: uint32(d), Freq: freqs[term]})
		}
		records[d] = docvector.Record{DocID: uint32(d), DocLen: uint32(len(terms)), TermIDs: termIDs, Freqs: fs}
		docLens[d] = uint32(len(terms))
	}
	var allTerms []uint32
	for term, postings := range termDocs {
		idx.AddTerm(term, postings)
		allTerms = append(allTerms, term)
	}

	meta, err := wand.Build(idx, allTerms, wand.BuildOptions{
		Ranker:    ranker.BM25{},
		DocLens:   docLens,
		BlockSize: 64,
	})
	require.NoError(t, err)

	var lexLines strings.Builder
	for surface, id := range surfaces {
		lexLines.WriteString(surface)
		lexLines.WriteByte(' ')
		lexLines.WriteString(itoa(id))
		lexLines.WriteString(" 1 1\n")
	}
	lx, _, err := lexicon.Load(strings.NewReader(lexLines.String()))
	require.NoError(t, err)

	return orchestrator.Corpus{
		Name:          name,
		IsTarget:      isTarget,
		Index:         idx,
		Forward:       &docvector.Store{Records: records},
		Meta:          meta,
		Ranker:        ranker.BM25{},
		Lexicon:       lx,
		DocsToExpand:  5,
		TermsToExpand: 5,
		Lambda:        0.3,
		FinalK:        5,
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestRunSingleCorpusRanksRelevantDocFirst(t *testing.T) {
	surfaces := map[string]uint32{"cat": 1, "dog": 2, "bird": 3}
	docs := [][]uint32{
		{1, 1, 1, 2}, // doc 0: heavy on "cat"
		{3, 3, 3},    // doc 1: about "bird" only
		{2, 2},       // doc 2: about "dog" only
	}
	target := buildCorpus(t, "target", docs, surfaces, true)

	r, err := orchestrator.New(target, nil)
	require.NoError(t, err)

	results, err := r.Run([]string{"cat"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint32(0), results[0].DocID)
}

func TestRunMultiCorpusBuildsBackMapAndFuses(t *testing.T) {
	surfaces := map[string]uint32{"cat": 1, "dog": 2}
	targetDocs := [][]uint32{
		{1, 1, 1},
		{2, 2, 2},
	}
	target := buildCorpus(t, "target", targetDocs, surfaces, true)

	externalSurfaces := map[string]uint32{"cat": 100, "dog": 200}
	externalDocs := [][]uint32{
		{100, 100, 100, 200},
		{200, 200},
	}
	external := buildCorpus(t, "external", externalDocs, externalSurfaces, false)

	r, err := orchestrator.New(target, []orchestrator.Corpus{external})
	require.NoError(t, err)

	results, err := r.Run([]string{"cat"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestFuseRRFCombinesRankings(t *testing.T) {
	a := []topk.Result{{DocID: 1, Score: 1}, {DocID: 2, Score: 0.5}}
	b := []topk.Result{{DocID: 2, Score: 1}, {DocID: 3, Score: 0.5}}
	fused := orchestrator.FuseRRF([][]topk.Result{a, b}, 60)
	require.NotEmpty(t, fused)
	assert.Equal(t, uint32(2), fused[0].DocID) // doc 2 ranked in both lists
}
