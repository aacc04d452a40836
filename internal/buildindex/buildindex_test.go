package buildindex_test

import (
	"testing"

	"github.com/fenwick-ir/topk/internal/buildindex"
	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStore() *docvector.Store {
	return &docvector.Store{
		UniqueTerms: 3,
		Records: []docvector.Record{
			{DocID: 0, DocLen: 3, TermIDs: []uint32{1, 2}, Freqs: []uint32{2, 1}},
			{DocID: 1, DocLen: 2, TermIDs: []uint32{2, 3}, Freqs: []uint32{1, 1}},
			{DocID: 2, DocLen: 1, TermIDs: []uint32{1}, Freqs: []uint32{1}},
		},
	}
}

func TestInvertBuildsPostingsPerTerm(t *testing.T) {
	idx := buildindex.Invert(sampleStore())
	require.Equal(t, uint64(3), idx.NumDocs())

	c, ok := idx.List(1)
	require.True(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, uint32(0), c.DocID())
	assert.Equal(t, uint32(2), c.Freq())
	c.Next()
	assert.Equal(t, uint32(2), c.DocID())
	assert.Equal(t, uint32(1), c.Freq())

	c, ok = idx.List(2)
	require.True(t, ok)
	assert.Equal(t, 2, c.Size())

	_, ok = idx.List(99)
	assert.False(t, ok)
}

func TestDocLensDenseOrder(t *testing.T) {
	lens := buildindex.DocLens(sampleStore())
	assert.Equal(t, []uint32{3, 2, 1}, lens)
}

func TestTermIDsCoversEveryDistinctTerm(t *testing.T) {
	terms := buildindex.TermIDs(sampleStore())
	assert.ElementsMatch(t, []uint32{1, 2, 3}, terms)
}
