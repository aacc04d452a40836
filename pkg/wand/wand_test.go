package wand_test

import (
	"bytes"
	"testing"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/wand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildS1Index() *posting.MemIndex {
	idx := posting.NewMemIndex(4)
	idx.AddTerm(0, []posting.Posting{
		{DocID: 0, Freq: 3},
		{DocID: 1, Freq: 3},
		{DocID: 2, Freq: 1},
		{DocID: 3, Freq: 3},
	})
	return idx
}

func TestBuildBM25Fixed(t *testing.T) {
	idx := buildS1Index()
	m, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{
		Ranker:    ranker.BM25{},
		DocLens:   []uint32{10, 10, 10, 20},
		BlockSize: 2,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 4, m.NumDocs())
	assert.InDelta(t, 12.5, m.AverageDoclen(), 1e-9)
	assert.True(t, m.HasTerm(0))
	assert.Greater(t, m.MaxTermWeight(0), 0.0)
	assert.Equal(t, 0.0, m.MaxDocumentWeight(0)) // BM25 doc weight always 0

	cur, ok := m.Enum(0)
	require.True(t, ok)
	assert.Equal(t, 2, cur.Size()) // 4 postings / block size 2 = 2 blocks
}

func TestCompressedRejectsLMDirichlet(t *testing.T) {
	idx := buildS1Index()
	_, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{
		Ranker:     ranker.LMDirichlet{},
		DocLens:    []uint32{10, 10, 10, 20},
		Compressed: true,
	})
	assert.ErrorIs(t, err, wand.ErrCompressedUnsupportsDocWeight)
}

func TestCompressedAcceptsBM25(t *testing.T) {
	idx := buildS1Index()
	m, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{
		Ranker:        ranker.BM25{},
		DocLens:       []uint32{10, 10, 10, 20},
		Compressed:    true,
		ReferenceSize: 4,
		BlockSize:     2,
	})
	require.NoError(t, err)
	assert.True(t, m.Compressed())
	assert.Equal(t, 0.0, m.MaxDocumentWeight(0))

	cur, ok := m.Enum(0)
	require.True(t, ok)
	assert.GreaterOrEqual(t, cur.Score(), float32(0))
}

func TestUnknownRanker(t *testing.T) {
	idx := buildS1Index()
	_, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{DocLens: []uint32{10, 10, 10, 20}})
	assert.ErrorIs(t, err, wand.ErrUnknownRanker)
}

// TestBlockSkipNeverSkipsMatches exercises invariant 8: a
// block's NextGEQ never lands past the true next-match boundary for a
// denser posting list than the block size.
func TestBlockSkipNeverSkipsMatches(t *testing.T) {
	idx := posting.NewMemIndex(100)
	postings := make([]posting.Posting, 40)
	for i := range postings {
		postings[i] = posting.Posting{DocID: uint32(i * 2), Freq: uint32(i%5 + 1)}
	}
	idx.AddTerm(0, postings)

	lens := make([]uint32, 100)
	for i := range lens {
		lens[i] = 10
	}
	m, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{
		Ranker:    ranker.BM25{},
		DocLens:   lens,
		BlockSize: 8,
	})
	require.NoError(t, err)

	cur, ok := m.Enum(0)
	require.True(t, ok)
	cur.NextGEQ(15)
	// block-last docid at or after the jump target must be >= 15, and since
	// blocks partition every actual posting docid, it must also be one of
	// the posting docids (even, < 100).
	assert.GreaterOrEqual(t, cur.DocID(), uint32(15))
	assert.Zero(t, cur.DocID()%2)
}

func TestWriteReadRoundTrip(t *testing.T) {
	idx := buildS1Index()
	m, err := wand.Build(idx, []uint32{0}, wand.BuildOptions{
		Ranker:    ranker.BM25{},
		DocLens:   []uint32{10, 10, 10, 20},
		BlockSize: 2,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	m2, err := wand.ReadFrom(&buf, 4)
	require.NoError(t, err)

	assert.Equal(t, m.MaxTermWeight(0), m2.MaxTermWeight(0))
	assert.Equal(t, m.AverageDoclen(), m2.AverageDoclen())
	assert.Equal(t, m.RankerID(), m2.RankerID())
	assert.True(t, m2.HasTerm(0))
}
