package posting_test

import (
	"testing"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUnknownTerm(t *testing.T) {
	idx := posting.NewMemIndex(10)
	_, ok := idx.List(7)
	assert.False(t, ok)
}

func TestSliceCursorBasics(t *testing.T) {
	idx := posting.NewMemIndex(100)
	idx.AddTerm(1, []posting.Posting{
		{DocID: 5, Freq: 2},
		{DocID: 1, Freq: 1},
		{DocID: 50, Freq: 9},
	})

	c, ok := idx.List(1)
	require.True(t, ok)
	assert.Equal(t, 3, c.Size())

	assert.Equal(t, uint32(1), c.DocID())
	assert.Equal(t, uint32(1), c.Freq())
	c.Next()
	assert.Equal(t, uint32(5), c.DocID())
	assert.Equal(t, uint32(2), c.Freq())
	c.Next()
	assert.Equal(t, uint32(50), c.DocID())
	c.Next()
	assert.Equal(t, uint32(100), c.DocID()) // EOF sentinel == NumDocs
	assert.Equal(t, uint32(0), c.Freq())
}

func TestSliceCursorNextGEQ(t *testing.T) {
	idx := posting.NewMemIndex(100)
	idx.AddTerm(1, []posting.Posting{
		{DocID: 1, Freq: 1},
		{DocID: 5, Freq: 2},
		{DocID: 20, Freq: 3},
		{DocID: 21, Freq: 4},
	})
	c, _ := idx.List(1)

	c.NextGEQ(6)
	assert.Equal(t, uint32(20), c.DocID())

	c.NextGEQ(20) // already there: no-op
	assert.Equal(t, uint32(20), c.DocID())

	c.NextGEQ(1000)
	assert.Equal(t, uint32(100), c.DocID())
}

func TestAddTermDedupesKeepsFirstFreq(t *testing.T) {
	idx := posting.NewMemIndex(10)
	idx.AddTerm(1, []posting.Posting{
		{DocID: 3, Freq: 9},
		{DocID: 3, Freq: 1},
		{DocID: 4, Freq: 2},
	})
	c, ok := idx.List(1)
	require.True(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, uint32(3), c.DocID())
	assert.Equal(t, uint32(9), c.Freq())
}

func TestBitmapCursorPromotionAndBasics(t *testing.T) {
	const n = posting.DefaultBitmapThreshold + 10
	postings := make([]posting.Posting, n)
	for i := 0; i < n; i++ {
		postings[i] = posting.Posting{DocID: uint32(i * 2), Freq: uint32(i%7 + 1)}
	}

	idx := posting.NewMemIndex(uint64(n*2 + 10))
	idx.AddTerm(1, postings)

	assert.EqualValues(t, n, idx.DF(1))

	c, ok := idx.List(1)
	require.True(t, ok)
	assert.Equal(t, n, c.Size())
	assert.Equal(t, uint32(0), c.DocID())
	assert.Equal(t, uint32(1), c.Freq())

	c.NextGEQ(5)
	assert.Equal(t, uint32(6), c.DocID()) // next even docid >= 5

	for c.DocID() != uint32(n*2+10) {
		c.Next()
	}
	assert.Equal(t, uint32(0), c.Freq())
}

func TestDFUnknownTermIsZero(t *testing.T) {
	idx := posting.NewMemIndex(10)
	assert.EqualValues(t, 0, idx.DF(42))
}

func TestWarmupIsNoopAndSafe(t *testing.T) {
	idx := posting.NewMemIndex(10)
	idx.Warmup(42) // must not panic on an unknown term
}
