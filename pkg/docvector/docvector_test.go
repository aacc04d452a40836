package docvector_test

import (
	"bytes"
	"testing"

	"github.com/fenwick-ir/topk/pkg/docvector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFreqs(freqs []uint32) uint32 {
	var s uint32
	for _, f := range freqs {
		s += f
	}
	return s
}

// TestRecordRoundTrip checks that decode(encode(x))
// == x exactly, and Σfreq == stored doclen.
func TestRecordRoundTrip(t *testing.T) {
	rec := docvector.Record{
		DocID:   7,
		DocLen:  11,
		TermIDs: []uint32{2, 5, 9, 100, 101, 5000},
		Freqs:   []uint32{1, 2, 3, 1, 2, 2},
	}
	require.Equal(t, rec.DocLen, sumFreqs(rec.Freqs))

	var buf bytes.Buffer
	_, err := docvector.WriteRecord(&buf, rec)
	require.NoError(t, err)

	got, err := docvector.ReadRecord(&buf)
	require.NoError(t, err)

	assert.Equal(t, rec.DocID, got.DocID)
	assert.Equal(t, rec.DocLen, got.DocLen)
	assert.Equal(t, rec.TermIDs, got.TermIDs)
	assert.Equal(t, rec.Freqs, got.Freqs)
	assert.Equal(t, got.DocLen, sumFreqs(got.Freqs))
}

func TestRecordRoundTripEmpty(t *testing.T) {
	rec := docvector.Record{DocID: 3, DocLen: 0}
	var buf bytes.Buffer
	_, err := docvector.WriteRecord(&buf, rec)
	require.NoError(t, err)

	got, err := docvector.ReadRecord(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.TermIDs)
	assert.Empty(t, got.Freqs)
}

func TestStoreRoundTrip(t *testing.T) {
	records := []docvector.Record{
		{DocID: 0, DocLen: 3, TermIDs: []uint32{1, 2, 3}, Freqs: []uint32{1, 1, 1}},
		{DocID: 1, DocLen: 5, TermIDs: []uint32{1, 4}, Freqs: []uint32{2, 3}},
	}
	var buf bytes.Buffer
	require.NoError(t, docvector.WriteStore(&buf, 5, records))

	s, err := docvector.ReadStore(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 5, s.UniqueTerms)
	require.Len(t, s.Records, 2)

	rec, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 4}, rec.TermIDs)

	_, ok = s.Get(99)
	assert.False(t, ok)
}

func TestCursorIteratesAndSentinels(t *testing.T) {
	rec := docvector.Record{DocID: 0, DocLen: 6, TermIDs: []uint32{2, 4, 9}, Freqs: []uint32{1, 2, 3}}
	c := docvector.NewCursor(&rec)

	assert.Equal(t, uint32(2), c.TermID())
	assert.Equal(t, uint32(1), c.Freq())
	c.Next()
	assert.Equal(t, uint32(4), c.TermID())
	c.Next()
	assert.Equal(t, uint32(9), c.TermID())
	c.Next()
	assert.Equal(t, uint32(docvector.EOFTermID), c.TermID())
	assert.Zero(t, c.Freq())

	c.Begin()
	assert.Equal(t, uint32(2), c.TermID())
}
