package docsizes_test

import (
	"bytes"
	"testing"

	"github.com/fenwick-ir/topk/internal/docsizes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	lens := []uint32{10, 20, 5, 0, 999}
	var buf bytes.Buffer
	_, err := docsizes.Write(&buf, lens)
	require.NoError(t, err)

	got, err := docsizes.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, lens, got)
}

func TestReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := docsizes.Write(&buf, nil)
	require.NoError(t, err)

	got, err := docsizes.Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadTruncatedFileErrors(t *testing.T) {
	_, err := docsizes.Read(bytes.NewReader([]byte{1, 0}))
	assert.Error(t, err)
}
