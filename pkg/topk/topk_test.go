package topk_test

import (
	"math"
	"testing"

	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdBelowCapacityIsNegInf(t *testing.T) {
	tk := topk.New(3)
	assert.True(t, math.IsInf(tk.Threshold(), -1))
	tk.Insert(1, 0)
	tk.Insert(2, 1)
	assert.True(t, math.IsInf(tk.Threshold(), -1))
}

func TestInsertAndFinalizeOrdering(t *testing.T) {
	tk := topk.New(2)
	assert.True(t, tk.Insert(5, 10))
	assert.True(t, tk.Insert(3, 20))
	assert.False(t, tk.Insert(1, 30)) // below threshold once full
	assert.True(t, tk.Insert(9, 40))  // evicts the 3

	res := tk.Finalize()
	require.Len(t, res, 2)
	assert.Equal(t, uint32(40), res[0].DocID)
	assert.Equal(t, uint32(10), res[1].DocID)
}

func TestFinalizeDropsNonPositiveScores(t *testing.T) {
	tk := topk.New(3)
	tk.Insert(0, 1)
	tk.Insert(-5, 2)
	tk.Insert(2.5, 3)
	res := tk.Finalize()
	require.Len(t, res, 1)
	assert.Equal(t, uint32(3), res[0].DocID)
}

func TestTieBreakByInsertionOrder(t *testing.T) {
	tk := topk.New(2)
	tk.Insert(5, 1) // first
	tk.Insert(5, 2) // second: strict '>' fails to evict the first

	res := tk.Finalize()
	require.Len(t, res, 2)
	assert.Equal(t, uint32(1), res[0].DocID)
	assert.Equal(t, uint32(2), res[1].DocID)
}

func TestWouldEnterIsSideEffectFree(t *testing.T) {
	tk := topk.New(1)
	tk.Insert(5, 1)
	assert.False(t, tk.WouldEnter(5)) // not strictly greater
	assert.True(t, tk.WouldEnter(5.1))
	// calling WouldEnter must not have mutated anything
	assert.InDelta(t, 5, tk.Threshold(), 1e-9)
}

// TestThresholdMonotone checks that once size==k, τ is
// non-decreasing across any sequence of insertions.
func TestThresholdMonotone(t *testing.T) {
	tk := topk.New(3)
	scores := []float64{5, 2, 8, 1, 9, 3, 20, 0.5, 11}
	for _, s := range scores {
		tk.Insert(s, uint32(s*1000))
	}
	require.True(t, math.IsInf(tk.Threshold(), -1) == false)

	tk2 := topk.New(3)
	var prevTau float64 = math.Inf(-1)
	sawFull := false
	for i, s := range scores {
		tk2.Insert(s, uint32(i))
		if i+1 >= 3 {
			tau := tk2.Threshold()
			if sawFull {
				assert.GreaterOrEqual(t, tau, prevTau)
			}
			prevTau = tau
			sawFull = true
		}
	}
}

func TestClearResetsState(t *testing.T) {
	tk := topk.New(2)
	tk.Insert(1, 0)
	tk.Insert(2, 1)
	tk.Clear()
	assert.True(t, math.IsInf(tk.Threshold(), -1))
	assert.Empty(t, tk.Finalize())
}
