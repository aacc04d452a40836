// Package topk implements the bounded top-k priority structure: a size-≤-k min-heap over (score, DocId) with a side-effect-free
// admission test for hot-loop pruning checks.
package topk

import (
	"math"
	"sort"
)

// Result is one finalized (score, DocId) entry.
type Result struct {
	Score float64
	DocID uint32
}

// docLocal additionally carries insertion order so ties break
// deterministically.
type docLocal struct {
	score float64
	docID uint32
	seq   uint64
}

// TopK is a bounded min-heap of at most k (score, DocId) pairs.
type TopK struct {
	k       int
	heap    []docLocal
	nextSeq uint64
}

// New creates a TopK with capacity k.
func New(k int) *TopK {
	return &TopK{k: k, heap: make([]docLocal, 0, k)}
}

// Threshold returns τ: the smallest score currently held, or −∞ if the
// structure holds fewer than k entries.
func (t *TopK) Threshold() float64 {
	if len(t.heap) < t.k {
		return negInf
	}
	return t.heap[0].score
}

// WouldEnter reports whether a candidate with score s would be admitted,
// without mutating the structure.
func (t *TopK) WouldEnter(s float64) bool {
	return len(t.heap) < t.k || s > t.heap[0].score
}

// Insert attempts to admit (s, d); returns true if admitted.
func (t *TopK) Insert(s float64, d uint32) bool {
	if len(t.heap) < t.k {
		t.push(docLocal{score: s, docID: d, seq: t.nextSeq})
		t.nextSeq++
		return true
	}
	if s > t.heap[0].score {
		t.popMin()
		t.push(docLocal{score: s, docID: d, seq: t.nextSeq})
		t.nextSeq++
		return true
	}
	return false
}

// Clear empties the structure for reuse on the next query.
func (t *TopK) Clear() {
	t.heap = t.heap[:0]
	t.nextSeq = 0
}

// Finalize sorts the held entries descending by score (ties by insertion
// order, first wins) and drops entries with score ≤ 0, returning the finalized result set.
func (t *TopK) Finalize() []Result {
	sorted := append([]docLocal(nil), t.heap...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		return sorted[i].seq < sorted[j].seq
	})
	out := make([]Result, 0, len(sorted))
	for _, e := range sorted {
		if e.score <= 0 {
			continue
		}
		out = append(out, Result{Score: e.score, DocID: e.docID})
	}
	return out
}

var negInf = math.Inf(-1)

func (t *TopK) push(e docLocal) {
	t.heap = append(t.heap, e)
	i := len(t.heap) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !less(t.heap[i], t.heap[parent]) {
			break
		}
		t.heap[i], t.heap[parent] = t.heap[parent], t.heap[i]
		i = parent
	}
}

func (t *TopK) popMin() {
	n := len(t.heap)
	t.heap[0] = t.heap[n-1]
	t.heap = t.heap[:n-1]
	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < len(t.heap) && less(t.heap[left], t.heap[smallest]) {
			smallest = left
		}
		if right < len(t.heap) && less(t.heap[right], t.heap[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		t.heap[i], t.heap[smallest] = t.heap[smallest], t.heap[i]
		i = smallest
	}
}

// less orders by score ascending (min-heap property); ties broken by newer
// insertion first so that, under repeated eviction, the newest of equal
// scores is evicted first — consistent with "first wins" on admission.
func less(a, b docLocal) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.seq > b.seq
}
