package query

import (
	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
	"github.com/fenwick-ir/topk/pkg/topk"
	"github.com/fenwick-ir/topk/pkg/wand"
)

// BlockMaxWAND runs the same pivot search as WAND,
// refined by per-block bounds before committing to score or skip.
func BlockMaxWAND(idx posting.Index, meta *wand.Meta, rk ranker.Ranker, terms []uint32, k int) (*topk.TopK, Counters) {
	tk := topk.New(k)
	var counters Counters
	if len(terms) == 0 {
		return tk, counters
	}
	cursors := buildCursors(idx, meta, rk, countFreqs(terms), true)
	if len(cursors) == 0 {
		return tk, counters
	}
	L := float64(len(terms))
	stats := statsFromMeta(meta)
	n := uint32(meta.NumDocs())

	sortCursorsByDocID(cursors)

	for {
		pivot, _, _ := findPivot(cursors, tk, L, n)
		if pivot == -1 {
			break
		}
		pivotDoc := cursors[pivot].docID()
		for pivot+1 < len(cursors) && cursors[pivot+1].docID() == pivotDoc {
			pivot++
		}

		for i := 0; i <= pivot; i++ {
			cursors[i].block.NextGEQ(pivotDoc)
		}
		var blockUpperBound, blockMaxStaticDoc float64
		for i := 0; i <= pivot; i++ {
			blockUpperBound += float64(cursors[i].block.Score()) * cursors[i].qWeight
			if cursors[i].maxDocWeight > blockMaxStaticDoc {
				blockMaxStaticDoc = cursors[i].maxDocWeight
			}
		}

		counters.UniquePivotsProcessed++

		if tk.WouldEnter(blockUpperBound + L*blockMaxStaticDoc) {
			if cursors[0].docID() == pivotDoc {
				scoreBMWPivot(cursors[:pivot+1], pivotDoc, rk, meta, L, stats, blockUpperBound, tk, &counters)
				sortCursorsByDocID(cursors)
			} else {
				advanceFarthestBelowPivot(cursors, pivot, pivotDoc)
				sortCursorsByDocID(cursors)
			}
		} else {
			blockSkip(cursors, pivot, n)
			sortCursorsByDocID(cursors)
		}
	}
	return tk, counters
}

// scoreBMWPivot scores the tied cursors at pivotDoc with running bound
// tightening: the insert always happens with
// whatever score has accumulated, since an early exit only occurs once the
// tightened bound proves the eventual real score cannot beat τ — the
// subsequent Insert call's own threshold test makes this safe regardless.
func scoreBMWPivot(tied []*cursor, pivotDoc uint32, rk ranker.Ranker, meta *wand.Meta, L float64, stats ranker.Stats, blockUpperBound float64, tk *topk.TopK, counters *Counters) {
	nl := meta.NormLen(pivotDoc)
	score := L * rk.CalculateDocumentWeight(nl)
	runningBound := blockUpperBound + score

	for _, c := range tied {
		blockScore := float64(c.block.Score())
		part := c.qWeight * rk.DocTermWeight(c.postings.Freq(), nl, c.ctf, stats)
		score += part
		runningBound -= blockScore*c.qWeight - part
		counters.PostingsScored++
		if !tk.WouldEnter(runningBound) {
			break // remaining cursors are still advanced below regardless
		}
	}
	for _, c := range tied {
		c.postings.Next()
	}
	tk.Insert(score, pivotDoc)
}

// blockSkip advances a cursor past blocks whose bound cannot beat the threshold.
func blockSkip(cursors []*cursor, pivot int, n uint32) {
	target := 0
	for i := 1; i <= pivot; i++ {
		if cursors[i].qWeight > cursors[target].qWeight {
			target = i
		}
	}

	nextJump := cursors[0].block.DocID()
	for i := 1; i <= pivot; i++ {
		if cursors[i].block.DocID() < nextJump {
			nextJump = cursors[i].block.DocID()
		}
	}

	upper := n
	if n > 0 {
		upper = n - 1
	}
	if pivot+1 < len(cursors) {
		pd := cursors[pivot+1].docID()
		if pd <= n {
			upper = pd
		}
		if pd < nextJump {
			nextJump = pd
		}
	}

	next := nextJump + 1
	if next <= cursors[pivot].docID() {
		next = cursors[pivot].docID() + 1
	}
	if next > upper {
		next = upper
	}

	cursors[target].postings.NextGEQ(next)
	cursors[target].block.NextGEQ(next)
}
