package wand

import (
	"errors"
	"math"
	"math/bits"
	"sort"

	"github.com/fenwick-ir/topk/pkg/posting"
	"github.com/fenwick-ir/topk/pkg/ranker"
)

// ErrUnknownRanker is returned when Build is asked to build metadata for a
// ranker it cannot resolve.
var ErrUnknownRanker = errors.New("wand: unknown ranker")

// ErrCompressedUnsupportsDocWeight is returned when Build is asked to combine
// the compressed block variant with a ranker whose calculate_document_weight
// is non-zero: compression drops per-block max_document_weight, which
// LM-Dirichlet's upper-bound reasoning requires.
var ErrCompressedUnsupportsDocWeight = errors.New("wand: compressed WAND metadata cannot support a ranker requiring per-block document weight")

// BuildOptions configures WandMeta construction.
type BuildOptions struct {
	Ranker  ranker.Ranker
	DocLens []uint32 // ℓ(d) for d in [0, N)

	// Variable selects DP-optimal variable-size block partitioning; if
	// false, fixed-size blocks of length BlockSize are used.
	Variable  bool
	BlockSize int

	Epsilon1  float64
	Epsilon2  float64
	FixedCost float64

	Compressed    bool
	ReferenceSize int // R, power of 2; compressed only
}

const defaultBlockSize = 64

type postingEntry struct {
	docID uint32
	freq  uint32
}

// Build constructs WAND metadata for the given terms over idx, using opts to
// pick ranker, block partitioning, and compression mode.
func Build(idx posting.Index, termIDs []uint32, opts BuildOptions) (*Meta, error) {
	if opts.Ranker == nil {
		return nil, ErrUnknownRanker
	}
	if opts.Compressed {
		// Probe with documents of length 1 and 1000: any ranker whose
		// calculate_document_weight is non-zero for some length needs the
		// per-block doc-weight bound the compressed variant discards.
		if opts.Ranker.CalculateDocumentWeight(1) != 0 || opts.Ranker.CalculateDocumentWeight(1000) != 0 {
			return nil, ErrCompressedUnsupportsDocWeight
		}
	}

	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	referenceR := opts.ReferenceSize
	if opts.Compressed && referenceR <= 0 {
		referenceR = 256
	}

	numDocs := uint64(len(opts.DocLens))
	stats := ranker.Stats{NumDocs: numDocs}
	var totalLen float64
	for _, l := range opts.DocLens {
		totalLen += float64(l)
	}
	stats.TermsInCollection = totalLen
	if numDocs > 0 {
		stats.AvgDocLen = totalLen / float64(numDocs)
	}

	normLens := make([]float32, numDocs)
	for d, l := range opts.DocLens {
		normLens[d] = float32(opts.Ranker.NormLen(l, stats))
	}

	sortedTerms := append([]uint32(nil), termIDs...)
	sort.Slice(sortedTerms, func(i, j int) bool { return sortedTerms[i] < sortedTerms[j] })

	m := &Meta{
		termIDs:           sortedTerms,
		termIndex:         make(map[uint32]int, len(sortedTerms)),
		normLens:          normLens,
		maxTermWeight:     make([]float32, len(sortedTerms)),
		maxDocumentWeight: make([]float32, len(sortedTerms)),
		ctf:               make([]uint32, len(sortedTerms)),
		blocksStart:       make([]uint64, len(sortedTerms)+1),
		avgDocLen:         float32(stats.AvgDocLen),
		numDocs:           float32(numDocs),
		termsInCollection: stats.TermsInCollection,
		rankerID:          uint32(opts.Ranker.ID()),
		compressed:        opts.Compressed,
		referenceR:        referenceR,
	}

	var allBlockLastDocID []uint32
	var allBlockMaxTermWeight []float32
	var allBlockMaxDocWeight []float32
	var globalMaxBlockWeight float32

	type pendingBlocks struct {
		lastDocID []uint32
		maxWeight []float32
		maxDoc    []float32
	}
	perTermBlocks := make([]pendingBlocks, len(sortedTerms))

	for ti, term := range sortedTerms {
		m.termIndex[term] = ti

		entries, err := readPostings(idx, term)
		if err != nil {
			return nil, err
		}

		var ctf uint64
		for _, e := range entries {
			ctf += uint64(e.freq)
		}
		m.ctf[ti] = uint32(ctf)

		docTermWeight := make([]float64, len(entries))
		docWeight := make([]float64, len(entries))
		var maxTW, maxDW float64
		maxDW = math.Inf(-1)
		for i, e := range entries {
			nl := float64(normLens[e.docID])
			docTermWeight[i] = opts.Ranker.DocTermWeight(e.freq, nl, ctf, stats)
			docWeight[i] = opts.Ranker.CalculateDocumentWeight(nl)
			if docTermWeight[i] > maxTW {
				maxTW = docTermWeight[i]
			}
			if docWeight[i] > maxDW {
				maxDW = docWeight[i]
			}
		}
		if len(entries) == 0 {
			maxDW = 0
		}
		m.maxTermWeight[ti] = float32(maxTW)
		m.maxDocumentWeight[ti] = float32(maxDW)

		var bounds []int // block boundaries, exclusive end indices
		if opts.Variable && len(entries) > 0 {
			bounds = partitionVariable(docTermWeight, opts.Epsilon1, opts.Epsilon2, opts.FixedCost)
		} else {
			bounds = partitionFixed(len(entries), blockSize)
		}

		var pb pendingBlocks
		start := 0
		for _, end := range bounds {
			if end == start {
				continue
			}
			var bmax, dmax float64
			dmax = math.Inf(-1)
			for i := start; i < end; i++ {
				if docTermWeight[i] > bmax {
					bmax = docTermWeight[i]
				}
				if docWeight[i] > dmax {
					dmax = docWeight[i]
				}
			}
			if end == start {
				dmax = 0
			}
			pb.lastDocID = append(pb.lastDocID, entries[end-1].docID)
			pb.maxWeight = append(pb.maxWeight, float32(bmax))
			pb.maxDoc = append(pb.maxDoc, float32(dmax))
			if float32(bmax) > globalMaxBlockWeight {
				globalMaxBlockWeight = float32(bmax)
			}
			start = end
		}
		perTermBlocks[ti] = pb
		m.blocksStart[ti+1] = m.blocksStart[ti] + uint64(len(pb.lastDocID))
	}

	for _, pb := range perTermBlocks {
		allBlockLastDocID = append(allBlockLastDocID, pb.lastDocID...)
		allBlockMaxTermWeight = append(allBlockMaxTermWeight, pb.maxWeight...)
		allBlockMaxDocWeight = append(allBlockMaxDocWeight, pb.maxDoc...)
	}

	if opts.Compressed {
		rBits := uint(bits.Len(uint(referenceR - 1)))
		if referenceR <= 1 {
			rBits = 1
		}
		m.referenceR = referenceR
		m.bucketValue = make([]float32, referenceR)
		for i := 0; i < referenceR; i++ {
			m.bucketValue[i] = globalMaxBlockWeight * float32(i) / float32(maxInt(referenceR-1, 1))
		}
		m.packedBlocks = make([]uint64, len(allBlockLastDocID))
		for i, w := range allBlockMaxTermWeight {
			bucket := quantizeCeil(w, globalMaxBlockWeight, referenceR)
			m.packedBlocks[i] = uint64(allBlockLastDocID[i])<<rBits | uint64(bucket)
		}
		m.blockMaxTermWeight = allBlockMaxTermWeight // kept for quick in-memory Score() queries
	} else {
		m.blockDocID = allBlockLastDocID
		m.blockMaxTermWeight = allBlockMaxTermWeight
		m.blockMaxDocumentWeight = allBlockMaxDocWeight
	}

	return m, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// quantizeCeil rounds weight up to the nearest of R buckets spanning
// [0, globalMax], never underestimating (pruning soundness requires the
// dequantized bound to be ≥ the true weight).
func quantizeCeil(weight, globalMax float32, r int) int {
	if globalMax <= 0 || r <= 1 {
		return 0
	}
	frac := float64(weight) / float64(globalMax) * float64(r-1)
	b := int(math.Ceil(frac))
	if b >= r {
		b = r - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

func readPostings(idx posting.Index, term uint32) ([]postingEntry, error) {
	c, ok := idx.List(term)
	if !ok {
		return nil, nil
	}
	n := idx.NumDocs()
	var entries []postingEntry
	for c.DocID() != uint32(n) {
		entries = append(entries, postingEntry{docID: c.DocID(), freq: c.Freq()})
		c.Next()
	}
	return entries, nil
}

func partitionFixed(n, blockSize int) []int {
	if n == 0 {
		return nil
	}
	var bounds []int
	for end := blockSize; end < n; end += blockSize {
		bounds = append(bounds, end)
	}
	bounds = append(bounds, n)
	return bounds
}

// partitionVariable computes a DP-optimal block partition minimizing
// Σ_blocks (fixedCost + ε₁·|block| + ε₂·spread(block)), where spread is the
// range (max − min) of per-posting weight within the block — a wider block
// costs more the more its weights vary, modeling the extra bits a
// compressed/EF-style encoding needs to cover that range.
func partitionVariable(weights []float64, eps1, eps2, fixedCost float64) []int {
	n := len(weights)
	if n == 0 {
		return nil
	}
	const maxBlock = 128

	cost := make([]float64, n+1)
	from := make([]int, n+1)
	for j := 1; j <= n; j++ {
		cost[j] = math.Inf(1)
	}
	for i := 0; i < n; i++ {
		lo, hi := weights[i], weights[i]
		for j := i + 1; j <= n && j-i <= maxBlock; j++ {
			if j > i+1 {
				w := weights[j-1]
				if w < lo {
					lo = w
				}
				if w > hi {
					hi = w
				}
			}
			c := cost[i] + fixedCost + eps1*float64(j-i) + eps2*(hi-lo)
			if c < cost[j] {
				cost[j] = c
				from[j] = i
			}
		}
	}

	var bounds []int
	for j := n; j > 0; j = from[j] {
		bounds = append([]int{j}, bounds...)
	}
	return bounds
}
