// Package ranker provides the scoring-function capability set:
// BM25 and LM-Dirichlet, selected at startup by a tagged ID rather than
// dynamic dispatch resolved per posting.
package ranker

import (
	"fmt"
	"math"
	"strings"

	"github.com/chewxy/math32"
)

// ID tags a concrete ranker variant. Stored verbatim in WAND metadata files
// (m_ranker_id) so a query-time reader can resolve the ranker the metadata
// was built for; an unrecognized id is rejected with wand.ErrUnknownRanker.
// The compressed WAND + LM-Dirichlet combination is rejected earlier, at build
// time, with wand.ErrCompressedUnsupportsDocWeight.
type ID uint32

const (
	BM25ID ID = iota
	LMDirichletID
)

func (id ID) String() string {
	switch id {
	case BM25ID:
		return "bm25"
	case LMDirichletID:
		return "lmds"
	default:
		return "unknown"
	}
}

// Stats carries the collection-level quantities the capability set needs:
// document count, average document length, and total token count.
type Stats struct {
	NumDocs           uint64
	AvgDocLen         float64
	TermsInCollection float64 // Σℓ over the whole collection
}

// Ranker is the capability set every query traversal engine is polymorphic
// over: a single per-query resolution from ID to a concrete Ranker, inlined
// for the remainder of that query.
type Ranker interface {
	Name() string
	ID() ID

	// NormLen computes the ranker-specific length normalization for a
	// document of the given raw length.
	NormLen(docLen uint32, stats Stats) float64

	// DocTermWeight is the per-posting contribution for a term occurring
	// freq times in a document of the given normalized length, where ctf is
	// that term's collection frequency.
	DocTermWeight(freq uint32, normLen float64, ctf uint64, stats Stats) float64

	// QueryTermWeight is the per-query-term weight, combining the query
	// term's multiplicity (queryFreq) with its document frequency (df) and
	// the collection size.
	QueryTermWeight(queryFreq uint32, df uint64, stats Stats) float64

	// CalculateDocumentWeight is the static, term-independent contribution
	// added once per query-term occurrence; zero for BM25.
	CalculateDocumentWeight(normLen float64) float64
}

// ByID resolves a Ranker from its tagged ID, or reports false if unknown.
func ByID(id ID) (Ranker, bool) {
	switch id {
	case BM25ID:
		return BM25{}, true
	case LMDirichletID:
		return LMDirichlet{}, true
	default:
		return nil, false
	}
}

// ByName resolves a Ranker from the `ranker:BM25|LMDS` CLI argument, case-insensitively.
func ByName(name string) (Ranker, error) {
	switch strings.ToUpper(name) {
	case "BM25":
		return BM25{}, nil
	case "LMDS":
		return LMDirichlet{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRankerName, name)
	}
}

// ErrUnknownRankerName is returned by ByName for an unrecognized ranker
// argument.
var ErrUnknownRankerName = fmt.Errorf("ranker: unknown name")

// BM25 implements the Robertson/Sparck-Jones BM25 scoring function with the
// fixed parameters k1=0.9, b=0.4, idf floor ε=1e-6.
type BM25 struct{}

const (
	bm25K1  = 0.9
	bm25B   = 0.4
	bm25Eps = 1e-6
)

func (BM25) Name() string { return "BM25" }
func (BM25) ID() ID       { return BM25ID }

// NormLen is computed in f32 since that is the width the on-disk WAND
// metadata stores normalized lengths in; math32.Max guards
// the degenerate avgDocLen-rounds-to-zero case the same way the f32 reader
// reconstructing this value at query time would need to.
func (BM25) NormLen(docLen uint32, stats Stats) float64 {
	if stats.AvgDocLen <= 0 {
		return 0
	}
	avg := math32.Max(float32(stats.AvgDocLen), math32.SmallestNonzeroFloat32)
	nl := float32(docLen) / avg
	return float64(nl)
}

func (BM25) DocTermWeight(freq uint32, normLen float64, _ uint64, _ Stats) float64 {
	f := float64(freq)
	return f / (f + bm25K1*(1-bm25B+bm25B*normLen))
}

func (BM25) QueryTermWeight(queryFreq uint32, df uint64, stats Stats) float64 {
	n := float64(stats.NumDocs)
	d := float64(df)
	idf := math.Log((n-d+0.5)/(d+0.5))
	if idf < bm25Eps {
		idf = bm25Eps
	}
	return float64(queryFreq) * idf * (1 + bm25K1)
}

func (BM25) CalculateDocumentWeight(float64) float64 { return 0 }

// LMDirichlet implements Dirichlet-smoothed language-model scoring with
// μ=2500.
type LMDirichlet struct{}

const lmMu = 2500.0

func (LMDirichlet) Name() string { return "LMDirichlet" }
func (LMDirichlet) ID() ID       { return LMDirichletID }

// NormLen retains the raw document length for LM-Dirichlet.
func (LMDirichlet) NormLen(docLen uint32, _ Stats) float64 {
	return float64(docLen)
}

func (LMDirichlet) DocTermWeight(freq uint32, _ float64, ctf uint64, stats Stats) float64 {
	if ctf == 0 {
		return 0
	}
	f := float64(freq)
	ft := float64(ctf)
	return math.Log((f/lmMu)*(stats.TermsInCollection/ft) + 1)
}

// QueryTermWeight is constant for LM-Dirichlet: a repeated query term
// contributes once to the term sum; multiplicity enters the score only
// through the query-length multiplier on CalculateDocumentWeight.
func (LMDirichlet) QueryTermWeight(uint32, uint64, Stats) float64 {
	return 1
}

func (LMDirichlet) CalculateDocumentWeight(docLen float64) float64 {
	return math.Log(lmMu / (lmMu + docLen))
}
