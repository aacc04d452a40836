// Package wand implements the WAND metadata structure:
// per-term maximum contribution bounds, per-block bounds within a term's
// posting list, per-document length normalization, and the collection
// statistics the query traversal engines (pkg/query) need to prune safely.
//
// The in-memory Meta layout mirrors the on-disk WAND metadata file format
// field-for-field — flat parallel arrays addressed by a
// per-term block-start index — so ReadFrom/WriteTo are direct encodings of
// the in-memory representation rather than a separate marshalling scheme.
package wand

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/fenwick-ir/topk/internal/errs"
)

// BlockCursor iterates a single term's WAND blocks, coarser-grained than the
// underlying posting cursor: docid() is the block's *last* docid, advancing
// one block at a time.
type BlockCursor interface {
	DocID() uint32
	Score() float32
	DocWeight() float32
	Next()
	NextGEQ(target uint32)
	Size() int
}

// Meta is a built, read-only WAND metadata structure for one posting
// collection under one ranker.
type Meta struct {
	termIndex map[uint32]int
	termIDs   []uint32

	blocksStart            []uint64 // len L+1
	blockMaxTermWeight     []float32
	blockMaxDocumentWeight []float32 // empty for compressed
	blockDocID             []uint32  // empty for compressed (packed instead)

	// compressed-only packed representation: high bits docid, low rBits
	// bucket index into bucketValue.
	packedBlocks []uint64
	bucketValue  []float32
	referenceR   int

	normLens          []float32 // len N
	maxTermWeight     []float32 // len L
	maxDocumentWeight []float32 // len L (zero-valued for compressed)
	ctf               []uint32  // len L

	avgDocLen         float32
	numDocs           float32
	termsInCollection float64
	rankerID          uint32
	compressed        bool
}

// NumDocs returns N as stored in the metadata.
func (m *Meta) NumDocs() uint64 { return uint64(m.numDocs) }

// AverageDoclen returns avg_ℓ.
func (m *Meta) AverageDoclen() float64 { return float64(m.avgDocLen) }

// TermsInCollection returns Σℓ.
func (m *Meta) TermsInCollection() float64 { return m.termsInCollection }

// RankerID returns the tagged ranker id this metadata was built for.
func (m *Meta) RankerID() uint32 { return m.rankerID }

// Compressed reports whether this metadata uses the quantized block variant.
func (m *Meta) Compressed() bool { return m.compressed }

// NormLen returns the ranker-specific normalized length of document d.
func (m *Meta) NormLen(d uint32) float64 {
	if int(d) >= len(m.normLens) {
		return 0
	}
	return float64(m.normLens[d])
}

// MaxTermWeight returns the term-level upper bound on doc_term_weight for
// term t, or 0 if the term is unknown to this metadata.
func (m *Meta) MaxTermWeight(t uint32) float64 {
	i, ok := m.termIndex[t]
	if !ok {
		return 0
	}
	return float64(m.maxTermWeight[i])
}

// MaxDocumentWeight returns the term-level upper bound on
// calculate_document_weight over documents containing t. Always 0 for
// compressed metadata.
func (m *Meta) MaxDocumentWeight(t uint32) float64 {
	if m.compressed {
		return 0
	}
	i, ok := m.termIndex[t]
	if !ok {
		return 0
	}
	return float64(m.maxDocumentWeight[i])
}

// CTF returns the collection frequency of term t.
func (m *Meta) CTF(t uint32) uint64 {
	i, ok := m.termIndex[t]
	if !ok {
		return 0
	}
	return uint64(m.ctf[i])
}

// HasTerm reports whether t has metadata (i.e. appears in the collection).
func (m *Meta) HasTerm(t uint32) bool {
	_, ok := m.termIndex[t]
	return ok
}

// Enum returns a fresh BlockCursor over term t's blocks.
func (m *Meta) Enum(t uint32) (BlockCursor, bool) {
	i, ok := m.termIndex[t]
	if !ok {
		return nil, false
	}
	start := int(m.blocksStart[i])
	end := int(m.blocksStart[i+1])
	if m.compressed {
		return &compressedBlockCursor{m: m, start: start, end: end, idx: start}, true
	}
	return &rawBlockCursor{m: m, start: start, end: end, idx: start}, true
}

type rawBlockCursor struct {
	m          *Meta
	start, end int
	idx        int
}

func (c *rawBlockCursor) clampIdx() int {
	if c.idx >= c.end {
		return c.end - 1
	}
	return c.idx
}

func (c *rawBlockCursor) DocID() uint32      { return c.m.blockDocID[c.clampIdx()] }
func (c *rawBlockCursor) Score() float32     { return c.m.blockMaxTermWeight[c.clampIdx()] }
func (c *rawBlockCursor) DocWeight() float32 { return c.m.blockMaxDocumentWeight[c.clampIdx()] }
func (c *rawBlockCursor) Size() int          { return c.end - c.start }

func (c *rawBlockCursor) Next() {
	if c.idx < c.end-1 {
		c.idx++
	}
}

func (c *rawBlockCursor) NextGEQ(target uint32) {
	for c.idx < c.end-1 && c.m.blockDocID[c.idx] < target {
		c.idx++
	}
}

type compressedBlockCursor struct {
	m          *Meta
	start, end int
	idx        int
}

func (c *compressedBlockCursor) clampIdx() int {
	if c.idx >= c.end {
		return c.end - 1
	}
	return c.idx
}

func (c *compressedBlockCursor) unpack(i int) (docid uint32, bucket uint32) {
	rBits := c.m.rBits()
	packed := c.m.packedBlocks[i]
	mask := uint64(1)<<rBits - 1
	return uint32(packed >> rBits), uint32(packed & mask)
}

func (c *compressedBlockCursor) DocID() uint32 {
	docid, _ := c.unpack(c.clampIdx())
	return docid
}

func (c *compressedBlockCursor) Score() float32 {
	_, bucket := c.unpack(c.clampIdx())
	return c.m.bucketValue[bucket]
}

func (c *compressedBlockCursor) DocWeight() float32 { return 0 }
func (c *compressedBlockCursor) Size() int          { return c.end - c.start }

func (c *compressedBlockCursor) Next() {
	if c.idx < c.end-1 {
		c.idx++
	}
}

func (c *compressedBlockCursor) NextGEQ(target uint32) {
	for c.idx < c.end-1 {
		docid, _ := c.unpack(c.idx)
		if docid >= target {
			return
		}
		c.idx++
	}
}

func (m *Meta) rBits() uint {
	if m.referenceR <= 1 {
		return 1
	}
	return uint(bits.Len(uint(m.referenceR - 1)))
}

// WriteTo serializes Meta in the documented WAND metadata file layout.
// Compressed metadata writes the packed block stream in place of the raw
// block_docid/block_max_document_weight arrays.
func (m *Meta) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	write := func(v any) error {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
		written += int64(binary.Size(v))
		return nil
	}

	if err := write(uint8(boolToByte(m.compressed))); err != nil {
		return written, err
	}
	if err := write(uint32(len(m.termIDs))); err != nil {
		return written, err
	}
	if err := write(m.termIDs); err != nil {
		return written, err
	}
	if err := write(m.blocksStart); err != nil {
		return written, err
	}
	if err := write(m.blockMaxTermWeight); err != nil {
		return written, err
	}
	if m.compressed {
		if err := write(uint32(m.referenceR)); err != nil {
			return written, err
		}
		if err := write(m.bucketValue); err != nil {
			return written, err
		}
		if err := write(m.packedBlocks); err != nil {
			return written, err
		}
	} else {
		if err := write(m.blockMaxDocumentWeight); err != nil {
			return written, err
		}
		if err := write(m.blockDocID); err != nil {
			return written, err
		}
	}
	if err := write(m.normLens); err != nil {
		return written, err
	}
	if err := write(m.maxTermWeight); err != nil {
		return written, err
	}
	if err := write(m.maxDocumentWeight); err != nil {
		return written, err
	}
	if err := write(m.ctf); err != nil {
		return written, err
	}
	if err := write(m.avgDocLen); err != nil {
		return written, err
	}
	if err := write(m.numDocs); err != nil {
		return written, err
	}
	if err := write(m.termsInCollection); err != nil {
		return written, err
	}
	if err := write(m.rankerID); err != nil {
		return written, err
	}
	return written, bw.Flush()
}

func boolToByte(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadFrom deserializes a Meta previously written by WriteTo. Slice lengths
// are not stored directly for every field; they are derived from L (term
// count) and the blocksStart/normLens lengths, matching the on-disk layout's
// implicit sizing.
func ReadFrom(r io.Reader, numDocs uint64) (*Meta, error) {
	br := bufio.NewReader(r)
	m := &Meta{}

	var compressedByte uint8
	if err := binary.Read(br, binary.LittleEndian, &compressedByte); err != nil {
		return nil, err
	}
	m.compressed = compressedByte != 0

	var l uint32
	if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
		return nil, err
	}
	m.termIDs = make([]uint32, l)
	if err := binary.Read(br, binary.LittleEndian, &m.termIDs); err != nil {
		return nil, err
	}
	m.termIndex = make(map[uint32]int, l)
	for i, t := range m.termIDs {
		m.termIndex[t] = i
	}

	m.blocksStart = make([]uint64, l+1)
	if err := binary.Read(br, binary.LittleEndian, &m.blocksStart); err != nil {
		return nil, err
	}
	totalBlocks := m.blocksStart[l]
	m.blockMaxTermWeight = make([]float32, totalBlocks)
	if err := binary.Read(br, binary.LittleEndian, &m.blockMaxTermWeight); err != nil {
		return nil, err
	}

	if m.compressed {
		var r32 uint32
		if err := binary.Read(br, binary.LittleEndian, &r32); err != nil {
			return nil, err
		}
		m.referenceR = int(r32)
		m.bucketValue = make([]float32, m.referenceR)
		if err := binary.Read(br, binary.LittleEndian, &m.bucketValue); err != nil {
			return nil, err
		}
		m.packedBlocks = make([]uint64, totalBlocks)
		if err := binary.Read(br, binary.LittleEndian, &m.packedBlocks); err != nil {
			return nil, err
		}
	} else {
		m.blockMaxDocumentWeight = make([]float32, totalBlocks)
		if err := binary.Read(br, binary.LittleEndian, &m.blockMaxDocumentWeight); err != nil {
			return nil, err
		}
		m.blockDocID = make([]uint32, totalBlocks)
		if err := binary.Read(br, binary.LittleEndian, &m.blockDocID); err != nil {
			return nil, err
		}
	}

	m.normLens = make([]float32, numDocs)
	if err := binary.Read(br, binary.LittleEndian, &m.normLens); err != nil {
		return nil, err
	}
	m.maxTermWeight = make([]float32, l)
	if err := binary.Read(br, binary.LittleEndian, &m.maxTermWeight); err != nil {
		return nil, err
	}
	m.maxDocumentWeight = make([]float32, l)
	if err := binary.Read(br, binary.LittleEndian, &m.maxDocumentWeight); err != nil {
		return nil, err
	}
	m.ctf = make([]uint32, l)
	if err := binary.Read(br, binary.LittleEndian, &m.ctf); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &m.avgDocLen); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &m.numDocs); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &m.termsInCollection); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &m.rankerID); err != nil {
		return nil, err
	}
	if uint64(m.numDocs) != numDocs {
		return nil, errs.NewIOError("wand.ReadFrom", "", fmt.Errorf("numDocs mismatch: header wants %d, file encodes %v", numDocs, m.numDocs))
	}
	return m, nil
}
