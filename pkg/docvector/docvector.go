// Package docvector implements the document-vector (forward index) store:
// per-document sorted distinct TermIds with parallel frequencies,
// delta+integer-coded on disk, exposing a single-pass restartable cursor for
// the RM expander's DaaT merge.
package docvector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/fenwick-ir/topk/internal/errs"
)

// EOFTermID is the sentinel value Cursor.TermID returns once exhausted.
const EOFTermID = math.MaxUint32

// Record is one document's decoded vector: sorted distinct TermIds with a
// parallel Freqs slice.
type Record struct {
	DocID   uint32
	DocLen  uint32
	TermIDs []uint32
	Freqs   []uint32
}

// Cursor iterates one Record's (TermId, freq) pairs, forward-only,
// single-pass, restartable via Begin.
type Cursor struct {
	rec *Record
	idx int
}

// NewCursor returns a cursor positioned at the first posting of rec.
func NewCursor(rec *Record) *Cursor { return &Cursor{rec: rec} }

// Begin restarts the cursor at the first posting.
func (c *Cursor) Begin() { c.idx = 0 }

// TermID returns the current TermId, or EOFTermID once exhausted.
func (c *Cursor) TermID() uint32 {
	if c.idx >= len(c.rec.TermIDs) {
		return EOFTermID
	}
	return c.rec.TermIDs[c.idx]
}

// Freq returns the current posting's frequency, or 0 once exhausted.
func (c *Cursor) Freq() uint32 {
	if c.idx >= len(c.rec.TermIDs) {
		return 0
	}
	return c.rec.Freqs[c.idx]
}

// DocLen returns ℓ(d) for the underlying document.
func (c *Cursor) DocLen() uint32 { return c.rec.DocLen }

// DocID returns the underlying document's id.
func (c *Cursor) DocID() uint32 { return c.rec.DocID }

// Next advances to the following posting.
func (c *Cursor) Next() {
	if c.idx < len(c.rec.TermIDs) {
		c.idx++
	}
}

// WriteRecord serializes rec in the documented on-disk layout:
// docid:u32 | doclen:u32 | term_bytes:u64 | freq_bytes:u64 | size:u32 |
// tsize:u32 | term_payload | fsize:u32 | freq_payload.
func WriteRecord(w io.Writer, rec Record) (int64, error) {
	deltas := encodeDeltas(rec.TermIDs)
	termPayload := encodeU32Payload(deltas)
	freqPayload := encodeU32Payload(rec.Freqs)

	var written int64
	fields := []any{
		rec.DocID,
		rec.DocLen,
		uint64(len(termPayload)),
		uint64(len(freqPayload)),
		uint32(len(rec.TermIDs)),
		uint32(len(rec.TermIDs)),
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return written, err
		}
		written += int64(binary.Size(f))
	}
	n, err := w.Write(termPayload)
	written += int64(n)
	if err != nil {
		return written, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Freqs))); err != nil {
		return written, err
	}
	written += 4
	n, err = w.Write(freqPayload)
	written += int64(n)
	return written, err
}

// ReadRecord deserializes one record previously written by WriteRecord.
func ReadRecord(r io.Reader) (Record, error) {
	var rec Record
	var termBytes, freqBytes uint64
	var size, tsize, fsize uint32

	if err := binary.Read(r, binary.LittleEndian, &rec.DocID); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.DocLen); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &termBytes); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &freqBytes); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &tsize); err != nil {
		return rec, err
	}
	if uint64(tsize)*4 != termBytes {
		return rec, errs.NewIOError("docvector.ReadRecord", fmt.Sprintf("doc %d", rec.DocID), fmt.Errorf("term_bytes/tsize mismatch"))
	}
	termBuf := make([]byte, termBytes)
	if _, err := io.ReadFull(r, termBuf); err != nil {
		return rec, errs.NewIOError("docvector.ReadRecord", fmt.Sprintf("doc %d", rec.DocID), err)
	}
	if err := binary.Read(r, binary.LittleEndian, &fsize); err != nil {
		return rec, err
	}
	if uint64(fsize)*4 != freqBytes {
		return rec, errs.NewIOError("docvector.ReadRecord", fmt.Sprintf("doc %d", rec.DocID), fmt.Errorf("freq_bytes/fsize mismatch"))
	}
	freqBuf := make([]byte, freqBytes)
	if _, err := io.ReadFull(r, freqBuf); err != nil {
		return rec, errs.NewIOError("docvector.ReadRecord", fmt.Sprintf("doc %d", rec.DocID), err)
	}
	if size != tsize || tsize != fsize {
		return rec, errs.NewIOError("docvector.ReadRecord", fmt.Sprintf("doc %d", rec.DocID), fmt.Errorf("size/tsize/fsize mismatch"))
	}

	deltas := decodeU32Payload(termBuf, int(tsize))
	rec.TermIDs = decodeDeltas(deltas)
	rec.Freqs = decodeU32Payload(freqBuf, int(fsize))
	return rec, nil
}

// Store is a fully-decoded forward index: one Record per docid, in dense
// [0, N) order.
type Store struct {
	UniqueTerms uint32
	Records     []Record
}

// WriteStore serializes the store file header followed by records in docid order.
func WriteStore(w io.Writer, uniqueTerms uint32, records []Record) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uniqueTerms); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(records))); err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := WriteRecord(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadStore deserializes a store file written by WriteStore.
func ReadStore(r io.Reader) (*Store, error) {
	br := bufio.NewReader(r)
	s := &Store{}
	var numDocs uint32
	if err := binary.Read(br, binary.LittleEndian, &s.UniqueTerms); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &numDocs); err != nil {
		return nil, err
	}
	s.Records = make([]Record, numDocs)
	for i := range s.Records {
		rec, err := ReadRecord(br)
		if err != nil {
			return nil, err
		}
		s.Records[i] = rec
	}
	return s, nil
}

// Get returns the record for docid d, or false if out of range.
func (s *Store) Get(d uint32) (Record, bool) {
	if int(d) >= len(s.Records) {
		return Record{}, false
	}
	return s.Records[d], true
}
