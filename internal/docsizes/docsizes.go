// Package docsizes reads/writes the document-sizes binary file:
// a leading u32 document count followed by that many u32 lengths, index =
// internal docid.
package docsizes

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Read loads the full lengths array from r.
func Read(r io.Reader) ([]uint32, error) {
	br := bufio.NewReader(r)
	var n uint32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("docsizes: read count: %w", err)
	}
	lens := make([]uint32, n)
	if err := binary.Read(br, binary.LittleEndian, &lens); err != nil {
		return nil, fmt.Errorf("docsizes: read lengths: %w", err)
	}
	return lens, nil
}

// Write serializes lens in the documented format.
func Write(w io.Writer, lens []uint32) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(lens))); err != nil {
		return written, err
	}
	written += 4
	if err := binary.Write(bw, binary.LittleEndian, lens); err != nil {
		return written, err
	}
	written += int64(len(lens)) * 4
	return written, bw.Flush()
}
