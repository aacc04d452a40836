package docvector

import "encoding/binary"

// encodeDeltas applies the delta step of the fixed integer codec: each stored value is the gap from the previous sorted TermId.
func encodeDeltas(sortedTermIDs []uint32) []uint32 {
	out := make([]uint32, len(sortedTermIDs))
	var prev uint32
	for i, v := range sortedTermIDs {
		out[i] = v - prev
		prev = v
	}
	return out
}

func decodeDeltas(deltas []uint32) []uint32 {
	out := make([]uint32, len(deltas))
	var prev uint32
	for i, d := range deltas {
		prev += d
		out[i] = prev
	}
	return out
}

// encodeU32Payload serializes vals as little-endian u32 words, matching
// the term_payload/freq_payload on-disk format.
func encodeU32Payload(vals []uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func decodeU32Payload(buf []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}
