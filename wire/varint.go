// Package wire implements the compact, versioned on-wire codec (spec
// component C5): varint, bit-packed state headers, TLV fields, the
// versioned envelope, and delta encoding.
//
// Varint encoding reuses encoding/binary's Uvarint/PutUvarint: they are
// byte-for-byte the same little-endian, 7-bit-group, continuation-MSB
// LEB128 format the spec specifies, so reimplementing it by hand would
// only reproduce the standard library. See DESIGN.md.
package wire

import (
	"encoding/binary"

	"github.com/meshdice/consensus/types"
)

// MaxVarintLen is the longest a 64-bit varint can be.
const MaxVarintLen = binary.MaxVarintLen64

// PutUvarint appends v's varint encoding to buf.
func PutUvarint(buf []byte, v uint64) []byte {
	var tmp [MaxVarintLen]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// EncodedSize returns the number of bytes PutUvarint would append for v.
func EncodedSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ReadUvarint decodes a varint from the front of buf, returning the
// value, the number of bytes consumed, and an error if the buffer ran
// out or the encoding overflows 64 bits (more than 10 bytes).
func ReadUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, types.NewError(types.KindInvalidData, "truncated varint", nil)
	}
	if n < 0 {
		return 0, 0, types.NewError(types.KindInvalidData, "varint overflows 64 bits", nil)
	}
	if n > MaxVarintLen {
		return 0, 0, types.NewError(types.KindInvalidData, "varint exceeds max 10 bytes", nil)
	}
	return v, n, nil
}

// ZigZagEncode maps a signed delta to an unsigned value suitable for
// varint encoding (used by BalanceUpdate deltas).
func ZigZagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigZagDecode is the inverse of ZigZagEncode.
func ZigZagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
