package wire

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/meshdice/consensus/types"
)

// TLVType tags a TLV field. Values are arbitrary and defined by
// whichever higher-level message uses TLV (proposals, votes,
// commits/reveals).
type TLVType uint8

const (
	TLVPeerID TLVType = iota
	TLVSignature
	TLVHash
	TLVTimestamp
	TLVRoundID
	TLVGameID
	TLVPayload

	// Message-specific fields (proposals, votes, disputes): added
	// alongside the generic set above rather than overloading TLVHash,
	// since a Proposal carries three distinct 32-byte hashes at once
	// and TLVHash may only appear once per message.
	TLVMsgID
	TLVPrevStateHash
	TLVProposedStateHash
	TLVSequenceNumber
	TLVDecision
	TLVClaim
	TLVEvidence
)

// FixedSize returns the required byte length for singleton fixed-size
// field types (peer id, signature, hash), or 0 if the type has no fixed
// size.
func (t TLVType) FixedSize() int {
	switch t {
	case TLVPeerID, TLVHash, TLVMsgID, TLVPrevStateHash, TLVProposedStateHash:
		return 32
	case TLVSignature:
		return 64
	case TLVDecision, TLVClaim:
		return 1
	default:
		return 0
	}
}

// TLV is one [1B type][2B len BE][value] field.
type TLV struct {
	Type  TLVType
	Value []byte
}

// EncodeTLVs serializes a slice of fields back-to-back.
func EncodeTLVs(fields []TLV) []byte {
	var buf []byte
	for _, f := range fields {
		buf = append(buf, byte(f.Type))
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.Value)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, f.Value...)
	}
	return buf
}

// ParseLimits bounds a TLV parse against resource exhaustion.
type ParseLimits struct {
	MaxTotalBytes int
	MaxFields     int
}

// DefaultParseLimits matches max_active_rounds/max_players_per_game-
// scale bounds: generous enough for any legitimate message, tight
// enough to reject a flood.
var DefaultParseLimits = ParseLimits{MaxTotalBytes: 64 * 1024, MaxFields: 256}

// singletonTypes lists TLVTypes that may appear at most once per
// message.
var singletonTypes = map[TLVType]bool{
	TLVPeerID:            true,
	TLVSignature:         true,
	TLVHash:              true,
	TLVTimestamp:         true,
	TLVRoundID:           true,
	TLVGameID:            true,
	TLVMsgID:             true,
	TLVPrevStateHash:     true,
	TLVProposedStateHash: true,
	TLVSequenceNumber:    true,
	TLVDecision:          true,
	TLVClaim:             true,
}

// ParseTLVs decodes buf into a slice of fields, refusing a total length
// over limits.MaxTotalBytes, a field count over limits.MaxFields, or a
// duplicated singleton field. Fixed-size fields (peer id, signature,
// hash) are validated for exact length so a malformed field is rejected
// up front rather than causing a variable-time comparison downstream.
func ParseTLVs(buf []byte, limits ParseLimits) ([]TLV, error) {
	if len(buf) > limits.MaxTotalBytes {
		return nil, types.NewError(types.KindResourceExhausted, "TLV payload exceeds max total bytes", nil)
	}
	var fields []TLV
	seen := make(map[TLVType]bool)
	for len(buf) > 0 {
		if len(fields) >= limits.MaxFields {
			return nil, types.NewError(types.KindResourceExhausted, "TLV field count exceeds max", nil)
		}
		if len(buf) < 3 {
			return nil, types.NewError(types.KindInvalidData, "truncated TLV header", nil)
		}
		typ := TLVType(buf[0])
		length := binary.BigEndian.Uint16(buf[1:3])
		buf = buf[3:]
		if int(length) > len(buf) {
			return nil, types.NewError(types.KindInvalidData, "truncated TLV value", nil)
		}
		value := buf[:length]
		buf = buf[length:]

		if fixed := typ.FixedSize(); fixed != 0 && len(value) != fixed {
			return nil, types.NewError(types.KindInvalidData, "TLV fixed-size field has wrong length", nil)
		}
		if singletonTypes[typ] && seen[typ] {
			return nil, types.NewError(types.KindInvalidData, "duplicated singleton TLV field", nil)
		}
		seen[typ] = true

		fields = append(fields, TLV{Type: typ, Value: append([]byte(nil), value...)})
	}
	return fields, nil
}

// Find returns the first field of the given type, or nil if absent.
func Find(fields []TLV, t TLVType) []byte {
	for _, f := range fields {
		if f.Type == t {
			return f.Value
		}
	}
	return nil
}

// ConstantTimeEqual compares two fixed-size fields (e.g. a commitment
// against a recomputed hash) without leaking timing information, per
// the "blunt timing oracles" requirement.
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
