package wire

import (
	"encoding/binary"

	"github.com/meshdice/consensus/types"
)

// DeltaType tags a Delta's payload.
type DeltaType uint8

const (
	DeltaNewBet DeltaType = iota
	DeltaDiceRoll
	DeltaPhaseChange
	DeltaBalanceUpdate
	DeltaPointChange
)

// Delta is one incremental state change: {delta_type:4|flags:4,
// sequence:2, payload}.
type Delta struct {
	Type     DeltaType
	Flags    uint8 // 4 bits
	Sequence uint16
	Payload  []byte
}

func (d Delta) Encode() []byte {
	buf := make([]byte, 0, 3+len(d.Payload))
	buf = append(buf, (byte(d.Type)&0x0F)|((d.Flags&0x0F)<<4))
	var seq [2]byte
	binary.BigEndian.PutUint16(seq[:], d.Sequence)
	buf = append(buf, seq[:]...)
	buf = append(buf, d.Payload...)
	return buf
}

func DecodeDelta(buf []byte) (Delta, int, error) {
	if len(buf) < 3 {
		return Delta{}, 0, types.NewError(types.KindInvalidData, "truncated delta header", nil)
	}
	d := Delta{
		Type:     DeltaType(buf[0] & 0x0F),
		Flags:    (buf[0] >> 4) & 0x0F,
		Sequence: binary.BigEndian.Uint16(buf[1:3]),
	}
	off := 3
	var payloadLen int
	switch d.Type {
	case DeltaNewBet, DeltaBalanceUpdate:
		// variable-length (varint-bearing) payloads, handled below
	case DeltaDiceRoll:
		payloadLen = 2
	case DeltaPhaseChange:
		payloadLen = 1
	case DeltaPointChange:
		payloadLen = 1
	default:
		return Delta{}, 0, types.NewError(types.KindProtocol, "unknown delta type", nil)
	}
	if d.Type == DeltaNewBet {
		if len(buf[off:]) < 5 {
			return Delta{}, 0, types.NewError(types.KindInvalidData, "truncated NewBet delta", nil)
		}
		bet, consumed, err := decodeCompactBet(buf[off:])
		if err != nil {
			return Delta{}, 0, err
		}
		_ = bet
		d.Payload = append([]byte(nil), buf[off:off+consumed]...)
		return d, off + consumed, nil
	}
	if d.Type == DeltaBalanceUpdate {
		if len(buf[off:]) < 4 {
			return Delta{}, 0, types.NewError(types.KindInvalidData, "truncated BalanceUpdate delta", nil)
		}
		_, n, err := ReadUvarint(buf[off+4:])
		if err != nil {
			return Delta{}, 0, err
		}
		total := 4 + n
		d.Payload = append([]byte(nil), buf[off:off+total]...)
		return d, off + total, nil
	}
	if len(buf[off:]) < payloadLen {
		return Delta{}, 0, types.NewError(types.KindInvalidData, "truncated delta payload", nil)
	}
	d.Payload = append([]byte(nil), buf[off:off+payloadLen]...)
	return d, off + payloadLen, nil
}

// EncodeNewBet builds a NewBet delta payload. bet.PeerHash carries the
// bettor's hash; CompactBet.encode serializes it inline.
func EncodeNewBet(seq uint16, bet CompactBet) Delta {
	return Delta{Type: DeltaNewBet, Sequence: seq, Payload: bet.encode(nil)}
}

// DecodeNewBet extracts the CompactBet from a DeltaNewBet payload.
func DecodeNewBet(d Delta) (CompactBet, error) {
	if d.Type != DeltaNewBet {
		return CompactBet{}, types.NewError(types.KindInvalidData, "not a NewBet delta", nil)
	}
	bet, _, err := decodeCompactBet(d.Payload)
	return bet, err
}

// EncodeDiceRoll builds a DiceRoll delta payload.
func EncodeDiceRoll(seq uint16, roll types.DiceRoll) Delta {
	return Delta{Type: DeltaDiceRoll, Sequence: seq, Payload: []byte{roll.Die1, roll.Die2}}
}

// EncodePhaseChange builds a PhaseChange delta payload.
func EncodePhaseChange(seq uint16, phase CompactPhase) Delta {
	return Delta{Type: DeltaPhaseChange, Sequence: seq, Payload: []byte{byte(phase)}}
}

// EncodeBalanceUpdate builds a BalanceUpdate delta payload (zig-zag
// varint-encoded signed delta).
func EncodeBalanceUpdate(seq uint16, peer PeerHash, delta int64) Delta {
	payload := append([]byte(nil), peer[:]...)
	payload = PutUvarint(payload, ZigZagEncode(delta))
	return Delta{Type: DeltaBalanceUpdate, Sequence: seq, Payload: payload}
}

// EncodePointChange builds a PointChange delta payload.
func EncodePointChange(seq uint16, point uint8) Delta {
	return Delta{Type: DeltaPointChange, Sequence: seq, Payload: []byte{point}}
}

// DecodeDiceRoll extracts the dice pair from a DeltaDiceRoll payload.
func DecodeDiceRoll(d Delta) (types.DiceRoll, error) {
	if d.Type != DeltaDiceRoll || len(d.Payload) != 2 {
		return types.DiceRoll{}, types.NewError(types.KindInvalidData, "not a DiceRoll delta", nil)
	}
	return types.DiceRoll{Die1: d.Payload[0], Die2: d.Payload[1]}, nil
}

// DecodeBalanceUpdate extracts the peer hash and signed delta from a
// DeltaBalanceUpdate payload.
func DecodeBalanceUpdate(d Delta) (PeerHash, int64, error) {
	if d.Type != DeltaBalanceUpdate || len(d.Payload) < 5 {
		return PeerHash{}, 0, types.NewError(types.KindInvalidData, "not a BalanceUpdate delta", nil)
	}
	var peer PeerHash
	copy(peer[:], d.Payload[0:4])
	zz, _, err := ReadUvarint(d.Payload[4:])
	if err != nil {
		return PeerHash{}, 0, err
	}
	return peer, ZigZagDecode(zz), nil
}
