package wire

import (
	"encoding/binary"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/types"
)

// CompactPhase is the on-wire phase tag (spec §4.5).
type CompactPhase uint8

const (
	CompactComeOut   CompactPhase = 0
	CompactPoint     CompactPhase = 1
	CompactEnded     CompactPhase = 2
	CompactGameEnded CompactPhase = 3
)

const flagHasPoint = 1 << 0

// PeerHash is the first 4 bytes of SHA-256(PeerId), used on the wire in
// place of the full 32-byte PeerId for density; the full PeerId remains
// the identity used for signatures.
type PeerHash [4]byte

// HashPeer derives a peer's on-wire PeerHash.
func HashPeer(p types.PeerId) PeerHash {
	h := crypto.Hash(p[:])
	var out PeerHash
	copy(out[:], h[:4])
	return out
}

// CompactBet is one player's stake on the wire.
type CompactBet struct {
	PeerHash       PeerHash
	BetType        uint8 // 6 bits
	Flags          uint8 // 2 bits
	Amount         uint64
	TimestampDelta uint16
}

func (b CompactBet) encode(buf []byte) []byte {
	buf = append(buf, b.PeerHash[:]...)
	buf = append(buf, (b.BetType&0x3F)|((b.Flags&0x3)<<6))
	buf = PutUvarint(buf, b.Amount)
	var td [2]byte
	binary.BigEndian.PutUint16(td[:], b.TimestampDelta)
	buf = append(buf, td[:]...)
	return buf
}

func decodeCompactBet(buf []byte) (CompactBet, int, error) {
	if len(buf) < 5 {
		return CompactBet{}, 0, types.NewError(types.KindInvalidData, "truncated compact bet", nil)
	}
	var b CompactBet
	copy(b.PeerHash[:], buf[0:4])
	b.BetType = buf[4] & 0x3F
	b.Flags = (buf[4] >> 6) & 0x3
	off := 5
	amount, n, err := ReadUvarint(buf[off:])
	if err != nil {
		return CompactBet{}, 0, err
	}
	b.Amount = amount
	off += n
	if len(buf[off:]) < 2 {
		return CompactBet{}, 0, types.NewError(types.KindInvalidData, "truncated compact bet timestamp delta", nil)
	}
	b.TimestampDelta = binary.BigEndian.Uint16(buf[off : off+2])
	off += 2
	return b, off, nil
}

// CompactGameState is the fixed-header + variable-tail wire encoding of
// a GameState, including per-peer balances.
type CompactGameState struct {
	GameID      types.GameId
	Flags       uint8
	Point       uint8
	Phase       CompactPhase
	RollCount   uint16
	HotStreak   uint8
	PlayerCount uint8
	Bets        []CompactBet
	Balances    []CompactBalance
}

// CompactBalance is one peer's balance on the wire.
type CompactBalance struct {
	PeerHash PeerHash
	Amount   uint64
}

// checksum is a position-weighted rolling sum over every byte of the
// message (with the checksum field itself treated as zero), truncated
// to 32 bits.
func checksum(buf []byte) uint32 {
	var sum uint32
	for i, b := range buf {
		sum += uint32(b) * uint32(i+1)
	}
	return sum
}

const headerLen = 16 + 1 + 1 + 2 + 1 + 1 + 4 + 2 // game_id..var_len

// Encode serializes the compact state, computing and embedding the
// checksum.
func (s CompactGameState) Encode() []byte {
	var tail []byte
	tail = PutUvarint(tail, uint64(len(s.Bets)))
	for _, b := range s.Bets {
		tail = b.encode(tail)
	}
	tail = PutUvarint(tail, uint64(len(s.Balances)))
	for _, bal := range s.Balances {
		tail = append(tail, bal.PeerHash[:]...)
		tail = PutUvarint(tail, bal.Amount)
	}

	buf := make([]byte, 0, headerLen+len(tail))
	buf = append(buf, s.GameID[:]...)
	buf = append(buf, s.Flags)
	buf = append(buf, (s.Point<<4)|byte(s.Phase))
	var rc [2]byte
	binary.BigEndian.PutUint16(rc[:], s.RollCount)
	buf = append(buf, rc[:]...)
	buf = append(buf, s.HotStreak, s.PlayerCount)
	checksumOffset := len(buf)
	buf = append(buf, 0, 0, 0, 0) // checksum placeholder
	var vl [2]byte
	binary.BigEndian.PutUint16(vl[:], uint16(len(tail)))
	buf = append(buf, vl[:]...)
	buf = append(buf, tail...)

	sum := checksum(buf)
	binary.BigEndian.PutUint32(buf[checksumOffset:checksumOffset+4], sum)
	return buf
}

// DecodeCompactGameState parses buf, validating the embedded checksum.
func DecodeCompactGameState(buf []byte) (CompactGameState, error) {
	if len(buf) < headerLen {
		return CompactGameState{}, types.NewError(types.KindInvalidData, "compact state shorter than fixed header", nil)
	}
	var s CompactGameState
	copy(s.GameID[:], buf[0:16])
	s.Flags = buf[16]
	pointPhase := buf[17]
	s.Point = pointPhase >> 4
	s.Phase = CompactPhase(pointPhase & 0x0F)
	s.RollCount = binary.BigEndian.Uint16(buf[18:20])
	s.HotStreak = buf[20]
	s.PlayerCount = buf[21]
	storedChecksum := binary.BigEndian.Uint32(buf[22:26])
	varLen := binary.BigEndian.Uint16(buf[26:28])

	check := append([]byte(nil), buf...)
	check[22], check[23], check[24], check[25] = 0, 0, 0, 0
	if int(varLen) > len(check)-headerLen {
		return CompactGameState{}, types.NewError(types.KindInvalidData, "var_len exceeds available bytes", nil)
	}
	check = check[:headerLen+int(varLen)]
	if checksum(check) != storedChecksum {
		return CompactGameState{}, types.NewError(types.KindInvalidData, "checksum mismatch", nil)
	}

	tail := buf[headerLen : headerLen+int(varLen)]
	betCount, n, err := ReadUvarint(tail)
	if err != nil {
		return CompactGameState{}, err
	}
	tail = tail[n:]
	for i := uint64(0); i < betCount; i++ {
		b, consumed, err := decodeCompactBet(tail)
		if err != nil {
			return CompactGameState{}, err
		}
		s.Bets = append(s.Bets, b)
		tail = tail[consumed:]
	}
	balCount, n, err := ReadUvarint(tail)
	if err != nil {
		return CompactGameState{}, err
	}
	tail = tail[n:]
	for i := uint64(0); i < balCount; i++ {
		if len(tail) < 4 {
			return CompactGameState{}, types.NewError(types.KindInvalidData, "truncated balance entry", nil)
		}
		var bal CompactBalance
		copy(bal.PeerHash[:], tail[0:4])
		tail = tail[4:]
		amt, n, err := ReadUvarint(tail)
		if err != nil {
			return CompactGameState{}, err
		}
		bal.Amount = amt
		tail = tail[n:]
		s.Balances = append(s.Balances, bal)
	}
	return s, nil
}
