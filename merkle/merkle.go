// Package merkle implements the complete binary merkle tree over
// randomness commitments (spec component C3): O(log n) proof
// generation and verification, flat-array storage, odd-level
// duplication of the last node.
package merkle

import (
	"crypto/sha256"

	"github.com/meshdice/consensus/safemath"
	"github.com/meshdice/consensus/types"
)

const maxProofSteps = 64

// Tree is a complete binary tree stored as levels of flat byte slices,
// leaves first.
type Tree struct {
	levels [][]types.Hash32 // levels[0] = leaves, levels[len-1] = [root]
}

// emptyRoot is returned for a zero-leaf tree per spec §4.3.
var emptyRoot types.Hash32

// New builds a tree over the given leaves (already-hashed
// commitments). An empty leaf set yields a tree whose Root is all-zero.
func New(leaves []types.Hash32) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: [][]types.Hash32{{}}}
	}
	level := append([]types.Hash32(nil), leaves...)
	levels := [][]types.Hash32{level}
	for len(level) > 1 {
		next := make([]types.Hash32, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

func hashPair(left, right types.Hash32) types.Hash32 {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out types.Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// Root returns the tree's root hash, or the all-zero hash for an empty
// tree.
func (t *Tree) Root() types.Hash32 {
	if len(t.levels) == 0 {
		return emptyRoot
	}
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return emptyRoot
	}
	return top[0]
}

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// Proof is a sibling path plus a direction bitmap: bit k = 1 means the
// sibling at level k is on the left.
type Proof struct {
	Siblings   []types.Hash32
	Directions uint64
	PathLen    uint8
}

// Prove returns the inclusion proof for leaf index i.
func (t *Tree) Prove(i int) (Proof, error) {
	if len(t.levels) == 0 || len(t.levels[0]) == 0 {
		return Proof{}, types.NewError(types.KindInvalidInput, "cannot prove a leaf in an empty tree", nil)
	}
	if i < 0 || i >= len(t.levels[0]) {
		return Proof{}, types.NewError(types.KindInvalidInput, "leaf index out of range", nil)
	}
	depth, err := safemath.CeilLog2(uint64(len(t.levels[0])))
	if err != nil {
		return Proof{}, err
	}
	if depth > maxProofSteps {
		return Proof{}, types.NewError(types.KindResourceExhausted, "proof path exceeds 64 steps", nil)
	}

	var proof Proof
	idx := i
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		level := t.levels[lvl]
		isRightChild := idx%2 == 1
		var siblingIdx int
		var siblingIsLeft bool
		if isRightChild {
			siblingIdx = idx - 1
			siblingIsLeft = true
		} else {
			siblingIdx = idx + 1
			if siblingIdx >= len(level) {
				siblingIdx = idx // odd-level duplication: sibling is self
			}
			siblingIsLeft = false
		}
		proof.Siblings = append(proof.Siblings, level[siblingIdx])
		if siblingIsLeft {
			proof.Directions |= 1 << uint(lvl)
		}
		proof.PathLen++
		idx /= 2
	}
	if int(proof.PathLen) > maxProofSteps {
		return Proof{}, types.NewError(types.KindResourceExhausted, "proof path exceeds 64 steps", nil)
	}
	return proof, nil
}

// Verify reconstructs the root from leaf and proof and compares it to
// root, in O(log n).
func Verify(root types.Hash32, leaf types.Hash32, proof Proof) bool {
	computed, ok := RootFromProof(leaf, proof)
	return ok && computed == root
}

// RootFromProof reconstructs the root a (leaf, proof) pair implies,
// without comparing it to a caller-supplied root. Used where the root
// itself isn't independently known in advance and must instead be
// cross-checked for agreement across several proofs (e.g. validating a
// ProcessRoll's entropy_proof entries all resolve to one common root).
func RootFromProof(leaf types.Hash32, proof Proof) (types.Hash32, bool) {
	if int(proof.PathLen) > maxProofSteps || int(proof.PathLen) != len(proof.Siblings) {
		return types.Hash32{}, false
	}
	cur := leaf
	for lvl := 0; lvl < len(proof.Siblings); lvl++ {
		sibling := proof.Siblings[lvl]
		siblingIsLeft := proof.Directions&(1<<uint(lvl)) != 0
		if siblingIsLeft {
			cur = hashPair(sibling, cur)
		} else {
			cur = hashPair(cur, sibling)
		}
	}
	return cur, true
}
