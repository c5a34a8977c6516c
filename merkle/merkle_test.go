package merkle

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/types"
)

func leafFor(i byte) types.Hash32 {
	return sha256.Sum256([]byte{i})
}

// S6 — merkle proof: build over 7 commitments, every leaf verifies
// against the root, and a tampered leaf fails.
func TestProveVerifySevenLeaves(t *testing.T) {
	leaves := make([]types.Hash32, 7)
	for i := range leaves {
		leaves[i] = leafFor(byte(i))
	}
	tree := New(leaves)
	root := tree.Root()
	require.NotEqual(t, types.Hash32{}, root)

	for i := range leaves {
		proof, err := tree.Prove(i)
		require.NoError(t, err)
		require.True(t, Verify(root, leaves[i], proof), "leaf %d should verify", i)
	}

	tampered := sha256.Sum256([]byte("tampered"))
	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.False(t, Verify(root, tampered, proof))
}

func TestEmptyTreeHasZeroRoot(t *testing.T) {
	tree := New(nil)
	require.Equal(t, types.Hash32{}, tree.Root())
	_, err := tree.Prove(0)
	require.Error(t, err)
}

func TestSingleLeafTree(t *testing.T) {
	leaf := leafFor(0)
	tree := New([]types.Hash32{leaf})
	require.Equal(t, leaf, tree.Root())
	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.True(t, Verify(tree.Root(), leaf, proof))
}

func TestOddLevelDuplication(t *testing.T) {
	leaves := make([]types.Hash32, 5)
	for i := range leaves {
		leaves[i] = leafFor(byte(i + 10))
	}
	tree := New(leaves)
	root := tree.Root()
	for i := range leaves {
		proof, err := tree.Prove(i)
		require.NoError(t, err)
		require.True(t, Verify(root, leaves[i], proof))
	}
}
