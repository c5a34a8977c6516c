package dice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/types"
)

func TestAggregateIsXORFold(t *testing.T) {
	r1 := types.RandomnessReveal{Nonce: [32]byte{0x01}}
	r2 := types.RandomnessReveal{Nonce: [32]byte{0x03}}
	entropy := Aggregate([]types.RandomnessReveal{r1, r2})
	require.NotEqual(t, types.Hash32{}, entropy)

	// Only the XOR of the nonces and N are hashed: {0x02} and {0x00}
	// fold to the same combined value as {0x01} and {0x03}.
	require.Equal(t, entropy, Aggregate([]types.RandomnessReveal{{Nonce: [32]byte{0x02}}, {}}))

	// Mixing in N defeats pure XOR-cancellation: two reveals that XOR to
	// zero combined nonce still produce nonzero entropy because N=2 is
	// absorbed into the hash.
	same := types.RandomnessReveal{Nonce: [32]byte{0xAB}}
	cancel := Aggregate([]types.RandomnessReveal{same, same})
	require.NotEqual(t, types.Hash32{}, cancel)
}

func TestExtractDiceInRange(t *testing.T) {
	for b := 0; b < 50; b++ {
		var entropy types.Hash32
		for i := range entropy {
			entropy[i] = byte(b*7 + i)
		}
		roll := ExtractDice(entropy, nil)
		require.True(t, roll.Die1 >= 1 && roll.Die1 <= 6)
		require.True(t, roll.Die2 >= 1 && roll.Die2 <= 6)
		require.NoError(t, roll.Validate())
	}
}

func TestExtractDiceDeterministic(t *testing.T) {
	var entropy types.Hash32
	for i := range entropy {
		entropy[i] = byte(i)
	}
	r1 := ExtractDice(entropy, nil)
	r2 := ExtractDice(entropy, nil)
	require.Equal(t, r1, r2)
}
