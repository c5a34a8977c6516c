package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("place bet: pass line 100")
	sig := kp.Sign(msg)
	require.True(t, Verify(kp.LocalId(), msg, sig))

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xFF
	require.False(t, Verify(kp.LocalId(), tampered, sig))
}

func TestVerifyCacheHitsAndMisses(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	cache := NewVerifyCache(4)

	msg := []byte("commit randomness round 1")
	sig := kp.Sign(msg)

	require.True(t, cache.Verify(kp.LocalId(), msg, sig))
	hits, misses := cache.Stats()
	require.Equal(t, uint64(0), hits)
	require.Equal(t, uint64(1), misses)

	require.True(t, cache.Verify(kp.LocalId(), msg, sig))
	hits, misses = cache.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)
}

func TestEntropyPoolDeterministicInTestMode(t *testing.T) {
	seed := [32]byte{1, 2, 3}
	p1 := NewTestEntropyPool(seed)
	p2 := NewTestEntropyPool(seed)

	out1, err := p1.Generate(0, 32)
	require.NoError(t, err)
	out2, err := p2.Generate(0, 32)
	require.NoError(t, err)
	require.Equal(t, out1, out2)

	out3, err := p1.Generate(0, 32)
	require.NoError(t, err)
	require.NotEqual(t, out1, out3, "successive draws must not repeat")
}

func TestEntropyPoolAddEntropyChangesOutput(t *testing.T) {
	seed := [32]byte{9, 9, 9}
	p1 := NewTestEntropyPool(seed)
	p2 := NewTestEntropyPool(seed)
	p2.AddEntropy([32]byte{7})

	out1, err := p1.Generate(0, 16)
	require.NoError(t, err)
	out2, err := p2.Generate(0, 16)
	require.NoError(t, err)
	require.NotEqual(t, out1, out2)
}
