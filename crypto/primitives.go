// Package crypto implements the cryptographic primitives spec
// component C1: Ed25519 sign/verify behind a bounded LRU verify cache,
// multi-part SHA-256 hashing, and the CSPRNG-backed entropy pool.
//
// Ed25519 and SHA-256 stay on Go's standard library (crypto/ed25519,
// crypto/sha256): the spec's contract is exactly those primitives with
// no vendor extension, and they're the same algorithms the pack's own
// Ed25519-adjacent dependencies ultimately wrap. See DESIGN.md.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"

	"github.com/meshdice/consensus/types"
)

// KeyPair is a local Ed25519 identity: the reference implementation of
// the Signer capability (see Signer).
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh random Ed25519 identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, types.NewError(types.KindCrypto, "key generation failed", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// LocalId returns the PeerId (the raw 32-byte public key) for this
// identity.
func (k *KeyPair) LocalId() types.PeerId {
	var id types.PeerId
	copy(id[:], k.Public)
	return id
}

// Sign signs msg with the local Ed25519 private key.
func (k *KeyPair) Sign(msg []byte) types.Sig64 {
	sig := ed25519.Sign(k.Private, msg)
	var out types.Sig64
	copy(out[:], sig)
	return out
}

// Verify checks an Ed25519 signature directly, with no cache. Most
// callers should go through VerifyCache.Verify instead.
func Verify(peer types.PeerId, msg []byte, sig types.Sig64) bool {
	return ed25519.Verify(ed25519.PublicKey(peer[:]), msg, sig[:])
}

// Hash is SHA-256 over the concatenation of every part, matching the
// spec's "multi-part absorb" contract.
func Hash(parts ...[]byte) types.Hash32 {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash32
	copy(out[:], h.Sum(nil))
	return out
}
