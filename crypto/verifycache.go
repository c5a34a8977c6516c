package crypto

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meshdice/consensus/types"
)

// DefaultVerifyCacheSize is the default LRU capacity: Ed25519 verifies
// dominate CPU in this system, and caching is safe because both the
// signer's public key and the signed bytes are part of the cache key.
const DefaultVerifyCacheSize = 1024

// VerifyCache is a bounded LRU cache of Ed25519 verification results,
// guarded by a mutex since it, like EntropyPool, is shared across the
// engine's concurrent input boundary (inbound frames from multiple
// peers may verify concurrently).
type VerifyCache struct {
	mu      sync.Mutex
	cache   *lru.Cache[types.Hash32, bool]
	hits    uint64
	misses  uint64
}

// NewVerifyCache constructs a cache with the given capacity.
func NewVerifyCache(capacity int) *VerifyCache {
	if capacity <= 0 {
		capacity = DefaultVerifyCacheSize
	}
	c, _ := lru.New[types.Hash32, bool](capacity)
	return &VerifyCache{cache: c}
}

func cacheKey(signedBytes []byte, signer types.PeerId) types.Hash32 {
	return Hash([]byte("SIGCACHE"), signedBytes, signer[:])
}

// Verify returns whether sig is a valid signature by signer over
// signedBytes, consulting the cache first. A miss performs the Ed25519
// verification (outside any lock held by the cache) and inserts the
// result.
func (c *VerifyCache) Verify(signer types.PeerId, signedBytes []byte, sig types.Sig64) bool {
	key := cacheKey(signedBytes, signer)

	c.mu.Lock()
	if valid, ok := c.cache.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return valid
	}
	c.mu.Unlock()

	valid := Verify(signer, signedBytes, sig)

	c.mu.Lock()
	c.misses++
	c.cache.Add(key, valid)
	c.mu.Unlock()

	return valid
}

// Stats returns (hits, misses) for the core facade's metrics.
func (c *VerifyCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len reports the number of cached entries.
func (c *VerifyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
