package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/meshdice/consensus/types"
)

// ReseedInterval is the default 300s reseed interval from spec §4.1 /
// §6.4.
const ReseedInterval = 300

// EntropyPool is a buffered CSPRNG mixing OS randomness with
// accumulated network-contributed entropy (reveal nonces, etc). It is
// one of the two long-lived shared resources in the system (alongside
// VerifyCache) and is guarded by a mutex since writers (AddEntropy) and
// readers (Generate) can run from different tasks.
type EntropyPool struct {
	mu         sync.Mutex
	state      [32]byte
	counter    uint64
	lastReseed uint64
	testMode   bool
	samples    uint64
}

// NewEntropyPool seeds a pool from the OS CSPRNG at construction. now is
// the construction time in the Clock's seconds, recorded as the initial
// reseed watermark.
func NewEntropyPool(now uint64) (*EntropyPool, error) {
	p := &EntropyPool{lastReseed: now}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, types.NewError(types.KindCrypto, "failed to read OS entropy", err)
	}
	copy(p.state[:], seed)
	return p, nil
}

// NewTestEntropyPool returns a pool seeded deterministically from seed
// with OS reseeding disabled, so property-based tests are reproducible
// (spec §9 design note).
func NewTestEntropyPool(seed [32]byte) *EntropyPool {
	return &EntropyPool{state: seed, testMode: true}
}

// AddEntropy folds a 32-byte contribution (e.g. a peer's reveal nonce)
// into the pool's state.
func (p *EntropyPool) AddEntropy(contribution [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Hash(p.state[:], contribution[:])
}

// maybeReseed absorbs fresh OS entropy plus now when the reseed
// interval has elapsed. Caller must hold p.mu.
func (p *EntropyPool) maybeReseed(now uint64) error {
	if p.testMode {
		return nil
	}
	if now < p.lastReseed || now-p.lastReseed <= ReseedInterval {
		return nil
	}
	fresh := make([]byte, 32)
	if _, err := rand.Read(fresh); err != nil {
		return types.NewError(types.KindCrypto, "failed to read OS entropy on reseed", err)
	}
	var nowBytes [8]byte
	binary.BigEndian.PutUint64(nowBytes[:], now)
	p.state = Hash(p.state[:], fresh, nowBytes[:])
	p.lastReseed = now
	return nil
}

// Generate derives n bytes of output, reseeding first if the interval
// has elapsed. The internal state is ratcheted forward after every call
// so no two Generate calls (or a Generate and a future compromise of
// the state) can replay the same output.
func (p *EntropyPool) Generate(now uint64, n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.maybeReseed(now); err != nil {
		return nil, err
	}
	p.samples++

	out := make([]byte, 0, n)
	block := p.state
	for len(out) < n {
		p.counter++
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], p.counter)
		digest := Hash(block[:], ctr[:])
		out = append(out, digest[:]...)
		block = digest
	}
	p.state = Hash(p.state[:], block[:], []byte("RATCHET"))
	return out[:n], nil
}

// Samples reports how many Generate calls this pool has served, for
// the core facade's metrics (spec §4.8's "entropy samples" counter).
func (p *EntropyPool) Samples() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}
