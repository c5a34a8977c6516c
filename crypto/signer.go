package crypto

import "github.com/meshdice/consensus/types"

// Signer is the external signing capability the core consumes (spec
// §6.5): identity plus signing, with no key material ever exposed to
// the core. KeyPair is the reference implementation used by tests and
// the demo CLI; production deployments back Signer with a platform
// keystore instead.
type Signer interface {
	LocalId() types.PeerId
	Sign(msg []byte) types.Sig64
}

var _ Signer = (*KeyPair)(nil)
