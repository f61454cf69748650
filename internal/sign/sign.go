// Package sign defines the signing capability as an external collaborator
// interface: ipvc-go's commit builder and replay controller depend only on
// Signer/Verifier, never on a concrete key format. The original
// implementation bound this directly to an IPFS node's RSA peer keys
// (see id_peer_keys in the reference source); here that binding is an
// implementation detail behind the interface, and internal/sign/testsigner
// provides a lightweight stand-in for tests.
package sign

import "context"

// Signature is a detached signature over one digest. A commit carries two
// of them, one over its bundle hash and one over its data hash.
type Signature struct {
	KeyID     string
	Algorithm string
	Bytes     []byte
}

// Signer produces signatures under a local identity.
type Signer interface {
	// KeyID identifies the signing identity (the spec's repo_id /
	// peer_id equivalent).
	KeyID(ctx context.Context) (string, error)
	// Sign signs digest (typically a bundle hash or data hash) and
	// returns a detached signature.
	Sign(ctx context.Context, digest []byte) (Signature, error)
}

// Verifier checks signatures against known or fetched peer keys.
type Verifier interface {
	// Verify reports whether sig is a valid signature over digest under
	// the identity named by sig.KeyID.
	Verify(ctx context.Context, digest []byte, sig Signature) (bool, error)
	// FetchPeerKey resolves a remote identity's public key material,
	// mirroring the reference implementation's remote-id resolution
	// (IdAPI.resolve). Returns ErrUnknownPeer if the peer's key was never
	// given to the verifier.
	FetchPeerKey(ctx context.Context, keyID string) ([]byte, error)
}

// SignerVerifier is the combined capability most callers actually need:
// sign locally, verify signatures from any collaborator.
type SignerVerifier interface {
	Signer
	Verifier
}
