// Package localsigner is the concrete Signer/Verifier the ipvc CLI wires
// by default: an ed25519 key pair held on disk. The reference
// implementation bound signing to an IPFS node's RSA peer keys and left
// key distribution to IPFS's own DHT; ipvc-go has no network transport
// (spec Non-goals), so Verify/FetchPeerKey only resolve identities this
// process has signed for itself or been given with AddPeer — a real
// multi-peer PKI remains an
// external collaborator, per spec.md's External Interfaces.
package localsigner

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/martinp-labs/ipvc/internal/sign"
)

// Signer holds one ed25519 identity loaded from (or generated into) a key
// file, plus any peer public keys it has been told about.
type Signer struct {
	id    string
	priv  ed25519.PrivateKey
	peers map[string]ed25519.PublicKey
}

// Load reads the ed25519 private key at path, generating and persisting a
// fresh one if the file doesn't exist yet. The identity's KeyID is the
// hex-encoded public key.
func Load(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("localsigner: %s is not a valid ed25519 key", path)
		}
		priv := ed25519.PrivateKey(data)
		return newSigner(priv), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, err
	}
	return newSigner(priv), nil
}

func newSigner(priv ed25519.PrivateKey) *Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{
		id:    hex.EncodeToString(pub),
		priv:  priv,
		peers: map[string]ed25519.PublicKey{},
	}
}

// AddPeer records a remote identity's public key, given as its hex-encoded
// key ID, so Verify can check signatures from it.
func (s *Signer) AddPeer(keyID string) error {
	raw, err := hex.DecodeString(keyID)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("localsigner: invalid peer key id %q", keyID)
	}
	s.peers[keyID] = ed25519.PublicKey(raw)
	return nil
}

func (s *Signer) KeyID(ctx context.Context) (string, error) {
	return s.id, nil
}

func (s *Signer) Sign(ctx context.Context, digest []byte) (sign.Signature, error) {
	return sign.Signature{
		KeyID:     s.id,
		Algorithm: "ed25519",
		Bytes:     ed25519.Sign(s.priv, digest),
	}, nil
}

func (s *Signer) Verify(ctx context.Context, digest []byte, sig sign.Signature) (bool, error) {
	pub, err := s.publicKeyFor(sig.KeyID)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, digest, sig.Bytes), nil
}

func (s *Signer) FetchPeerKey(ctx context.Context, keyID string) ([]byte, error) {
	pub, err := s.publicKeyFor(keyID)
	if err != nil {
		return nil, err
	}
	return []byte(pub), nil
}

func (s *Signer) publicKeyFor(keyID string) (ed25519.PublicKey, error) {
	if keyID == s.id {
		return s.priv.Public().(ed25519.PublicKey), nil
	}
	if pub, ok := s.peers[keyID]; ok {
		return pub, nil
	}
	return nil, sign.ErrUnknownPeer
}
