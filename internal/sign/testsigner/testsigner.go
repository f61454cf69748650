// Package testsigner provides a fast, deterministic sign.SignerVerifier
// stand-in for tests: HMAC-SHA256 under a shared secret rather than real
// public-key cryptography. It is never wired into the ipvc command tree.
package testsigner

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/martinp-labs/ipvc/internal/sign"
)

// TestSigner signs and verifies with HMAC-SHA256 under Secret, identifying
// itself as KeyID. A registry of peers' secrets lets one TestSigner verify
// signatures produced by another, standing in for the real PKI the
// production signer would use.
type TestSigner struct {
	ID     string
	Secret []byte
	Peers  map[string][]byte // keyID -> secret, for Verify/FetchPeerKey
}

// New returns a TestSigner identifying as id, signing under secret, aware
// of peers' secrets for verification.
func New(id string, secret []byte, peers map[string][]byte) *TestSigner {
	if peers == nil {
		peers = map[string][]byte{}
	}
	return &TestSigner{ID: id, Secret: secret, Peers: peers}
}

func (t *TestSigner) KeyID(ctx context.Context) (string, error) {
	return t.ID, nil
}

func (t *TestSigner) Sign(ctx context.Context, digest []byte) (sign.Signature, error) {
	mac := hmac.New(sha256.New, t.Secret)
	mac.Write(digest)
	return sign.Signature{
		KeyID:     t.ID,
		Algorithm: "hmac-sha256",
		Bytes:     mac.Sum(nil),
	}, nil
}

func (t *TestSigner) Verify(ctx context.Context, digest []byte, sig sign.Signature) (bool, error) {
	secret, err := t.lookupSecret(sig.KeyID)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(digest)
	return hmac.Equal(mac.Sum(nil), sig.Bytes), nil
}

func (t *TestSigner) FetchPeerKey(ctx context.Context, keyID string) ([]byte, error) {
	return t.lookupSecret(keyID)
}

func (t *TestSigner) lookupSecret(keyID string) ([]byte, error) {
	if keyID == t.ID {
		return t.Secret, nil
	}
	if s, ok := t.Peers[keyID]; ok {
		return s, nil
	}
	return nil, sign.ErrUnknownPeer
}
