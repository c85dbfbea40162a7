// Package identity manages participant keypairs. A participant signs
// marketplace invocations with an ed25519 key, and the hex form of its
// public key is the caller identity recorded as owner, bidder or seller.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Identity is a participant keypair. It satisfies types.Signer.
type Identity struct {
	key ed25519.PrivateKey
	id  string
}

// NewIdentity wraps an existing private key.
func NewIdentity(key ed25519.PrivateKey) *Identity {
	return &Identity{key: key, id: hex.EncodeToString(key.Public().(ed25519.PublicKey))}
}

// Generate creates a fresh identity that is not persisted.
func Generate() (*Identity, error) {
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return NewIdentity(key), nil
}

func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.key, message)
}

// Verify checks signature over message against this identity's public key.
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.PublicKey(), message, signature)
}

func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// ID is the caller identity keyed on credit accounts and recorded on
// proposals, bids and sales.
func (i *Identity) ID() string {
	return i.id
}

func (i *Identity) String() string {
	return i.id
}

// ParseID decodes a caller identity back into its public key.
func ParseID(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", s, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity %q: want %d bytes, got %d", s, ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// ValidID reports whether s is a well-formed caller identity.
func ValidID(s string) bool {
	_, err := ParseID(s)
	return err == nil
}
