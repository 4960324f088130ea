package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of a Solana account address.
const PublicKeyLength = 32

var ErrInvalidKey = errors.New("invalid key")

// Keypair is the agent's signing identity.
type Keypair struct {
	private ed25519.PrivateKey
	public  PublicKey
}

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeyLength]byte

// String returns the base58 form.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsOnCurve reports whether the key is a valid ed25519 point, i.e. can have a private key.
func (p PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return pk, fmt.Errorf("decode address %q: %w", s, ErrInvalidKey)
	}
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("address %q has %d bytes: %w", s, len(raw), ErrInvalidKey)
	}
	copy(pk[:], raw)
	return pk, nil
}

// KeypairFromBase58 decodes a 64-byte base58 secret key (seed followed by public key).
// The embedded public key must match the one derived from the seed.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", ErrInvalidKey)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key has %d bytes, want %d: %w", len(raw), ed25519.PrivateKeySize, ErrInvalidKey)
	}
	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	for i := range priv {
		if priv[i] != raw[i] {
			return nil, fmt.Errorf("secret key public half does not match seed: %w", ErrInvalidKey)
		}
	}
	return newKeypair(priv), nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed has %d bytes: %w", len(seed), ErrInvalidKey)
	}
	return newKeypair(ed25519.NewKeyFromSeed(seed)), nil
}

func newKeypair(priv ed25519.PrivateKey) *Keypair {
	kp := &Keypair{private: priv}
	copy(kp.public[:], priv.Public().(ed25519.PublicKey))
	return kp
}

// PublicKey returns the keypair's address.
func (k *Keypair) PublicKey() PublicKey {
	return k.public
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// SecretBase58 encodes the full 64-byte secret key.
func (k *Keypair) SecretBase58() string {
	return base58.Encode(k.private)
}
