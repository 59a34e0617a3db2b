package noise

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
	"noisevpn/infrastructure/cryptography/mem"
)

// PublicKey is a 32-byte X25519 public key.
type PublicKey [noisePublicKeySize]byte

// PrivateKey is a 32-byte X25519 private key.
type PrivateKey [noisePrivateKeySize]byte

// PresharedKey is the optional per-peer symmetric value mixed into the
// handshake at position 2 of IKpsk2. The all-zero value means "absent" for
// mixing purposes; the mix itself still happens unconditionally.
type PresharedKey [32]byte

// GenerateKeypair produces a fresh X25519 static or ephemeral keypair.
func GenerateKeypair() (PrivateKey, PublicKey, error) {
	var priv PrivateKey
	if _, err := rand.Read(priv[:]); err != nil {
		return priv, PublicKey{}, err
	}
	return priv, priv.PublicKey(), nil
}

// PublicKey derives the X25519 public key for a private key.
func (p PrivateKey) PublicKey() PublicKey {
	var pub PublicKey
	curve25519.ScalarBaseMult((*[32]byte)(&pub), (*[32]byte)(&p))
	return pub
}

func (p *PrivateKey) Zero() {
	mem.ZeroBytes(p[:])
}

func (p PublicKey) IsZero() bool {
	return isZero(p[:])
}
