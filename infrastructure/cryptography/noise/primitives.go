package noise

import (
	"crypto/hmac"
	"crypto/rand"
	"hash"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// blakeHash returns BLAKE2s-256 of the concatenation of data.
func blakeHash(data ...[]byte) [blake2s.Size]byte {
	h, _ := blake2s.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out [blake2s.Size]byte
	h.Sum(out[:0])
	return out
}

// keyedMAC16 returns keyed BLAKE2s over the concatenation of data, with a
// 16-byte output. The key may be 16 or 32 bytes (mac vs mac16 of §4.1).
func keyedMAC16(key []byte, data ...[]byte) [blake2s.Size128]byte {
	h, _ := blake2s.New128(key)
	for _, d := range data {
		h.Write(d)
	}
	var out [blake2s.Size128]byte
	h.Sum(out[:0])
	return out
}

func newBlake2s256() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

// blakeHMAC implements RFC 2104 HMAC with BLAKE2s-256 as the inner hash.
// This is the one place an implementation could plausibly but wrongly
// substitute BLAKE2s's native keyed mode; WireGuard interop requires true
// HMAC here, never keyed BLAKE2s.
func blakeHMAC(key, data []byte) [blake2s.Size]byte {
	mac := hmac.New(newBlake2s256, key)
	mac.Write(data)
	var out [blake2s.Size]byte
	mac.Sum(out[:0])
	return out
}

// kdf1 derives a single 32-byte output from chainingKey and input.
func kdf1(chainingKey [blake2s.Size]byte, input []byte) [blake2s.Size]byte {
	t0 := blakeHMAC(chainingKey[:], input)
	return blakeHMAC(t0[:], []byte{0x01})
}

// kdf2 derives two 32-byte outputs: the new chaining key and k.
func kdf2(chainingKey [blake2s.Size]byte, input []byte) (next, k [blake2s.Size]byte) {
	t0 := blakeHMAC(chainingKey[:], input)
	t1 := blakeHMAC(t0[:], []byte{0x01})
	t2 := blakeHMAC(t0[:], append(append([]byte{}, t1[:]...), 0x02))
	return t1, t2
}

// kdf3 derives three 32-byte outputs: new chaining key, tau, and k.
func kdf3(chainingKey [blake2s.Size]byte, input []byte) (next, tau, k [blake2s.Size]byte) {
	t0 := blakeHMAC(chainingKey[:], input)
	t1 := blakeHMAC(t0[:], []byte{0x01})
	t2 := blakeHMAC(t0[:], append(append([]byte{}, t1[:]...), 0x02))
	t3 := blakeHMAC(t0[:], append(append([]byte{}, t2[:]...), 0x03))
	return t1, t2, t3
}

// x25519DH performs X25519 scalar multiplication, rejecting an all-zero
// result as a handshake failure rather than silently continuing.
func x25519DH(priv, pub [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, err
	}
	copy(out[:], shared)
	if isZero(out[:]) {
		return out, ErrZeroDHResult
	}
	return out, nil
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// aeadSeal seals plaintext with ChaCha20-Poly1305 under key, using the
// counter-derived 12-byte nonce construction of §4.1 (4 zero bytes || LE64
// counter), appending the result to dst.
func aeadSeal(dst []byte, key [32]byte, counter uint64, plaintext, aad []byte) []byte {
	aead, _ := chacha20poly1305.New(key[:])
	nonce := nonceFromCounter(counter)
	return aead.Seal(dst, nonce[:], plaintext, aad)
}

func aeadOpen(dst []byte, key [32]byte, counter uint64, ciphertext, aad []byte) ([]byte, error) {
	aead, _ := chacha20poly1305.New(key[:])
	nonce := nonceFromCounter(counter)
	out, err := aead.Open(dst, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}

func nonceFromCounter(counter uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	nonce[4] = byte(counter)
	nonce[5] = byte(counter >> 8)
	nonce[6] = byte(counter >> 16)
	nonce[7] = byte(counter >> 24)
	nonce[8] = byte(counter >> 32)
	nonce[9] = byte(counter >> 40)
	nonce[10] = byte(counter >> 48)
	nonce[11] = byte(counter >> 56)
	return nonce
}

// xaeadOpen decrypts the cookie payload under XChaCha20-Poly1305.
func xaeadOpen(key [32]byte, nonce [cookieNonceSize]byte, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}

func xaeadSeal(key [32]byte, nonce [cookieNonceSize]byte, plaintext, aad []byte) []byte {
	aead, _ := chacha20poly1305.NewX(key[:])
	return aead.Seal(nil, nonce[:], plaintext, aad)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
