package noise

import "golang.org/x/crypto/blake2s"

// symmetricState is the mutable (chaining_key, hash) pair threaded through a
// single in-progress handshake. It is owned exclusively by the Handshake
// that created it and is discarded once the final transport keys are
// derived; it is never shared between sessions (see §9).
type symmetricState struct {
	chainingKey [blake2s.Size]byte
	hash        [blake2s.Size]byte
}

// newSymmetricState computes the initial (chaining_key, hash) pair for a
// handshake addressed to responderStatic, per §4.2.
func newSymmetricState(responderStatic PublicKey) symmetricState {
	ck := blakeHash([]byte(noiseConstruction))
	h := blakeHash(blakeHash(ck[:], []byte(wgIdentifier))[:], responderStatic[:])
	return symmetricState{chainingKey: ck, hash: h}
}

func (s *symmetricState) mixHash(data []byte) {
	s.hash = blakeHash(s.hash[:], data)
}

// mixKey replaces the chaining key and returns the fresh 32-byte output key;
// the key is not retained in state.
func (s *symmetricState) mixKey(data []byte) [blake2s.Size]byte {
	next, k := kdf2(s.chainingKey, data)
	s.chainingKey = next
	return k
}

// mixKeyOnly is the single-output KDF1 variant used for ephemeral mixing
// (§4.4 step 2, §4.5 step 5/14), distinct from mixKey's two-output form.
func (s *symmetricState) mixKeyOnly(data []byte) {
	s.chainingKey = kdf1(s.chainingKey, data)
}

// mixKeyAndHash mixes both the chaining key and an intermediate tau into the
// hash, returning the derived key. Used for the PSK mix step.
func (s *symmetricState) mixKeyAndHash(data []byte) [blake2s.Size]byte {
	next, tau, k := kdf3(s.chainingKey, data)
	s.chainingKey = next
	s.mixHash(tau[:])
	return k
}

// encryptAndHash seals plaintext under k with the running hash as AAD, then
// mixes the ciphertext into the hash.
func (s *symmetricState) encryptAndHash(k [32]byte, plaintext []byte) []byte {
	ct := aeadSeal(nil, k, 0, plaintext, s.hash[:])
	s.mixHash(ct)
	return ct
}

// decryptAndHash opens ciphertext under k with the running hash as AAD, then
// mixes the ciphertext into the hash. The hash is only advanced once
// decryption succeeds.
func (s *symmetricState) decryptAndHash(k [32]byte, ciphertext []byte) ([]byte, error) {
	pt, err := aeadOpen(nil, k, 0, ciphertext, s.hash[:])
	if err != nil {
		return nil, err
	}
	s.mixHash(ciphertext)
	return pt, nil
}
