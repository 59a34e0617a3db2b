package noise

import "sync/atomic"

// TransportKeypair holds one direction-paired set of transport keys
// resulting from a completed handshake (§4.6), plus the sending counter and
// receiving replay filter that go with that specific key.
type TransportKeypair struct {
	sendKey [32]byte
	recvKey [32]byte

	// sendCounter is the next counter value to use for an outgoing packet.
	sendCounter uint64

	replay ReplayFilter

	localIndex  uint32
	remoteIndex uint32
}

// NewTransportKeypair wraps a completed handshake's derived keys together
// with the session indices needed to route transport packets back to it.
func NewTransportKeypair(send, recv [32]byte, localIndex, remoteIndex uint32) *TransportKeypair {
	return &TransportKeypair{
		sendKey:     send,
		recvKey:     recv,
		localIndex:  localIndex,
		remoteIndex: remoteIndex,
	}
}

// Seal encrypts plaintext (an IP packet, or nil/empty for a keepalive) into
// a complete Type 4 wire message, consuming the next sending counter.
// Returns ErrDecryptionFailed once the counter reaches RejectAfterMessages;
// callers must have rekeyed before this per rekeyAfterMessages.
func (k *TransportKeypair) Seal(plaintext []byte) ([]byte, error) {
	counter := atomic.AddUint64(&k.sendCounter, 1) - 1
	if counter >= RejectAfterMessages {
		return nil, ErrDecryptionFailed
	}
	ct := aeadSeal(nil, k.sendKey, counter, plaintext, nil)
	return marshalTransportHeader(k.remoteIndex, counter, ct), nil
}

// ExhaustedForRekey reports whether this keypair has sent enough messages
// that a proactive rekey should already be underway (§4.8).
func (k *TransportKeypair) ExhaustedForRekey() bool {
	return atomic.LoadUint64(&k.sendCounter) >= rekeyAfterMessages
}

// Open authenticates and decrypts a Type 4 message's content against this
// keypair's receive key and replay window, given the already-parsed header.
// Replays and out-of-window counters return ErrDecryptionFailed without
// mutating the replay state.
func (k *TransportKeypair) Open(hdr TransportHeader, content []byte) ([]byte, error) {
	if !k.replay.Check(hdr.Counter) {
		return nil, ErrDecryptionFailed
	}
	pt, err := aeadOpen(nil, k.recvKey, hdr.Counter, content, nil)
	if err != nil {
		return nil, err
	}
	if !k.replay.Accept(hdr.Counter) {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

func (k *TransportKeypair) LocalIndex() uint32  { return k.localIndex }
func (k *TransportKeypair) RemoteIndex() uint32 { return k.remoteIndex }
