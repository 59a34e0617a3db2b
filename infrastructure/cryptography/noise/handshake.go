package noise

import (
	"crypto/rand"
	"time"

	"golang.zx2c4.com/wireguard/tai64n"
)

// HandshakeState is the transient per-attempt state for a single Noise
// IKpsk2 handshake (§3, §4.2). It is owned by one in-flight attempt and is
// discarded (or promoted into transport keys) once the handshake concludes;
// it never survives past ConsumeResponse/CreateResponse succeeding.
type HandshakeState struct {
	symmetric symmetricState

	localEphemeralPriv PrivateKey
	localEphemeralPub  PublicKey

	remoteEphemeral PublicKey
	remoteStatic    PublicKey

	localStaticPriv PrivateKey
	localStaticPub  PublicKey
	presharedKey    PresharedKey

	localIndex  uint32
	remoteIndex uint32

	// isInitiator records which side of IKpsk2 this state plays, since the
	// final key derivation assigns send/receive in opposite order.
	isInitiator bool

	// lastReceivedTimestamp is not read or written by this type's methods:
	// replayed-initiation checks (a TAI64N timestamp not strictly newer than
	// the last one accepted from that remote static key) are made by the
	// caller, which keeps the per-peer value across attempts.
	lastReceivedTimestamp tai64n.Timestamp
}

// NewInitiatorHandshake begins a fresh IKpsk2 attempt as the initiator,
// addressed to remoteStatic, using localStatic as our own static identity
// and psk as the (possibly all-zero) preshared key.
func NewInitiatorHandshake(localStatic PrivateKey, remoteStatic PublicKey, psk PresharedKey) (*HandshakeState, error) {
	ephPriv, ephPub, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	hs := &HandshakeState{
		symmetric:           newSymmetricState(remoteStatic),
		localEphemeralPriv:  ephPriv,
		localEphemeralPub:   ephPub,
		remoteStatic:        remoteStatic,
		localStaticPriv:     localStatic,
		localStaticPub:      localStatic.PublicKey(),
		presharedKey:        psk,
		isInitiator:         true,
	}
	return hs, nil
}

// CreateInitiation runs the initiator side of §4.4 and produces the wire
// bytes of a Type 1 message, ready for MAC1/MAC2 to be stamped on by the
// caller's CookieState.
func (hs *HandshakeState) CreateInitiation(localIndex uint32) (*MessageInitiation, error) {
	hs.localIndex = localIndex
	hs.symmetric.mixHash(hs.localEphemeralPub[:])

	hs.symmetric.mixKeyOnly(hs.localEphemeralPub[:])

	dh1, err := x25519DH(hs.localEphemeralPriv, hs.remoteStatic)
	if err != nil {
		return nil, err
	}
	k1 := hs.symmetric.mixKey(dh1[:])
	encStatic := hs.symmetric.encryptAndHash(k1, hs.localStaticPub[:])

	dh2, err := x25519DH(hs.localStaticPriv, hs.remoteStatic)
	if err != nil {
		return nil, err
	}
	k2 := hs.symmetric.mixKey(dh2[:])
	ts := tai64n.Now()
	encTimestamp := hs.symmetric.encryptAndHash(k2, ts[:])

	m := &MessageInitiation{Sender: localIndex}
	copy(m.Ephemeral[:], hs.localEphemeralPub[:])
	copy(m.EncryptedStatic[:], encStatic)
	copy(m.EncryptedTimestamp[:], encTimestamp)
	return m, nil
}

// NewResponderHandshakeFromInitiation runs the responder side of §4.5 up
// through identifying and authenticating the initiator, returning the
// handshake state, the initiator's static public key (for peer lookup by
// the caller), and the decoded timestamp (for replay checking by the
// caller, which holds the per-peer lastReceivedTimestamp across attempts).
func NewResponderHandshakeFromInitiation(localStatic PrivateKey, msg *MessageInitiation, lookupPSK func(PublicKey) (PresharedKey, bool)) (*HandshakeState, tai64n.Timestamp, error) {
	localPub := localStatic.PublicKey()
	hs := &HandshakeState{
		symmetric:       newSymmetricState(localPub),
		localStaticPriv: localStatic,
		localStaticPub:  localPub,
		remoteIndex:     msg.Sender,
		isInitiator:     false,
	}
	copy(hs.remoteEphemeral[:], msg.Ephemeral[:])

	hs.symmetric.mixHash(hs.remoteEphemeral[:])
	hs.symmetric.mixKeyOnly(hs.remoteEphemeral[:])

	dh1, err := x25519DH(hs.localStaticPriv, hs.remoteEphemeral)
	if err != nil {
		return nil, tai64n.Timestamp{}, err
	}
	k1 := hs.symmetric.mixKey(dh1[:])
	staticPlain, err := hs.symmetric.decryptAndHash(k1, msg.EncryptedStatic[:])
	if err != nil {
		return nil, tai64n.Timestamp{}, err
	}
	copy(hs.remoteStatic[:], staticPlain)

	if psk, ok := lookupPSK(hs.remoteStatic); ok {
		hs.presharedKey = psk
	}

	dh2, err := x25519DH(hs.localStaticPriv, hs.remoteStatic)
	if err != nil {
		return nil, tai64n.Timestamp{}, err
	}
	k2 := hs.symmetric.mixKey(dh2[:])
	tsPlain, err := hs.symmetric.decryptAndHash(k2, msg.EncryptedTimestamp[:])
	if err != nil {
		return nil, tai64n.Timestamp{}, err
	}
	var ts tai64n.Timestamp
	copy(ts[:], tsPlain)

	return hs, ts, nil
}

// CreateResponse runs the remainder of the responder side of §4.5 and
// produces the wire bytes of a Type 2 message. It returns the final pair of
// transport keys (send, receive, from the responder's point of view).
func (hs *HandshakeState) CreateResponse(localIndex uint32) (*MessageResponse, [32]byte, [32]byte, error) {
	hs.localIndex = localIndex
	ephPriv, ephPub, err := GenerateKeypair()
	if err != nil {
		return nil, [32]byte{}, [32]byte{}, err
	}
	hs.localEphemeralPriv = ephPriv
	hs.localEphemeralPub = ephPub

	hs.symmetric.mixHash(ephPub[:])
	hs.symmetric.mixKeyOnly(ephPub[:])

	dh1, err := x25519DH(ephPriv, hs.remoteEphemeral)
	if err != nil {
		return nil, [32]byte{}, [32]byte{}, err
	}
	hs.symmetric.mixKeyOnly(dh1[:])

	dh2, err := x25519DH(ephPriv, hs.remoteStatic)
	if err != nil {
		return nil, [32]byte{}, [32]byte{}, err
	}
	hs.symmetric.mixKeyOnly(dh2[:])

	k := hs.symmetric.mixKeyAndHash(hs.presharedKey[:])
	encEmpty := hs.symmetric.encryptAndHash(k, nil)

	m := &MessageResponse{Sender: localIndex, Receiver: hs.remoteIndex}
	copy(m.Ephemeral[:], ephPub[:])
	copy(m.EncryptedEmpty[:], encEmpty)

	send, recv := hs.deriveTransportKeys()
	return m, send, recv, nil
}

// ConsumeResponse runs the initiator's half of receiving a Type 2 message
// (§4.4 continuation), returning the final transport key pair (send,
// receive, from the initiator's point of view).
func (hs *HandshakeState) ConsumeResponse(msg *MessageResponse) ([32]byte, [32]byte, error) {
	if !hs.isInitiator {
		return [32]byte{}, [32]byte{}, ErrWrongHandshakeState
	}
	hs.remoteIndex = msg.Sender
	copy(hs.remoteEphemeral[:], msg.Ephemeral[:])

	hs.symmetric.mixHash(hs.remoteEphemeral[:])
	hs.symmetric.mixKeyOnly(hs.remoteEphemeral[:])

	dh1, err := x25519DH(hs.localEphemeralPriv, hs.remoteEphemeral)
	if err != nil {
		return [32]byte{}, [32]byte{}, err
	}
	hs.symmetric.mixKeyOnly(dh1[:])

	dh2, err := x25519DH(hs.localStaticPriv, hs.remoteEphemeral)
	if err != nil {
		return [32]byte{}, [32]byte{}, err
	}
	hs.symmetric.mixKeyOnly(dh2[:])

	k := hs.symmetric.mixKeyAndHash(hs.presharedKey[:])
	if _, err := hs.symmetric.decryptAndHash(k, msg.EncryptedEmpty[:]); err != nil {
		return [32]byte{}, [32]byte{}, err
	}

	send, recv := hs.deriveTransportKeys()
	return send, recv, nil
}

// RemoteStatic returns the peer identity this handshake attempt is bound
// to — known from construction for an initiator, and recovered from the
// decrypted initiation for a responder — so a caller can look the peer up
// in its own registry.
func (hs *HandshakeState) RemoteStatic() PublicKey { return hs.remoteStatic }

// deriveTransportKeys runs the final KDF2 of §4.2/§4.5 over the (by-now
// empty) remaining input and assigns send/receive in the direction implied
// by which side of the handshake this state played.
func (hs *HandshakeState) deriveTransportKeys() (send, recv [32]byte) {
	k1, k2 := kdf2(hs.symmetric.chainingKey, nil)
	if hs.isInitiator {
		return k1, k2
	}
	return k2, k1
}

func RandomIndex() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// HandshakeRetryInterval is how long an initiator waits for a Type 2
// response before giving up and re-initiating, per REKEY_TIMEOUT (§4.8).
const HandshakeRetryInterval = RekeyTimeout * time.Second
