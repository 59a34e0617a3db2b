package noise

import "errors"

// Sentinel errors for the handshake and transport paths. Per-packet failures
// of these kinds are never surfaced past the event loop; callers log and drop.
var (
	ErrShortMessage      = errors.New("noise: message shorter than its wire type")
	ErrWrongMessageType  = errors.New("noise: unexpected message type byte")
	ErrMAC1Mismatch      = errors.New("noise: mac1 verification failed")
	ErrCookieRequired    = errors.New("noise: responder under load, cookie required")
	ErrDecryptionFailed  = errors.New("noise: AEAD open failed")
	ErrZeroDHResult      = errors.New("noise: X25519 produced an all-zero shared secret")
	ErrUnknownPeer       = errors.New("noise: static key does not match a registered peer")
	ErrReplayedHandshake = errors.New("noise: initiation timestamp not newer than last accepted")
	ErrNoCookie          = errors.New("noise: no cached cookie to verify cookie reply against")
	ErrWrongHandshakeState = errors.New("noise: handshake message received out of order")
)
