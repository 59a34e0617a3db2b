package noise

// Fixed ASCII byte sequences from the Noise_IKpsk2_25519_ChaChaPoly_BLAKE2s
// specification. These are wire-protocol constants; changing a single byte
// produces a wire-incompatible peer.
const (
	noiseConstruction = "Noise_IKpsk2_25519_ChaChaPoly_BLAKE2s"
	wgIdentifier       = "WireGuard v1 zx2c4 Jason@zx2c4.com"
	labelMAC1          = "mac1----"
	labelCookie        = "cookie--"
)

// Message type tags, little-endian uint32 in the first four bytes of every
// wire message.
const (
	MessageInitiationType  uint32 = 1
	MessageResponseType    uint32 = 2
	MessageCookieReplyType uint32 = 3
	MessageTransportType   uint32 = 4
)

// Fixed wire sizes per §4.3.
const (
	MessageInitiationSize = 148
	MessageResponseSize   = 92
	MessageCookieReplySize = 64
	MessageTransportHeaderSize = 16 // type|reserved(3) + receiver(4) + counter(8)
	MessageTransportMinSize    = MessageTransportHeaderSize + chachaPolyTagSize
)

const (
	noisePublicKeySize  = 32
	noisePrivateKeySize = 32
	cookieSize          = 16
	cookieNonceSize      = 24 // XChaCha20-Poly1305
	chachaPolyTagSize    = 16
	tai64nSize           = 12
)

// Session lifecycle constants, §4.8.
const (
	RekeyAfterTime   = 120 // seconds
	RejectAfterTime  = 180 // seconds
	RekeyTimeout     = 5   // seconds
	KeepaliveTimeout = 10  // seconds
	CookieValidity   = 120 // seconds

	// RejectAfterMessages is the point at which a session's counter is
	// considered exhausted and must not be used again.
	RejectAfterMessages = ^uint64(0) - (1 << 13) - 1

	// rekeyAfterMessages triggers a proactive rekey once the sending counter
	// is within 1000 of RejectAfterMessages.
	rekeyAfterMessages = RejectAfterMessages - 1000
)

// ReplayWindowSize is the width, in bits, of the sliding replay-window filter.
const ReplayWindowSize = 128
