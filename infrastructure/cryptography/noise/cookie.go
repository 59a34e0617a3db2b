package noise

import (
	"crypto/rand"
	"sync"
	"time"

	"golang.org/x/crypto/blake2s"
)

// cookieSecretRotation is how long a responder's cookie-issuing secret
// remains valid before it is replaced, per §4.7.
const cookieSecretRotation = CookieValidity * time.Second

// CookieChecker verifies MAC1/MAC2 on an incoming message and mints Type-3
// cookie replies when asked to. mac1 is keyed by the intended recipient's
// own static key (§4.7) — every party, whatever role it plays in a given
// handshake, constructs exactly one CookieChecker on its own identity and
// uses it to verify MAC1 on anything addressed to that identity, whether
// that's an initiation (responder verifying) or a response (initiator
// verifying).
type CookieChecker struct {
	mac1Key             [blake2s.Size]byte
	cookieEncryptionKey [32]byte

	secretLock  sync.RWMutex
	secret      [32]byte
	secretSetAt time.Time
}

func NewCookieChecker(myStatic PublicKey) *CookieChecker {
	return &CookieChecker{
		mac1Key:             DeriveMAC1Key(myStatic),
		cookieEncryptionKey: DeriveCookieEncryptionKey(myStatic),
	}
}

// DeriveMAC1Key and DeriveCookieEncryptionKey derive the two keys a
// CookieChecker computes over its owner's static key, for a caller that
// needs the same values for some OTHER identity — namely, whichever peer it
// is about to send a message to. MAC1 on a message is always keyed by its
// recipient's static key, never the sender's, so a CookieState stamping an
// outgoing message (initiation or response, regardless of the sender's
// role) calls DeriveMAC1Key(recipientStatic) to get the matching key.
func DeriveMAC1Key(recipientStatic PublicKey) [blake2s.Size]byte {
	return blakeHash([]byte(labelMAC1), recipientStatic[:])
}

func DeriveCookieEncryptionKey(recipientStatic PublicKey) [32]byte {
	return blakeHash([]byte(labelCookie), recipientStatic[:])
}

// CheckMAC1 verifies the always-present MAC1 field of an incoming message.
// msgMinusMACs is the message bytes up to (not including) the MAC1 field.
func (c *CookieChecker) CheckMAC1(msgMinusMACs []byte, mac1 [16]byte) bool {
	expected := keyedMAC16(c.mac1Key[:], msgMinusMACs)
	return expected == mac1
}

// CheckMAC2 verifies the MAC2 field against the cookie derived for src. It
// returns false (not an error) when no cookie has been issued recently
// enough to have been echoed back correctly; callers treat that the same as
// a failed MAC2.
func (c *CookieChecker) CheckMAC2(msgMinusMAC2 []byte, mac2 [16]byte, src []byte) bool {
	secret, ok := c.currentSecret()
	if !ok {
		return false
	}
	cookie := keyedMAC16(secret[:], src)
	expected := keyedMAC16(cookie[:], msgMinusMAC2)
	return expected == mac2
}

// CreateReply seals a fresh cookie for src, keyed off the offending packet's
// own MAC1 (used as AAD so the reply can only be consumed by the party that
// sent that exact initiation). It rotates the secret if the current one is
// older than cookieSecretRotation.
func (c *CookieChecker) CreateReply(src []byte, receiverIndex uint32, mac1 [16]byte) (*MessageCookieReply, error) {
	secret, err := c.rotatedSecret()
	if err != nil {
		return nil, err
	}
	cookie := keyedMAC16(secret[:], src)

	reply := &MessageCookieReply{Receiver: receiverIndex}
	if _, err := rand.Read(reply.Nonce[:]); err != nil {
		return nil, err
	}
	sealed := xaeadSeal(c.cookieEncryptionKey, reply.Nonce, cookie[:], mac1[:])
	copy(reply.EncryptedCookie[:], sealed)
	return reply, nil
}

func (c *CookieChecker) currentSecret() ([32]byte, bool) {
	c.secretLock.RLock()
	defer c.secretLock.RUnlock()
	if c.secretSetAt.IsZero() {
		return [32]byte{}, false
	}
	return c.secret, true
}

func (c *CookieChecker) rotatedSecret() ([32]byte, error) {
	c.secretLock.Lock()
	defer c.secretLock.Unlock()
	if c.secretSetAt.IsZero() || time.Since(c.secretSetAt) > cookieSecretRotation {
		if _, err := rand.Read(c.secret[:]); err != nil {
			return [32]byte{}, err
		}
		c.secretSetAt = time.Now()
	}
	return c.secret, nil
}

// CookieState is the per-remote-peer counterpart to CookieChecker: a sender
// keeps one of these for each peer it talks to, caching the most recent
// cookie received from that peer so subsequent outgoing messages can
// populate MAC2, and remembering the MAC1 it last sent to that peer so an
// incoming cookie reply can be authenticated against it. Either role may
// hold one, keyed on whichever peer is on the receiving end.
type CookieState struct {
	mu sync.Mutex

	haveCookie bool
	cookie     [cookieSize]byte
	receivedAt time.Time

	lastMAC1     [16]byte
	haveLastMAC1 bool
}

// ConsumeReply decrypts an incoming cookie reply. aad must be the MAC1 field
// of the initiation this reply answers — the initiator is required to keep
// that value around until the reply arrives or the retry timeout expires.
func (cs *CookieState) ConsumeReply(reply *MessageCookieReply, encryptionKey [32]byte, aad [16]byte) error {
	plain, err := xaeadOpen(encryptionKey, reply.Nonce, reply.EncryptedCookie[:], aad[:])
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	copy(cs.cookie[:], plain)
	cs.haveCookie = true
	cs.receivedAt = time.Now()
	return nil
}

// AddMacs computes and appends MAC1 (always) and, when a fresh cookie is
// cached, MAC2 to msgMinusMACs, returning both values for embedding in the
// outgoing message.
func (cs *CookieState) AddMacs(msgMinusMACs []byte, mac1Key [blake2s.Size]byte) (mac1, mac2 [16]byte) {
	mac1 = keyedMAC16(mac1Key[:], msgMinusMACs)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastMAC1 = mac1
	cs.haveLastMAC1 = true

	if cs.haveCookie && time.Since(cs.receivedAt) < cookieSecretRotation {
		withMAC1 := append(append([]byte{}, msgMinusMACs...), mac1[:]...)
		mac2 = keyedMAC16(cs.cookie[:], withMAC1)
	}
	return mac1, mac2
}

func (cs *CookieState) LastMAC1() ([16]byte, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.lastMAC1, cs.haveLastMAC1
}
