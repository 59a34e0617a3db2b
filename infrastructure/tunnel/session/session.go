package session

import (
	"sync"
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// Session is one transport keypair epoch for a peer (§3): the keys and
// counters produced by a single completed handshake, good for at most
// RejectAfterTime seconds or RejectAfterMessages packets, whichever comes
// first. A Peer holds up to three of these at once (current, previous,
// next) during a rekey overlap window (§4.8).
type Session struct {
	keys *noise.TransportKeypair

	establishedAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
}

// NewSession wraps a freshly derived transport keypair as a session epoch.
func NewSession(keys *noise.TransportKeypair) *Session {
	now := time.Now()
	return &Session{keys: keys, establishedAt: now, lastActivity: now}
}

func (s *Session) Keys() *noise.TransportKeypair { return s.keys }

func (s *Session) LocalIndex() uint32  { return s.keys.LocalIndex() }
func (s *Session) RemoteIndex() uint32 { return s.keys.RemoteIndex() }

// Touch records transport activity, used by the idle reaper and by the
// keepalive scheduler (§4.8's KEEPALIVE_TIMEOUT).
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// Expired reports whether this session has outlived REJECT_AFTER_TIME and
// must no longer be used for sending or receiving data (§4.8).
func (s *Session) Expired() bool {
	return time.Since(s.establishedAt) >= RejectAfterTime
}

// NeedsRekey reports whether this session has crossed REKEY_AFTER_TIME (as
// the initiator) or its message counter has crossed the proactive rekey
// threshold, and a fresh handshake should already be in flight.
func (s *Session) NeedsRekey() bool {
	return time.Since(s.establishedAt) >= RekeyAfterTime || s.keys.ExhaustedForRekey()
}

