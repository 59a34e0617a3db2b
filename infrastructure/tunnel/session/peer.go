package session

import (
	"net/netip"
	"sync"
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// Peer is a configured remote endpoint of the tunnel (§3): a static identity
// plus the allowed-IP set it may originate traffic from, its last known
// UDP endpoint, and up to three live Session epochs (current, previous,
// next) spanning a rekey overlap.
type Peer struct {
	remoteStatic noise.PublicKey
	presharedKey noise.PresharedKey

	// allowedAddrs are single-host (/32, /128) allowed-IP entries for O(1)
	// lookup; allowedSubnets holds the rest in configuration order.
	allowedAddrs   map[netip.Addr]struct{}
	allowedSubnets []netip.Prefix

	mu       sync.RWMutex
	endpoint netip.AddrPort

	current  *Session
	previous *Session
	next     *Session

	lastHandshake time.Time
}

func NewPeer(remoteStatic noise.PublicKey, psk noise.PresharedKey, allowedIPs []netip.Prefix) *Peer {
	addrs := make(map[netip.Addr]struct{})
	var subnets []netip.Prefix
	for _, p := range allowedIPs {
		if p.IsSingleIP() {
			addrs[p.Addr().Unmap()] = struct{}{}
		} else {
			subnets = append(subnets, netip.PrefixFrom(p.Addr().Unmap(), p.Bits()))
		}
	}
	return &Peer{
		remoteStatic:   remoteStatic,
		presharedKey:   psk,
		allowedAddrs:   addrs,
		allowedSubnets: subnets,
	}
}

func (p *Peer) RemoteStatic() noise.PublicKey   { return p.remoteStatic }
func (p *Peer) PresharedKey() noise.PresharedKey { return p.presharedKey }

func (p *Peer) Endpoint() netip.AddrPort {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint
}

// SetEndpoint implements endpoint roaming (§6.5): the responder updates a
// peer's endpoint to the source address of the most recent authenticated
// packet received from it, regardless of what address was configured.
func (p *Peer) SetEndpoint(ep netip.AddrPort) {
	p.mu.Lock()
	p.endpoint = ep
	p.mu.Unlock()
}

// IsSourceAllowed reports whether srcIP is within this peer's allowed-IP set.
func (p *Peer) IsSourceAllowed(srcIP netip.Addr) bool {
	src := srcIP.Unmap()
	if _, ok := p.allowedAddrs[src]; ok {
		return true
	}
	for _, prefix := range p.allowedSubnets {
		if prefix.Contains(src) {
			return true
		}
	}
	return false
}

// AllowedIPs returns the configured allowed-IP prefixes, single hosts first.
func (p *Peer) AllowedIPs() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(p.allowedAddrs)+len(p.allowedSubnets))
	for a := range p.allowedAddrs {
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	out = append(out, p.allowedSubnets...)
	return out
}

func (p *Peer) LastHandshake() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastHandshake
}

// Current returns the session epoch that should be used for sending data,
// promoting next to current first if current is absent or expired and next
// is still usable.
func (p *Peer) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if (p.current == nil || p.current.Expired()) && p.next != nil && !p.next.Expired() {
		p.current = p.next
		p.next = nil
	}
	if p.current == nil || p.current.Expired() {
		return nil
	}
	return p.current
}

// NextIndex reports the local session index of a staged (not yet promoted)
// next session, if one exists, so a caller can tell whether an inbound
// packet decrypted successfully under it should trigger PromoteNext.
func (p *Peer) NextIndex() (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.next == nil {
		return 0, false
	}
	return p.next.LocalIndex(), true
}

// SessionByIndex returns whichever of current/previous/next carries the
// given local session index, for routing an inbound Type 4 message.
func (p *Peer) SessionByIndex(localIndex uint32) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range [...]*Session{p.current, p.previous, p.next} {
		if s != nil && s.LocalIndex() == localIndex {
			return s
		}
	}
	return nil
}

// InstallAsInitiator stages a freshly completed handshake's session into
// next, matching real WireGuard's initiator-side rekey-overlap bookkeeping:
// the brand new session becomes current only once the responder has
// demonstrably received it (first packet decrypted under it), signaled by
// the caller via PromoteNext. Until then the existing current keeps serving
// outbound traffic.
func (p *Peer) InstallAsInitiator(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = s
	p.lastHandshake = time.Now()
}

// PromoteNext moves a staged next session into current, called once the
// initiator has confirmed (by successfully decrypting a packet under it)
// that the responder has adopted the new session.
func (p *Peer) PromoteNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next == nil {
		return
	}
	p.previous = p.current
	p.current = p.next
	p.next = nil
}

// InstallAsResponder installs a freshly completed handshake's session
// directly as current: a responder has no ambiguity about whether its
// peer has the key, since it only derives it after successfully decrypting
// the initiation (§4.5, Peer.BeginSymmetricSession in real wireguard-go).
func (p *Peer) InstallAsResponder(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.previous = p.current
	p.current = s
	p.lastHandshake = time.Now()
}

// ReapIdleSessions drops session epochs that have exceeded timeout since
// their last transport activity, returning the count removed.
func (p *Peer) ReapIdleSessions(timeout time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, slot := range []**Session{&p.current, &p.previous, &p.next} {
		if *slot != nil && ((*slot).Expired() || (*slot).IdleFor() > timeout) {
			*slot = nil
			n++
		}
	}
	return n
}

// Indices returns the local session indices currently registered for this
// peer, for removal from the registry's index table.
func (p *Peer) Indices() []uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []uint32
	for _, s := range [...]*Session{p.current, p.previous, p.next} {
		if s != nil {
			out = append(out, s.LocalIndex())
		}
	}
	return out
}
