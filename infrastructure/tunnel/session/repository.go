package session

import (
	"net/netip"
	"sync"
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// Repository is the peer dispatch fabric (§3, §6.4): it answers the three
// lookups the engine's hot paths need — by static identity (to start or
// resume a handshake), by local session index (to route an inbound Type 4
// message), and by destination IP (longest-prefix allowed-IP match, to route an
// outbound packet read off the virtual interface to the right peer).
type Repository interface {
	AddPeer(p *Peer)
	RemovePeer(remoteStatic noise.PublicKey)
	GetByStaticKey(remoteStatic noise.PublicKey) (*Peer, error)

	RegisterIndex(localIndex uint32, p *Peer)
	UnregisterIndex(localIndex uint32)
	GetByIndex(localIndex uint32) (*Peer, error)

	GetByAllowedIP(dst netip.Addr) (*Peer, error)

	// ReapIdle drops idle session epochs across all peers, returning the
	// count removed. Satisfies IdleReaper for RunIdleReaperLoop.
	ReapIdle(timeout time.Duration) int

	// TerminateByPubKey removes a peer and all of its session indices.
	// Satisfies RepositoryWithRevocation for CompositeSessionRevoker.
	TerminateByPubKey(pubKey []byte) int
}

// IdleReaper is implemented by anything RunIdleReaperLoop can drive.
type IdleReaper interface {
	ReapIdle(timeout time.Duration) int
}

// RepositoryWithRevocation is implemented by anything CompositeSessionRevoker
// can terminate peers on.
type RepositoryWithRevocation interface {
	TerminateByPubKey(pubKey []byte) int
}

type DefaultRepository struct {
	mu sync.RWMutex

	byStaticKey map[noise.PublicKey]*Peer
	byIndex     map[uint32]*Peer

	// allowedIPOrder lists peers in insertion order; longest-prefix match is
	// resolved by scanning and keeping the longest Bits() match, matching
	// the small-N linear-scan idiom used elsewhere in this codebase for
	// allowed-IP checks rather than a dedicated trie.
	allowedIPOrder []*Peer
}

func NewDefaultRepository() *DefaultRepository {
	return &DefaultRepository{
		byStaticKey: make(map[noise.PublicKey]*Peer),
		byIndex:     make(map[uint32]*Peer),
	}
}

func (r *DefaultRepository) AddPeer(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStaticKey[p.RemoteStatic()] = p
	r.allowedIPOrder = append(r.allowedIPOrder, p)
}

func (r *DefaultRepository) RemovePeer(remoteStatic noise.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byStaticKey[remoteStatic]
	if !ok {
		return
	}
	delete(r.byStaticKey, remoteStatic)
	for _, idx := range p.Indices() {
		delete(r.byIndex, idx)
	}
	for i, candidate := range r.allowedIPOrder {
		if candidate == p {
			r.allowedIPOrder = append(r.allowedIPOrder[:i], r.allowedIPOrder[i+1:]...)
			break
		}
	}
}

func (r *DefaultRepository) GetByStaticKey(remoteStatic noise.PublicKey) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byStaticKey[remoteStatic]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *DefaultRepository) RegisterIndex(localIndex uint32, p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIndex[localIndex] = p
}

func (r *DefaultRepository) UnregisterIndex(localIndex uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byIndex, localIndex)
}

func (r *DefaultRepository) GetByIndex(localIndex uint32) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byIndex[localIndex]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetByAllowedIP performs a longest-prefix match of dst against every
// peer's allowed-IP set (§6.4). A single-host match always wins over a
// subnet match of lesser specificity.
func (r *DefaultRepository) GetByAllowedIP(dst netip.Addr) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dst = dst.Unmap()

	var best *Peer
	bestBits := -1
	for _, p := range r.allowedIPOrder {
		if _, ok := p.allowedAddrs[dst]; ok {
			return p, nil
		}
		for _, prefix := range p.allowedSubnets {
			if prefix.Contains(dst) && prefix.Bits() > bestBits {
				best = p
				bestBits = prefix.Bits()
			}
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (r *DefaultRepository) ReapIdle(timeout time.Duration) int {
	r.mu.RLock()
	peers := make([]*Peer, len(r.allowedIPOrder))
	copy(peers, r.allowedIPOrder)
	r.mu.RUnlock()

	total := 0
	for _, p := range peers {
		total += p.ReapIdleSessions(timeout)
	}
	return total
}

func (r *DefaultRepository) TerminateByPubKey(pubKey []byte) int {
	var key noise.PublicKey
	if len(pubKey) != len(key) {
		return 0
	}
	copy(key[:], pubKey)

	r.mu.RLock()
	p, ok := r.byStaticKey[key]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	n := len(p.Indices())
	r.RemovePeer(key)
	return n
}
