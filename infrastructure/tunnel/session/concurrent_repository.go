package session

import (
	"net/netip"
	"sync"
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// ConcurrentRepository adds its own locking layer around an arbitrary
// Repository. DefaultRepository already serializes its own state, so this
// is only needed when composing a Repository implementation that doesn't.
type ConcurrentRepository struct {
	mu      sync.RWMutex
	manager Repository
}

func NewConcurrentRepository(manager Repository) Repository {
	return &ConcurrentRepository{manager: manager}
}

func (c *ConcurrentRepository) AddPeer(p *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.AddPeer(p)
}

func (c *ConcurrentRepository) RemovePeer(remoteStatic noise.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.RemovePeer(remoteStatic)
}

func (c *ConcurrentRepository) GetByStaticKey(remoteStatic noise.PublicKey) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.GetByStaticKey(remoteStatic)
}

func (c *ConcurrentRepository) RegisterIndex(localIndex uint32, p *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.RegisterIndex(localIndex, p)
}

func (c *ConcurrentRepository) UnregisterIndex(localIndex uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.UnregisterIndex(localIndex)
}

func (c *ConcurrentRepository) GetByIndex(localIndex uint32) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.GetByIndex(localIndex)
}

func (c *ConcurrentRepository) GetByAllowedIP(dst netip.Addr) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager.GetByAllowedIP(dst)
}

func (c *ConcurrentRepository) ReapIdle(timeout time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.ReapIdle(timeout)
}

func (c *ConcurrentRepository) TerminateByPubKey(pubKey []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.TerminateByPubKey(pubKey)
}
