// Package engine binds the Noise IKpsk2 handshake engine, the transport
// AEAD path and the peer dispatch fabric (infrastructure/cryptography/noise
// and infrastructure/tunnel/session) to a bound UDP socket and an opened
// virtual-interface handle, implementing the single reactor loop described
// by §4.10: one goroutine reading the socket, one reading the interface,
// and a ticker-driven maintenance loop for handshake retry, rekey and
// keepalive timers. Construction and teardown of the socket and the
// interface device itself stay the caller's responsibility (§1); this
// package only ever receives them already open.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.zx2c4.com/wireguard/tai64n"

	appip "noisevpn/application/network/ip"
	"noisevpn/application/network/tun"
	concreteip "noisevpn/infrastructure/network/ip"

	"noisevpn/infrastructure/cryptography/noise"
	"noisevpn/infrastructure/telemetry/trafficstats"
	"noisevpn/infrastructure/tunnel/session"
)

// Role distinguishes which half of the IKpsk2 pattern this Engine plays.
// A single Engine instance plays exactly one role for its lifetime, per §1.
type Role int

const (
	RoleResponder Role = iota
	RoleInitiator
)

// pendingHandshake tracks one in-flight initiator attempt, keyed by the
// local session index embedded in the Type 1 message sent for it.
type pendingHandshake struct {
	localIndex uint32
	hs         *noise.HandshakeState
	peer       *session.Peer
	sentAt     time.Time
}

// Engine is a running instance of the wire-engine core for one role. Build
// one with NewServer or NewClient and drive it with Run.
type Engine struct {
	role   Role
	conn   *net.UDPConn
	tunDev tun.Device
	repo   session.Repository

	privateKey noise.PrivateKey
	publicKey  noise.PublicKey
	mtu        int
	localAddr  netip.Addr

	myCookieChecker *noise.CookieChecker
	loadMonitor     *noise.LoadMonitor

	headerParser appip.HeaderParser

	events *eventBus
	logger session.Logger

	mu            sync.Mutex
	pending       map[uint32]*pendingHandshake
	cookieStates  map[noise.PublicKey]*noise.CookieState
	lastTimestamp map[noise.PublicKey][12]byte

	// initiatorPeer is the single configured remote peer when role ==
	// RoleInitiator; a responder instead dispatches across every peer in
	// repo by static key, session index or allowed IP.
	initiatorPeer *session.Peer
}

// nopLogger discards everything; used when a caller passes a nil logger.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func newBaseEngine(cfg *Config, conn *net.UDPConn, tunDev tun.Device, logger session.Logger) *Engine {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Engine{
		conn:          conn,
		tunDev:        tunDev,
		repo:          session.NewConcurrentRepository(session.NewDefaultRepository()),
		privateKey:    cfg.PrivateKey,
		publicKey:     cfg.PrivateKey.PublicKey(),
		mtu:           cfg.MTU,
		localAddr:     cfg.Address.Addr(),
		headerParser:  concreteip.NewHeaderParser(),
		events:        newEventBus(64),
		logger:        logger,
		pending:       make(map[uint32]*pendingHandshake),
		cookieStates:  make(map[noise.PublicKey]*noise.CookieState),
		lastTimestamp: make(map[noise.PublicKey][12]byte),
	}
}

// NewServer builds a responder-role Engine with one registered Peer per
// configured [Peer] section.
func NewServer(cfg *Config, conn *net.UDPConn, tunDev tun.Device, logger session.Logger) (*Engine, error) {
	e := newBaseEngine(cfg, conn, tunDev, logger)
	e.role = RoleResponder
	e.myCookieChecker = noise.NewCookieChecker(e.publicKey)
	e.loadMonitor = noise.NewLoadMonitor(noise.DefaultLoadThreshold)

	for _, pc := range cfg.Peers {
		p := session.NewPeer(pc.PublicKey, pc.PresharedKey, pc.AllowedIPs)
		if pc.Endpoint.IsValid() {
			p.SetEndpoint(pc.Endpoint)
		}
		e.repo.AddPeer(p)
		e.events.emit(PeerAdded, pc.PublicKey)
	}
	return e, nil
}

// NewClient builds an initiator-role Engine for exactly one configured peer.
func NewClient(cfg *Config, conn *net.UDPConn, tunDev tun.Device, logger session.Logger) (*Engine, error) {
	if len(cfg.Peers) != 1 {
		return nil, fmt.Errorf("engine: client role requires exactly one configured peer, got %d", len(cfg.Peers))
	}
	e := newBaseEngine(cfg, conn, tunDev, logger)
	e.role = RoleInitiator
	e.myCookieChecker = noise.NewCookieChecker(e.publicKey)

	pc := cfg.Peers[0]
	p := session.NewPeer(pc.PublicKey, pc.PresharedKey, pc.AllowedIPs)
	if pc.Endpoint.IsValid() {
		p.SetEndpoint(pc.Endpoint)
	}
	e.repo.AddPeer(p)
	e.initiatorPeer = p
	e.events.emit(PeerAdded, pc.PublicKey)
	return e, nil
}

// Run drives the engine's UDP loop, interface loop, idle reaper and
// handshake/rekey/keepalive maintenance timer until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.events.out)

	if e.role == RoleInitiator {
		e.beginHandshake(e.initiatorPeer)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- e.udpLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- e.tunLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.maintenanceLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		session.RunIdleReaperLoop(ctx, e.repo, session.RejectAfterTime, time.Second, e.logger)
	}()

	<-ctx.Done()
	_ = e.conn.Close()
	_ = e.tunDev.Close()
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return ctx.Err()
}

func (e *Engine) udpLoop(ctx context.Context) error {
	buf := make([]byte, e.mtu+2048)
	for {
		n, from, err := e.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("engine: udp read: %w", err)
		}
		trafficstats.AddRX(n)
		pkt := append([]byte(nil), buf[:n]...)
		e.handleUDPPacket(pkt, from)
	}
}

func (e *Engine) tunLoop(ctx context.Context) error {
	buf := make([]byte, e.mtu+64)
	for {
		n, err := e.tunDev.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("engine: tun read: %w", err)
		}
		if n == 0 {
			continue
		}
		pkt := append([]byte(nil), buf[:n]...)
		e.handleTunPacket(pkt)
	}
}

func (e *Engine) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	if e.role == RoleInitiator {
		e.maybeBeginHandshake(e.initiatorPeer)
		e.maybeRekey(e.initiatorPeer)
	}
	e.maybeRetryPending()
	e.maybeKeepalive()
}

// handleUDPPacket type-dispatches an inbound datagram per §4.3/§6.1.
func (e *Engine) handleUDPPacket(pkt []byte, from netip.AddrPort) {
	typ, err := noise.PeekType(pkt)
	if err != nil {
		return
	}
	switch typ {
	case noise.MessageInitiationType:
		if e.role == RoleResponder {
			e.handleInitiation(pkt, from)
		}
	case noise.MessageResponseType:
		if e.role == RoleInitiator {
			e.handleResponse(pkt, from)
		}
	case noise.MessageCookieReplyType:
		e.handleCookieReply(pkt)
	case noise.MessageTransportType:
		e.handleTransport(pkt, from)
	}
}

func (e *Engine) handleInitiation(pkt []byte, from netip.AddrPort) {
	if len(pkt) != noise.MessageInitiationSize {
		return
	}
	e.loadMonitor.RecordHandshake()

	msg, err := noise.UnmarshalInitiation(pkt)
	if err != nil {
		return
	}
	if !e.myCookieChecker.CheckMAC1(pkt[:noise.MessageInitiationSize-32], msg.MAC1) {
		return
	}

	if e.loadMonitor.UnderLoad() {
		src := addrBytes(from)
		if !e.myCookieChecker.CheckMAC2(pkt[:noise.MessageInitiationSize-16], msg.MAC2, src) {
			reply, err := e.myCookieChecker.CreateReply(src, msg.Sender, msg.MAC1)
			if err == nil {
				e.sendRaw(noise.MarshalCookieReply(reply), from)
			}
			return
		}
	}

	hs, ts, err := noise.NewResponderHandshakeFromInitiation(e.privateKey, msg, func(pk noise.PublicKey) (noise.PresharedKey, bool) {
		p, err := e.repo.GetByStaticKey(pk)
		if err != nil {
			return noise.PresharedKey{}, false
		}
		return p.PresharedKey(), true
	})
	if err != nil {
		return
	}

	peer, err := e.repo.GetByStaticKey(hs.RemoteStatic())
	if err != nil {
		return
	}
	if !e.checkFreshTimestamp(peer.RemoteStatic(), ts) {
		return
	}

	localIndex, err := e.freshIndex()
	if err != nil {
		e.logger.Printf("engine: allocate session index: %v", err)
		return
	}

	resp, send, recv, err := hs.CreateResponse(localIndex)
	if err != nil {
		e.logger.Printf("engine: create response: %v", err)
		return
	}

	kp := noise.NewTransportKeypair(send, recv, localIndex, resp.Receiver)
	peer.SetEndpoint(from)
	peer.InstallAsResponder(session.NewSession(kp))
	e.repo.RegisterIndex(localIndex, peer)
	e.events.emit(PeerConnected, peer.RemoteStatic())

	wire := e.stampMACs(noise.MarshalResponse(resp), noise.MessageResponseSize, peer)
	e.sendRaw(wire, from)
}

func (e *Engine) handleResponse(pkt []byte, from netip.AddrPort) {
	if len(pkt) != noise.MessageResponseSize {
		return
	}
	msg, err := noise.UnmarshalResponse(pkt)
	if err != nil {
		return
	}
	if !e.myCookieChecker.CheckMAC1(pkt[:noise.MessageResponseSize-32], msg.MAC1) {
		return
	}

	e.mu.Lock()
	pend, ok := e.pending[msg.Receiver]
	if ok {
		delete(e.pending, msg.Receiver)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	send, recv, err := pend.hs.ConsumeResponse(msg)
	if err != nil {
		return
	}

	kp := noise.NewTransportKeypair(send, recv, pend.localIndex, msg.Sender)
	pend.peer.SetEndpoint(from)
	pend.peer.InstallAsInitiator(session.NewSession(kp))
	e.events.emit(PeerConnected, pend.peer.RemoteStatic())
}

func (e *Engine) handleCookieReply(pkt []byte) {
	if len(pkt) != noise.MessageCookieReplySize {
		return
	}
	msg, err := noise.UnmarshalCookieReply(pkt)
	if err != nil {
		return
	}

	e.mu.Lock()
	pend, ok := e.pending[msg.Receiver]
	e.mu.Unlock()
	if !ok {
		return
	}

	cs := e.cookieStateFor(pend.peer)
	mac1, ok := cs.LastMAC1()
	if !ok {
		return
	}
	encKey := noise.DeriveCookieEncryptionKey(pend.peer.RemoteStatic())
	if err := cs.ConsumeReply(msg, encKey, mac1); err != nil {
		e.logger.Printf("engine: cookie reply: %v", err)
	}
}

func (e *Engine) handleTransport(pkt []byte, from netip.AddrPort) {
	hdr, content, err := noise.UnmarshalTransport(pkt)
	if err != nil {
		return
	}

	peer, err := e.repo.GetByIndex(hdr.Receiver)
	if err != nil {
		return
	}
	s := peer.SessionByIndex(hdr.Receiver)
	if s == nil {
		return
	}

	plain, err := s.Keys().Open(hdr, content)
	if err != nil {
		return
	}

	peer.SetEndpoint(from)
	s.Touch()
	if idx, ok := peer.NextIndex(); ok && idx == hdr.Receiver {
		peer.PromoteNext()
	}

	if len(plain) == 0 {
		return // keepalive: activity recorded, nothing to deliver
	}
	if _, err := e.tunDev.Write(plain); err != nil {
		e.logger.Printf("engine: tun write: %v", err)
	}
}

// handleTunPacket reads one IP packet off the virtual interface, finds its
// owning peer by allowed-IP longest-prefix match, and transport-encrypts it
// to that peer's current session (§6.4 outbound dispatch).
func (e *Engine) handleTunPacket(pkt []byte) {
	dst, err := e.headerParser.DestinationAddress(pkt)
	if err != nil {
		return
	}
	peer, err := e.repo.GetByAllowedIP(dst)
	if err != nil {
		e.replyUnreachable(pkt)
		return
	}

	s := peer.Current()
	if s == nil {
		if e.role == RoleInitiator {
			e.maybeBeginHandshake(peer)
		}
		return
	}

	ep := peer.Endpoint()
	if !ep.IsValid() {
		return
	}
	wire, err := s.Keys().Seal(pkt)
	if err != nil {
		if s.NeedsRekey() && e.role == RoleInitiator {
			e.maybeRekey(peer)
		}
		return
	}
	e.sendRaw(wire, ep)
	s.Touch()
}

// replyUnreachable sends an ICMPv4 Destination Host Unreachable back onto
// the interface when an outbound packet matches no configured peer, so a
// misconfigured route fails fast instead of silently vanishing. IPv6
// packets and packets with no usable source address are dropped without a
// reply, since the tunnel's own address may not have been assigned an IPv6
// address.
func (e *Engine) replyUnreachable(pkt []byte) {
	if !e.localAddr.IsValid() || !e.localAddr.Is4() {
		return
	}
	origSrc, ok := concreteip.ExtractSourceIP(pkt)
	if !ok || !origSrc.Is4() {
		return
	}
	reply, err := concreteip.BuildICMPv4Unreachable(e.localAddr, origSrc, pkt)
	if err != nil {
		return
	}
	if _, err := e.tunDev.Write(reply); err != nil {
		e.logger.Printf("engine: tun write (unreachable): %v", err)
	}
}

func (e *Engine) beginHandshake(peer *session.Peer) {
	hs, err := noise.NewInitiatorHandshake(e.privateKey, peer.RemoteStatic(), peer.PresharedKey())
	if err != nil {
		e.logger.Printf("engine: begin handshake: %v", err)
		return
	}
	localIndex, err := e.freshIndex()
	if err != nil {
		e.logger.Printf("engine: begin handshake: %v", err)
		return
	}
	msg, err := hs.CreateInitiation(localIndex)
	if err != nil {
		e.logger.Printf("engine: create initiation: %v", err)
		return
	}

	wire := e.stampMACs(noise.MarshalInitiation(msg), noise.MessageInitiationSize, peer)

	e.mu.Lock()
	e.pending[localIndex] = &pendingHandshake{localIndex: localIndex, hs: hs, peer: peer, sentAt: time.Now()}
	e.mu.Unlock()
	e.repo.RegisterIndex(localIndex, peer)

	ep := peer.Endpoint()
	if !ep.IsValid() {
		return
	}
	e.sendRaw(wire, ep)
}

func (e *Engine) maybeBeginHandshake(peer *session.Peer) {
	if peer.Current() != nil {
		return
	}
	if e.hasPendingFor(peer) {
		return
	}
	e.beginHandshake(peer)
}

func (e *Engine) maybeRekey(peer *session.Peer) {
	s := peer.Current()
	if s == nil || !s.NeedsRekey() {
		return
	}
	if e.hasPendingFor(peer) {
		return
	}
	e.beginHandshake(peer)
}

func (e *Engine) hasPendingFor(peer *session.Peer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pending {
		if p.peer == peer {
			return true
		}
	}
	return false
}

func (e *Engine) maybeRetryPending() {
	e.mu.Lock()
	var stale []*pendingHandshake
	for idx, p := range e.pending {
		if time.Since(p.sentAt) > noise.HandshakeRetryInterval {
			stale = append(stale, p)
			delete(e.pending, idx)
		}
	}
	e.mu.Unlock()
	for _, p := range stale {
		e.repo.UnregisterIndex(p.localIndex)
		e.beginHandshake(p.peer)
	}
}

// maybeKeepalive sends an empty transport message on an idle current
// session to keep NAT state alive. Only the initiator drives this timer in
// this implementation, matching the common client-behind-NAT deployment
// this engine targets.
func (e *Engine) maybeKeepalive() {
	if e.role != RoleInitiator {
		return
	}
	peer := e.initiatorPeer
	s := peer.Current()
	if s == nil || s.IdleFor() < session.KeepaliveTimeout {
		return
	}
	ep := peer.Endpoint()
	if !ep.IsValid() {
		return
	}
	wire, err := s.Keys().Seal(nil)
	if err != nil {
		return
	}
	e.sendRaw(wire, ep)
	s.Touch()
}

func (e *Engine) freshIndex() (uint32, error) {
	for i := 0; i < 8; i++ {
		idx, err := noise.RandomIndex()
		if err != nil {
			return 0, err
		}
		if _, err := e.repo.GetByIndex(idx); errors.Is(err, session.ErrNotFound) {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("engine: could not allocate a unique session index")
}

func (e *Engine) cookieStateFor(peer *session.Peer) *noise.CookieState {
	key := peer.RemoteStatic()
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.cookieStates[key]
	if !ok {
		cs = &noise.CookieState{}
		e.cookieStates[key] = cs
	}
	return cs
}

// stampMACs appends MAC1 (and MAC2, if a cookie is cached for peer) to a
// just-marshaled initiation or response message, keyed by peer's static
// identity — the intended recipient's key, per §4.7, regardless of whether
// peer is the far end of an initiation we're sending or a response we're
// sending back.
func (e *Engine) stampMACs(wire []byte, size int, peer *session.Peer) []byte {
	cs := e.cookieStateFor(peer)
	mac1Key := noise.DeriveMAC1Key(peer.RemoteStatic())
	mac1, mac2 := cs.AddMacs(wire[:size-32], mac1Key)
	copy(wire[size-32:size-16], mac1[:])
	copy(wire[size-16:], mac2[:])
	return wire
}

func (e *Engine) checkFreshTimestamp(remote noise.PublicKey, ts tai64n.Timestamp) bool {
	raw := [12]byte(ts)
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.lastTimestamp[remote]; ok && bytes.Compare(raw[:], prev[:]) <= 0 {
		return false
	}
	e.lastTimestamp[remote] = raw
	return true
}

func (e *Engine) sendRaw(wire []byte, to netip.AddrPort) {
	if _, err := e.conn.WriteToUDPAddrPort(wire, to); err != nil {
		e.logger.Printf("engine: udp write: %v", err)
		return
	}
	trafficstats.AddTX(len(wire))
}

func addrBytes(ap netip.AddrPort) []byte {
	a := ap.Addr().Unmap()
	return append(a.AsSlice(), byte(ap.Port()>>8), byte(ap.Port()))
}
