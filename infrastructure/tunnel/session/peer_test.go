package session

import (
	"net/netip"
	"testing"

	"noisevpn/infrastructure/cryptography/noise"
)

func TestPeerIsSourceAllowedSingleHostAndSubnet(t *testing.T) {
	p := testPeer(t, "10.0.0.1/32", "192.168.0.0/24")

	if !p.IsSourceAllowed(netip.MustParseAddr("10.0.0.1")) {
		t.Fatal("expected single-host entry to match")
	}
	if !p.IsSourceAllowed(netip.MustParseAddr("192.168.0.42")) {
		t.Fatal("expected subnet entry to match")
	}
	if p.IsSourceAllowed(netip.MustParseAddr("10.0.0.2")) {
		t.Fatal("expected unrelated address to be rejected")
	}
}

func TestPeerInstallAsResponderIsImmediatelyCurrent(t *testing.T) {
	p := testPeer(t)
	var key [32]byte
	kp := noise.NewTransportKeypair(key, key, 1, 2)
	p.InstallAsResponder(NewSession(kp))

	if p.Current() == nil {
		t.Fatal("expected responder-installed session to be current immediately")
	}
}

func TestPeerInstallAsInitiatorStagesUntilPromoted(t *testing.T) {
	p := testPeer(t)
	var key [32]byte
	initial := noise.NewTransportKeypair(key, key, 1, 2)
	p.InstallAsResponder(NewSession(initial))

	rekeyed := noise.NewTransportKeypair(key, key, 3, 4)
	p.InstallAsInitiator(NewSession(rekeyed))

	cur := p.Current()
	if cur == nil || cur.LocalIndex() != 1 {
		t.Fatal("expected the old session to remain current before promotion")
	}
	if p.SessionByIndex(3) == nil {
		t.Fatal("expected the staged session to be reachable by index for inbound routing")
	}

	p.PromoteNext()
	cur = p.Current()
	if cur == nil || cur.LocalIndex() != 3 {
		t.Fatal("expected the staged session to become current after promotion")
	}
}

func TestPeerSessionByIndexAndIndices(t *testing.T) {
	p := testPeer(t)
	var key [32]byte
	p.InstallAsResponder(NewSession(noise.NewTransportKeypair(key, key, 10, 20)))

	if s := p.SessionByIndex(10); s == nil {
		t.Fatal("expected to find session by its local index")
	}
	if s := p.SessionByIndex(99); s != nil {
		t.Fatal("expected no session for an unregistered index")
	}

	indices := p.Indices()
	if len(indices) != 1 || indices[0] != 10 {
		t.Fatalf("expected exactly index 10, got %v", indices)
	}
}
