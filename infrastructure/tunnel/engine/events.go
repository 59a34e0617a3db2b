package engine

import "noisevpn/infrastructure/cryptography/noise"

// EventKind enumerates the control-plane notifications (§6.4). The engine
// emits PeerAdded for each configured peer when it is constructed and
// PeerConnected each time a handshake completes; PeerRemoved and
// PeerDisconnected are defined but never emitted.
type EventKind int

const (
	PeerAdded EventKind = iota
	PeerRemoved
	PeerConnected
	PeerDisconnected
)

func (k EventKind) String() string {
	switch k {
	case PeerAdded:
		return "PeerAdded"
	case PeerRemoved:
		return "PeerRemoved"
	case PeerConnected:
		return "PeerConnected"
	case PeerDisconnected:
		return "PeerDisconnected"
	default:
		return "Unknown"
	}
}

// Event is a single control-plane notification, identifying the peer by its
// static public key.
type Event struct {
	Kind EventKind
	Peer noise.PublicKey
}

// eventBus is a bounded, non-blocking fan-out point for engine events: a
// slow or absent consumer must never stall the data path, so a full buffer
// drops the event rather than block the sender (matching the "no unbounded
// queues" rule the teacher's own dataplane workers follow).
type eventBus struct {
	out chan Event
}

func newEventBus(capacity int) *eventBus {
	return &eventBus{out: make(chan Event, capacity)}
}

func (b *eventBus) emit(kind EventKind, peer noise.PublicKey) {
	select {
	case b.out <- Event{Kind: kind, Peer: peer}:
	default:
	}
}

// Events returns the channel of control-plane events; it is closed when the
// engine's Run returns.
func (e *Engine) Events() <-chan Event { return e.events.out }
