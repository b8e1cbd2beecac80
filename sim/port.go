package sim

// A PortOwner is the component behind a Port: the actual packet-handling
// logic the Port's three transport modes forward into (spec.md §4.1: Cache
// and TimingCPU own cpu-side / mem-side ports and dispatch by direction and
// mode).
type PortOwner interface {
	Named

	// RecvTiming delivers msg asynchronously. It returns false if the owner
	// is currently blocked and cannot accept the packet — the sender must
	// hold it and wait for RecvRetry.
	RecvTiming(port Port, msg Msg) bool

	// RecvAtomic synchronously services msg, including any recursive
	// downstream accesses, and returns the cumulative latency.
	RecvAtomic(port Port, msg Msg) VTimeInSec

	// RecvFunctional services msg without touching timing state.
	RecvFunctional(port Port, msg Msg)

	// RecvRetry notifies the owner that a previously blocked send on port
	// may now be retried.
	RecvRetry(port Port)
}

// A Port is a bidirectional endpoint with a single peer, wired once during
// system construction, that transports Msg values in timing, atomic, or
// functional mode (spec.md §4.1). Mode is a property of the call, not the
// port: the same Port is used for all three.
type Port interface {
	Named
	Hookable

	SetOwner(owner PortOwner)
	Owner() PortOwner

	SetPeer(peer Port)
	Peer() Port

	// SendTiming hands msg to the peer. It returns true if the peer accepted
	// ownership; on false the caller must retain the packet until its
	// RecvRetry is invoked.
	SendTiming(msg Msg) bool

	// SendAtomic synchronously drives msg through the peer and returns the
	// cumulative latency it took.
	SendAtomic(msg Msg) VTimeInSec

	// SendFunctional drives msg through the peer without affecting timing
	// state.
	SendFunctional(msg Msg)

	// SendRetry notifies whatever is on the other end of a previously
	// refused SendTiming that it may retry now.
	SendRetry()
}

type defaultPort struct {
	HookableBase

	name  string
	owner PortOwner
	peer  Port
}

// NewPort creates a Port named name, owned by owner. Its peer must be wired
// with SetPeer before any Send* call.
func NewPort(owner PortOwner, name string) Port {
	NameMustBeValid(name)
	return &defaultPort{name: name, owner: owner}
}

// Name returns the port's name.
func (p *defaultPort) Name() string { return p.name }

// SetOwner rebinds the component that handles inbound traffic on this port.
func (p *defaultPort) SetOwner(owner PortOwner) { p.owner = owner }

// Owner returns the component that handles inbound traffic on this port.
func (p *defaultPort) Owner() PortOwner { return p.owner }

// SetPeer wires this port to peer. Rewiring an already-wired port is a
// construction bug.
func (p *defaultPort) SetPeer(peer Port) {
	if p.peer != nil {
		panic("port " + p.name + " is already wired to a peer")
	}
	p.peer = peer
}

// Peer returns the port's wired peer, or nil if unwired.
func (p *defaultPort) Peer() Port { return p.peer }

func (p *defaultPort) mustHavePeer() {
	if p.peer == nil {
		panic("port " + p.name + " has no peer")
	}
}

// SendTiming forwards msg to the peer's owner. The peer's RecvTiming
// decides acceptance; ownership of msg transfers to the peer side iff it
// returns true (spec.md §3 "ownership transfers atomically on successful
// timing send").
func (p *defaultPort) SendTiming(msg Msg) bool {
	p.mustHavePeer()

	accepted := p.peer.Owner().RecvTiming(p.peer, msg)

	if accepted && p.NumHooks() > 0 {
		p.InvokeHook(HookCtx{Domain: p, Pos: HookPosPortMsgSend, Item: msg})
	}

	return accepted
}

// SendAtomic forwards msg to the peer's owner synchronously and returns the
// latency it reports.
func (p *defaultPort) SendAtomic(msg Msg) VTimeInSec {
	p.mustHavePeer()
	return p.peer.Owner().RecvAtomic(p.peer, msg)
}

// SendFunctional forwards msg to the peer's owner without affecting timing
// state.
func (p *defaultPort) SendFunctional(msg Msg) {
	p.mustHavePeer()
	p.peer.Owner().RecvFunctional(p.peer, msg)
}

// SendRetry notifies the peer's owner that a send this port previously
// refused (by returning false from RecvTiming) may now be retried.
func (p *defaultPort) SendRetry() {
	p.mustHavePeer()

	if p.NumHooks() > 0 {
		p.InvokeHook(HookCtx{Domain: p, Pos: HookPosPortRetry})
	}

	p.peer.Owner().RecvRetry(p.peer)
}
