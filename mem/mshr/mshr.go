// Package mshr implements the miss status holding register table and the
// writeback buffer the cache controller uses to track in-flight requests to
// memory (spec.md §2 item 4, §4.4).
package mshr

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// MSHR records one outstanding miss: the line it is waiting on, whether a
// request for it is already on the bus, and every packet coalesced onto it
// so far (spec.md §3 "MSHR").
type MSHR struct {
	BlockAddr uint64
	Size      int
	IssueTick sim.VTimeInSec

	InService bool

	OrigCmd mem.Command
	BusCmd  mem.Command

	// Targets is the ordered list of packets waiting on this miss's data,
	// in arrival order (spec.md §8 invariant 4: "replies are scheduled to
	// the CPU in the order the targets were enqueued").
	Targets []*mem.Packet

	// SenderPkt is the in-flight packet sent to memory on this MSHR's
	// behalf — a distinct identity from any target (spec.md §3).
	SenderPkt *mem.Packet
}

// AddTarget appends pkt to the end of the target list.
func (m *MSHR) AddTarget(pkt *mem.Packet) {
	m.Targets = append(m.Targets, pkt)
}

// IsCacheFillMSHR reports whether this MSHR is waiting on data that should
// be installed into the tag store, as opposed to e.g. a pure invalidate
// deferred onto it by a snoop.
func (m *MSHR) IsCacheFillMSHR() bool {
	return m.OrigCmd == mem.ReadReq || m.OrigCmd == mem.HardPFReq ||
		m.OrigCmd == mem.WriteReq
}
