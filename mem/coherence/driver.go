// Package coherence implements the pluggable protocol the cache controller
// consults to translate commands and decide snoop responses (spec.md
// §4.5). The controller treats a Driver as a pure function of the state it
// is handed; any queueing a protocol needs stays inside the Driver itself.
package coherence

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/tagstore"
)

// Protocol names which coherence protocol a Config selects
// (spec.md §6: "coherence_protocol").
type Protocol int

// The protocols this module ships a Driver for.
const (
	ProtocolMSI Protocol = iota
	ProtocolNone
)

func (p Protocol) String() string {
	switch p {
	case ProtocolMSI:
		return "MSI"
	case ProtocolNone:
		return "none"
	default:
		return "unknown"
	}
}

// UpstreamInvalidator is implemented by whatever sits above a cache
// (TimingCPU implements it); a Driver calls it to forward an invalidate to inner caches
// (spec.md §4.5 "propagateInvalidate... forward an invalidate up to inner
// caches"). A single-level cache (no inner caches) passes a no-op.
type UpstreamInvalidator interface {
	InvalidateUpstream(pkt *mem.Packet, isTiming bool)
}

// NopUpstreamInvalidator is the default UpstreamInvalidator for a cache
// with no inner levels.
type NopUpstreamInvalidator struct{}

// InvalidateUpstream does nothing.
func (NopUpstreamInvalidator) InvalidateUpstream(*mem.Packet, bool) {}

// Driver is the protocol interface the cache controller consumes
// (spec.md §4.5).
type Driver interface {
	// BusCmd translates a request's command at issue time into the command
	// actually placed on the bus, given the line's current status — e.g. a
	// read miss to a block held remotely in an exclusive/writable state may
	// need to become an upgrade rather than a plain read.
	BusCmd(cpuCmd mem.Command, blk *tagstore.CacheBlk) mem.Command

	// NextState computes the coherence state a block should transition to
	// after pkt resolves, called both when a response fills the block and
	// when a snoop observes it.
	NextState(pkt *mem.Packet, old tagstore.Status) tagstore.Status

	// HandleBusRequest decides whether an incoming snoop should be
	// satisfied locally and what state the block should end up in.
	HandleBusRequest(
		pkt *mem.Packet, blk *tagstore.CacheBlk, m *mshr.MSHR,
	) (satisfy bool, newState tagstore.Status)

	// PropagateInvalidate forwards an invalidate to any inner caches.
	PropagateInvalidate(pkt *mem.Packet, isTiming bool)

	// AllowFastWrites reports whether this protocol permits the
	// write-hits-64-bytes fast write-allocate optimization (spec.md §4.3).
	AllowFastWrites() bool

	// HasProtocol reports whether this driver models real multi-cache
	// coherence (false for a single-cache, non-coherent configuration).
	HasProtocol() bool
}
