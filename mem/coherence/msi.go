package coherence

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/tagstore"
)

// MSIDriver is a minimal Modified/Shared/Invalid protocol: a block is
// Invalid, Shared (Valid|Readable), or writable (Valid|Readable|Writable,
// as an exclusive fill leaves it), which is Modified once Dirty is also
// set. It is the default Driver for a
// multi-cache configuration (spec.md §6 "coherence_protocol").
type MSIDriver struct {
	upstream   UpstreamInvalidator
	fastWrites bool
}

// NewMSIDriver creates an MSIDriver. upstream may be NopUpstreamInvalidator
// for a cache with no inner levels; allowFastWrites selects whether the
// write-hits-64-bytes optimization is permitted under this protocol
// (spec.md §4.3).
func NewMSIDriver(upstream UpstreamInvalidator, allowFastWrites bool) *MSIDriver {
	if upstream == nil {
		upstream = NopUpstreamInvalidator{}
	}
	return &MSIDriver{upstream: upstream, fastWrites: allowFastWrites}
}

// BusCmd upgrades a write hit to a Shared-but-not-Writable line into an
// UpgradeReq rather than reissuing it as a plain write.
func (d *MSIDriver) BusCmd(cpuCmd mem.Command, blk *tagstore.CacheBlk) mem.Command {
	if blk == nil || !blk.IsValid() {
		return cpuCmd
	}

	if cpuCmd == mem.WriteReq && !blk.IsWritable() {
		return mem.UpgradeReq
	}

	return cpuCmd
}

// NextState computes the state a block transitions to once pkt resolves.
func (d *MSIDriver) NextState(pkt *mem.Packet, old tagstore.Status) tagstore.Status {
	switch pkt.Cmd {
	case mem.ReadResp:
		if pkt.HasFlag(mem.FlagSharedLine) {
			return tagstore.StatusValid | tagstore.StatusReadable
		}
		return tagstore.StatusValid | tagstore.StatusReadable | tagstore.StatusWritable

	case mem.WriteResp:
		return tagstore.StatusValid | tagstore.StatusReadable |
			tagstore.StatusWritable | tagstore.StatusDirty

	case mem.UpgradeResp:
		// spec.md §9: "on a successful UpgradeReq response, apply the new
		// coherence state, copy current block data into the response
		// packet, and satisfy the upstream target".
		return tagstore.StatusValid | tagstore.StatusReadable |
			tagstore.StatusWritable | tagstore.StatusDirty

	default:
		return old
	}
}

// HandleBusRequest decides how to respond to an incoming snoop.
func (d *MSIDriver) HandleBusRequest(
	pkt *mem.Packet, blk *tagstore.CacheBlk, _ *mshr.MSHR,
) (satisfy bool, newState tagstore.Status) {
	if blk == nil || !blk.IsValid() {
		return false, 0
	}

	switch {
	case pkt.Cmd.IsInvalidatingRequest():
		return false, 0

	case pkt.Cmd == mem.UpgradeReq:
		return false, 0

	case pkt.Cmd == mem.ReadReq:
		return true, tagstore.StatusValid | tagstore.StatusReadable

	default:
		return false, blk.Status
	}
}

// PropagateInvalidate forwards pkt to any inner caches wired above this
// one.
func (d *MSIDriver) PropagateInvalidate(pkt *mem.Packet, isTiming bool) {
	d.upstream.InvalidateUpstream(pkt, isTiming)
}

// AllowFastWrites reports the configured fast-write-allocate permission.
func (d *MSIDriver) AllowFastWrites() bool { return d.fastWrites }

// HasProtocol reports true: MSI models real multi-cache coherence.
func (d *MSIDriver) HasProtocol() bool { return true }
