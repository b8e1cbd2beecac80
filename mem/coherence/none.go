package coherence

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/tagstore"
)

// NoneDriver is the Driver for a single-cache configuration with no
// coherence protocol at all: every fill grants full Valid|Readable|Writable
// permission and snoops never arrive because there is nothing to snoop.
type NoneDriver struct {
	fastWrites bool
}

// NewNoneDriver creates a NoneDriver.
func NewNoneDriver(allowFastWrites bool) *NoneDriver {
	return &NoneDriver{fastWrites: allowFastWrites}
}

// BusCmd never rewrites the command: there is no one else to coordinate
// with.
func (d *NoneDriver) BusCmd(cpuCmd mem.Command, _ *tagstore.CacheBlk) mem.Command {
	return cpuCmd
}

// NextState grants full permission on any fill and leaves other states
// unchanged.
func (d *NoneDriver) NextState(pkt *mem.Packet, old tagstore.Status) tagstore.Status {
	switch pkt.Cmd {
	case mem.ReadResp, mem.WriteResp, mem.UpgradeResp:
		status := tagstore.StatusValid | tagstore.StatusReadable | tagstore.StatusWritable
		if pkt.Cmd == mem.WriteResp {
			status |= tagstore.StatusDirty
		}
		return status
	default:
		return old
	}
}

// HandleBusRequest never satisfies a bus request locally: with no protocol
// there should be no snoop traffic to begin with.
func (d *NoneDriver) HandleBusRequest(
	*mem.Packet, *tagstore.CacheBlk, *mshr.MSHR,
) (bool, tagstore.Status) {
	return false, 0
}

// PropagateInvalidate does nothing: there is no upstream coherence domain.
func (d *NoneDriver) PropagateInvalidate(*mem.Packet, bool) {}

// AllowFastWrites reports the configured fast-write-allocate permission.
func (d *NoneDriver) AllowFastWrites() bool { return d.fastWrites }

// HasProtocol reports false: this driver models no real coherence.
func (d *NoneDriver) HasProtocol() bool { return false }
