package cache

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// snoop implements spec.md §4.3's "snoop request arriving" sequence: an
// external bus request that this cache must answer (or at least react to)
// without the requester itself waiting on a normal miss path. A snoop that
// ends up SATISFIED is scheduled back out the mem-side port at the end;
// one that only updates local state returns silently.
func (c *Cache) snoop(pkt *mem.Packet) bool {
	now := c.now()
	blockAddr := pkt.BlockAddr(c.blockSize)

	if pkt.Req.IsUncacheable() || !c.coh.HasProtocol() {
		return true
	}

	c.coh.PropagateInvalidate(pkt, true)

	m, inFlight := c.mshrq.FindMSHR(blockAddr)
	if inFlight && m.InService {
		outstandingIsInvalidateOrUpgrade := m.OrigCmd.IsInvalidatingRequest() || m.OrigCmd.IsUpgrade()
		snoopIsInvalidating := pkt.Cmd.IsInvalidatingRequest()

		if outstandingIsInvalidateOrUpgrade && !snoopIsInvalidating {
			// Ack and NACK: this cache will own the line itself shortly, so
			// the snooper should re-issue once that settles.
			pkt.SetFlag(mem.FlagSatisfied)
			pkt.SetFlag(mem.FlagNackedLine)
			c.scheduleMemReply(pkt, now)
			return true
		}

		// The line's replacement data is still in transit from this cache's
		// own outstanding miss; remember to self-invalidate the moment it
		// lands (spec.md §4.3 step 4, §8 invariant 5).
		c.pendingInvalidate[blockAddr] = true
		return true
	}

	for _, wb := range c.mshrq.FindWrites(blockAddr) {
		if pkt.Cmd.IsInvalidatingRequest() {
			// The other cache now owns the line; this cache no longer needs
			// to transmit its writeback itself.
			wb.InService = true
			continue
		}

		pkt.CopyDataFrom(blockAddr, wb.Pkt.Data())
		pkt.SetFlag(mem.FlagSatisfied)
		pkt.SetFlag(mem.FlagSharedLine)
		c.scheduleMemReply(pkt, now+sim.VTimeInSec(c.cfg.HitLatency))
		return true
	}

	blk, _ := c.tags.Lookup(blockAddr)

	satisfy, newState := c.coh.HandleBusRequest(pkt, blk, m)

	if blk != nil {
		c.tags.HandleSnoop(blk, newState)
	}

	if satisfy {
		pkt.CopyDataFrom(blockAddr, blk.Data)
		pkt.SetFlag(mem.FlagSatisfied)
		pkt.SetFlag(mem.FlagSharedLine)
		c.scheduleMemReply(pkt, now+sim.VTimeInSec(c.cfg.HitLatency))
	}

	return true
}
