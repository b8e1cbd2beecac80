package cache

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
)

// trySendToMemory attempts to issue whatever the MSHR/writeback queue says
// is next (spec.md §4.4 "getPacket"), building the actual bus packet for a
// miss on demand. It keeps trying until the queue runs dry or a send is
// refused, so multiple ready units of work (e.g. S3's writeback alongside
// the new line's read) can leave in the same tick.
func (c *Cache) trySendToMemory() {
	if c.memSideBlocked != nil {
		return
	}

	for {
		target, m, wb := c.mshrq.GetPacket()
		if target == nil {
			return
		}

		var sendPkt *mem.Packet
		if m != nil {
			sendPkt = c.buildMemRequest(m, target)
		} else {
			sendPkt = wb.Pkt
		}

		if c.memSide.SendTiming(sendPkt) {
			if m != nil {
				c.mshrq.MarkInService(sendPkt, m)
			} else {
				// This design never models a writeback's own completion
				// response (spec.md §4.4's writeback table tracks only
				// transmission, not acknowledgement), so a successful send
				// retires the entry immediately rather than waiting on a
				// reply that will never arrive tagged to it.
				c.mshrq.RetireWriteback(wb)
			}
			continue
		}

		if m != nil {
			sendPkt.RestoreOrigCmd()
		}
		c.memSideBlocked = &pendingMemSend{pkt: sendPkt, m: m, wb: wb}
		return
	}
}

// buildMemRequest constructs the block-sized packet actually placed on the
// bus for an outstanding MSHR, translating the command through the
// coherence driver (spec.md §4.5 "busCmd").
func (c *Cache) buildMemRequest(m *mshr.MSHR, template *mem.Packet) *mem.Packet {
	blk, _ := c.tags.Lookup(m.BlockAddr)

	busCmd := c.coh.BusCmd(m.OrigCmd, blk)

	req := mem.NewRequest(m.BlockAddr, m.Size, 0, template.Req.IssueTick)
	req.MasterID = template.Req.MasterID

	pkt := mem.NewPacket(req, m.OrigCmd, m.BlockAddr, m.Size)
	pkt.SetBusCmd(busCmd)
	pkt.SetFlag(mem.FlagCacheLineFill)

	if busCmd == mem.WriteReq || busCmd == mem.WriteInvalidateReq {
		pkt.SetDynamicData(make([]byte, m.Size))
		copy(pkt.Data(), template.Data())
	}

	return pkt
}

// retryMemSide re-attempts the single send this cache was blocked on, then
// resumes draining the MSHR/writeback queue.
func (c *Cache) retryMemSide() {
	attempt := c.memSideBlocked
	if attempt == nil {
		panic("cache: RecvRetry on mem side with nothing held")
	}
	c.memSideBlocked = nil

	if attempt.m != nil {
		// The line's coherence state may have shifted since the failed
		// attempt (e.g. a snoop arrived while this packet sat blocked), so
		// the bus command is recomputed fresh rather than resent stale.
		blk, _ := c.tags.Lookup(attempt.m.BlockAddr)
		attempt.pkt.SetBusCmd(c.coh.BusCmd(attempt.m.OrigCmd, blk))
	}

	if !c.memSide.SendTiming(attempt.pkt) {
		if attempt.m != nil {
			attempt.pkt.RestoreOrigCmd()
		}
		c.memSideBlocked = attempt
		return
	}

	if attempt.m != nil {
		c.mshrq.MarkInService(attempt.pkt, attempt.m)
	} else {
		c.mshrq.RetireWriteback(attempt.wb)
	}

	c.trySendToMemory()
}
