package cache

import (
	"log"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// doAtomicAccess implements spec.md §4.3's atomic-mode CPU access: the whole
// hit-or-miss sequence runs synchronously in this call and returns the
// cumulative latency, recursing into the memory side directly rather than
// going through the MSHR table at all.
func (c *Cache) doAtomicAccess(pkt *mem.Packet) sim.VTimeInSec {
	now := c.now()

	if pkt.Req.IsUncacheable() {
		lat := c.memSide.SendAtomic(pkt)
		pkt.SetFlag(mem.FlagSatisfied)
		pkt.Result = mem.Success
		return lat
	}

	// An atomic access that collides with an outstanding MSHR or writeback
	// is a programmer error, not a runtime condition this cache can
	// reconcile: atomic mode never goes through the MSHR table, so there
	// is no coalescing path that could absorb it (spec.md §7; grounded on
	// original_source's `if (mshr || !writes.empty()) panic(...)`).
	blockAddr := pkt.BlockAddr(c.blockSize)
	if m, ok := c.mshrq.FindMSHR(blockAddr); ok {
		log.Panicf("%s: atomic access to %#x collides with outstanding MSHR (orig cmd %s)",
			c.Name(), blockAddr, m.OrigCmd)
	}
	if wbs := c.mshrq.FindWrites(blockAddr); len(wbs) > 0 {
		log.Panicf("%s: atomic access to %#x collides with a pending writeback", c.Name(), blockAddr)
	}

	var lat sim.VTimeInSec

	blk, victim, accessLat, writeback := c.tags.HandleAccess(pkt, true, now)
	lat += accessLat

	if writeback != nil {
		lat += c.memSide.SendAtomic(writeback)
	}

	if blk == nil {
		blk = c.fillAtomic(pkt, victim, blockAddr, now, &lat)
	}

	if pkt.IsRead() {
		pkt.CopyDataFrom(blockAddr, blk.Data)
	} else if pkt.IsWrite() {
		pkt.CopyDataInto(blockAddr, blk.Data)
		if blk.IsWritable() {
			blk.Status |= tagstore.StatusDirty
		}
	}

	c.notifyPrefetcher(pkt, blockAddr, victim == nil)
	pkt.SetFlag(mem.FlagSatisfied)
	pkt.Result = mem.Success

	return lat
}

// fillAtomic drives a block-sized fill through the memory side synchronously,
// installing it into victim and returning the now-resident block.
func (c *Cache) fillAtomic(
	pkt *mem.Packet, victim *tagstore.CacheBlk, blockAddr uint64, now sim.VTimeInSec, lat *sim.VTimeInSec,
) *tagstore.CacheBlk {
	busCmd := c.coh.BusCmd(pkt.Cmd, victim)

	req := mem.NewRequest(blockAddr, c.blockSize, 0, now)
	req.MasterID = pkt.Req.MasterID

	fillPkt := mem.NewPacket(req, busCmd, blockAddr, c.blockSize)
	fillPkt.SetFlag(mem.FlagCacheLineFill)
	fillPkt.AllocateData()

	if busCmd == mem.WriteReq || busCmd == mem.WriteInvalidateReq {
		copy(fillPkt.Data(), pkt.Data())
	}

	*lat += c.memSide.SendAtomic(fillPkt)
	fillPkt.MakeResponse()

	newStatus := c.coh.NextState(fillPkt, victim.Status)
	extraWB := c.tags.HandleFill(victim, blockAddr, fillPkt.Data(), newStatus, pkt.Req.MasterID, now)
	if extraWB != nil {
		*lat += c.memSide.SendAtomic(extraWB)
	}

	return victim
}

// probeAtomic answers an atomic-mode snoop arriving from the memory side by
// running the same logic the timing path uses, reporting zero extra
// latency: an atomic probe is expected to be instantaneous from the
// prober's point of view.
func (c *Cache) probeAtomic(pkt *mem.Packet) sim.VTimeInSec {
	c.snoop(pkt)
	return 0
}
