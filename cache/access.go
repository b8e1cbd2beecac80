package cache

import (
	"log"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// access implements spec.md §4.3's "CPU-side, timing, request arriving"
// sequence: tag lookup, the fast write-allocate shortcut, writeback
// draining, and finally the hit or miss path.
func (c *Cache) access(pkt *mem.Packet) {
	now := c.now()

	if pkt.Req.IsLocked() && pkt.IsWrite() {
		// Locked-store bookkeeping (tracking the single outstanding locked
		// address so a later store-conditional can observe a loss) lives on
		// the issuing TimingCPU, not here — the cache only needs to let the
		// access proceed like any other write.
		_ = pkt
	}

	var blk, victim *tagstore.CacheBlk
	var writeback *mem.Packet

	if pkt.Req.IsUncacheable() {
		blk, victim, writeback = nil, nil, nil
	} else {
		blk, victim, _, writeback = c.tags.HandleAccess(pkt, true, now)
	}

	if blk == nil && c.tryFastWriteAllocate(pkt, victim, now) {
		if writeback != nil {
			c.drainWriteback(writeback)
		}
		return
	}

	if writeback != nil {
		c.drainWriteback(writeback)
	}

	if blk != nil {
		c.hit(pkt, blk, now)
		return
	}

	c.miss(pkt, victim, now)
}

// tryFastWriteAllocate implements the WH64 shortcut (spec.md §4.3): a
// full-block write miss installs its payload directly without ever
// fetching the old contents, provided the protocol allows it and no miss
// to the same block is already in flight; a WriteInvalidateReq proceeds
// even then, logging a warning.
func (c *Cache) tryFastWriteAllocate(
	pkt *mem.Packet, victim *tagstore.CacheBlk, now sim.VTimeInSec,
) bool {
	isFullBlockWrite := (pkt.Cmd == mem.WriteReq || pkt.Cmd == mem.WriteInvalidateReq) &&
		pkt.Size == c.blockSize
	if !isFullBlockWrite || !c.coh.AllowFastWrites() {
		return false
	}

	blockAddr := pkt.BlockAddr(c.blockSize)
	existing, hasOutstanding := c.mshrq.FindMSHR(blockAddr)

	if hasOutstanding {
		if pkt.Cmd != mem.WriteInvalidateReq {
			return false
		}
		log.Printf("%s: fast write-allocate at %#x proceeding despite outstanding %s MSHR",
			c.Name(), blockAddr, existing.OrigCmd)
	}

	if !pkt.IsDynamicData() && pkt.Data() == nil {
		pkt.AllocateData()
	}

	c.tags.HandleFill(victim, blockAddr, pkt.Data(), tagstore.StatusValid|tagstore.StatusWritable,
		pkt.Req.MasterID, now)

	c.stats.FastWrites++

	pkt.SetFlag(mem.FlagSatisfied)
	pkt.Result = mem.Success
	pkt.MakeResponse()
	c.scheduleCPUReply(pkt, now+sim.VTimeInSec(c.cfg.HitLatency))

	return true
}

func (c *Cache) drainWriteback(wb *mem.Packet) {
	c.mshrq.DoWriteback(wb)
	c.trySendToMemory()
}

func (c *Cache) hit(pkt *mem.Packet, blk *tagstore.CacheBlk, now sim.VTimeInSec) {
	c.stats.Hits[pkt.Cmd]++
	c.stats.HitsByMaster[pkt.Req.MasterID]++

	blockAddr := pkt.BlockAddr(c.blockSize)

	if pkt.IsRead() {
		pkt.CopyDataFrom(blockAddr, blk.Data)
	} else if pkt.IsWrite() && pkt.Cmd != mem.WritebackReq {
		pkt.CopyDataInto(blockAddr, blk.Data)
	}

	c.notifyPrefetcher(pkt, blockAddr, true)

	if pkt.Cmd == mem.WritebackReq {
		pkt.SetFlag(mem.FlagSatisfied)
		return
	}

	pkt.SetFlag(mem.FlagSatisfied)
	pkt.Result = mem.Success
	pkt.MakeResponse()
	c.scheduleCPUReply(pkt, now+sim.VTimeInSec(c.cfg.HitLatency))
}

func (c *Cache) miss(pkt *mem.Packet, victim *tagstore.CacheBlk, now sim.VTimeInSec) {
	c.stats.Misses[pkt.Cmd]++
	c.stats.MissesByMaster[pkt.Req.MasterID]++

	if pkt.IsSatisfied() {
		pkt.MakeResponse()
		c.scheduleCPUReply(pkt, now+sim.VTimeInSec(c.cfg.HitLatency))
		return
	}

	blockAddr := pkt.BlockAddr(c.blockSize)

	if _, exists := c.mshrq.FindMSHR(blockAddr); !exists {
		if c.mshrq.IsFull() {
			c.blocked = true
			return
		}
		c.victims[blockAddr] = victim
	}

	c.mshrq.HandleMiss(blockAddr, pkt, c.blockSize, now+sim.VTimeInSec(c.cfg.HitLatency))
	c.notifyPrefetcher(pkt, blockAddr, false)
	c.trySendToMemory()
}

func (c *Cache) notifyPrefetcher(pkt *mem.Packet, blockAddr uint64, hit bool) {
	for _, addr := range c.pf.Notify(pkt, blockAddr, hit) {
		c.issueHardPrefetch(addr)
	}
}

func (c *Cache) issueHardPrefetch(blockAddr uint64) {
	if _, exists := c.mshrq.FindMSHR(blockAddr); exists {
		return
	}
	if c.mshrq.IsFull() {
		return
	}
	if _, hit := c.tags.Lookup(blockAddr); hit {
		return
	}

	req := mem.NewRequest(blockAddr, c.blockSize, mem.FlagPrefetch, c.now())
	pfPkt := mem.NewPacket(req, mem.HardPFReq, blockAddr, c.blockSize)

	_, victim, _, writeback := c.tags.HandleAccess(pfPkt, false, c.now())
	if writeback != nil {
		c.drainWriteback(writeback)
	}

	c.victims[blockAddr] = victim
	c.mshrq.HandleMiss(blockAddr, pfPkt, c.blockSize, c.now())
	c.trySendToMemory()
}
