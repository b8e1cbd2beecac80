package cache

import (
	"log"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// handleResponse implements spec.md §4.3's "response to an outstanding
// miss" sequence: recover the MSHR, install the fill (if any), satisfy
// every coalesced target in arrival order, and retire.
func (c *Cache) handleResponse(pkt *mem.Packet) {
	// A writeback is retired as soon as it is sent (trySendToMemory), so an
	// acknowledgement the next level returns for it has no MSHR and is
	// dropped.
	if pkt.SenderState == nil && pkt.OrigCmd == mem.WritebackReq {
		return
	}

	if pkt.SenderState == nil {
		log.Panicf("%s: response %s carries no sender state", c.Name(), pkt.Cmd)
	}

	blockAddr := pkt.SenderState.BlockAddr
	m, ok := c.mshrq.FindMSHR(blockAddr)
	if !ok {
		log.Panicf("%s: response for %#x has no outstanding MSHR", c.Name(), blockAddr)
	}

	now := c.now()

	if pkt.Result == mem.Nacked {
		log.Printf("%s: cross-bus NACK for %#x is not supported, dropping", c.Name(), blockAddr)
		return
	}

	if pkt.Result == mem.BadAddress {
		for _, target := range m.Targets {
			target.Result = mem.BadAddress
			target.SetFlag(mem.FlagSatisfied)
			target.MakeResponse()
			c.scheduleCPUReply(target, now+sim.VTimeInSec(c.cfg.HitLatency))
		}
		c.retireMSHR(m)
		return
	}

	if pkt.IsCacheFill() && !pkt.NoAllocate() {
		c.installFill(pkt, m, now)
	} else if pkt.Cmd == mem.UpgradeResp {
		c.installUpgrade(pkt, m, now)
	}

	for _, target := range m.Targets {
		if target != pkt {
			c.satisfyTarget(target, pkt, m, now)
		}
	}

	if c.pendingInvalidate[blockAddr] {
		delete(c.pendingInvalidate, blockAddr)
		c.tags.InvalidateBlk(blockAddr)
	}

	c.retireMSHR(m)
}

// installFill installs pkt's payload into the victim block reserved for m
// at HandleMiss time, computing the new coherence state via the driver
// (spec.md §4.3 step 4).
func (c *Cache) installFill(pkt *mem.Packet, m *mshr.MSHR, now sim.VTimeInSec) {
	victim := c.victims[m.BlockAddr]
	if victim == nil {
		log.Panicf("%s: fill for %#x has no reserved victim", c.Name(), m.BlockAddr)
	}
	delete(c.victims, m.BlockAddr)

	newStatus := c.coh.NextState(pkt, victim.Status)

	if !pkt.IsDynamicData() && pkt.Data() == nil {
		pkt.AllocateData()
	}

	extraWB := c.tags.HandleFill(victim, m.BlockAddr, pkt.Data(), newStatus, pkt.Req.MasterID, now)
	if extraWB != nil {
		c.drainWriteback(extraWB)
	}
}

// installUpgrade applies spec.md §9's UpgradeResp special case: no data
// arrives on the bus, so the block's existing contents becomes the
// response's payload once the driver grants Writable.
func (c *Cache) installUpgrade(pkt *mem.Packet, m *mshr.MSHR, now sim.VTimeInSec) {
	blk, ok := c.tags.Lookup(m.BlockAddr)
	if !ok {
		log.Panicf("%s: UpgradeResp for %#x but block is gone", c.Name(), m.BlockAddr)
	}

	blk.Status = c.coh.NextState(pkt, blk.Status)
	blk.LastRefTick = now

	pkt.CopyDataFrom(m.BlockAddr, blk.Data)
}

// satisfyTarget copies the fill into target and schedules its reply toward
// the CPU side, preserving the enqueue order of m.Targets
// (spec.md §8 invariant 4).
func (c *Cache) satisfyTarget(target, fill *mem.Packet, m *mshr.MSHR, now sim.VTimeInSec) {
	blockAddr := m.BlockAddr

	if blk, ok := c.tags.Lookup(blockAddr); ok {
		if target.IsRead() {
			target.CopyDataFrom(blockAddr, blk.Data)
		} else if target.IsWrite() {
			target.CopyDataInto(blockAddr, blk.Data)
			if blk.IsWritable() {
				blk.Status |= tagstore.StatusDirty
			}
		}
	} else if target.IsRead() {
		target.CopyDataFrom(blockAddr, fill.Data())
	}

	target.Result = mem.Success
	target.SetFlag(mem.FlagSatisfied)
	target.MakeResponse()
	c.scheduleCPUReply(target, now+sim.VTimeInSec(c.cfg.HitLatency))
}

func (c *Cache) retireMSHR(m *mshr.MSHR) {
	c.mshrq.Retire(m.BlockAddr)
	c.unblockIfPossible()
	c.trySendToMemory()
}
