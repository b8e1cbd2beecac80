package cache

import "github.com/archsim/memhier/mem"

// doFunctionalAccess implements spec.md §4.3's functional-mode CPU access:
// a side-effect-free peek or poke that never touches coherence state or the
// MSHR table's bookkeeping (a poke's bytes are merged into overlapping
// MSHR-target and writeback data). A hit is served from the tag store directly; bytes that
// exist only in an in-flight MSHR target or the writeback buffer are
// merged in by fixAgainstInFlight before falling through to the memory
// side on a miss (spec.md §8.7: "a functional probe returns bytes equal to
// the most recent write... whether buffered in an MSHR target, or pending
// in the writeback buffer").
func (c *Cache) doFunctionalAccess(pkt *mem.Packet) {
	blockAddr := pkt.BlockAddr(c.blockSize)

	if !pkt.Req.IsUncacheable() {
		if blk, hit := c.tags.Lookup(blockAddr); hit {
			if pkt.IsRead() {
				pkt.CopyDataFrom(blockAddr, blk.Data)
			} else if pkt.IsWrite() {
				pkt.CopyDataInto(blockAddr, blk.Data)
			}
			pkt.SetFlag(mem.FlagSatisfied)
		}
	}

	c.fixAgainstInFlight(pkt, blockAddr)

	if !pkt.IsSatisfied() {
		c.memSide.SendFunctional(pkt)
	}
	pkt.SetFlag(mem.FlagSatisfied)
}

// functionalFromMemSide answers a functional probe arriving from the memory
// side against whatever this cache currently holds, including whatever its
// own MSHR targets and writeback buffer carry, without disturbing any
// state.
func (c *Cache) functionalFromMemSide(pkt *mem.Packet) {
	blockAddr := pkt.BlockAddr(c.blockSize)

	if blk, hit := c.tags.Lookup(blockAddr); hit {
		if pkt.IsRead() {
			pkt.CopyDataFrom(blockAddr, blk.Data)
		} else if pkt.IsWrite() {
			pkt.CopyDataInto(blockAddr, blk.Data)
		}
		pkt.SetFlag(mem.FlagSatisfied)
	}

	c.fixAgainstInFlight(pkt, blockAddr)
}

// fixAgainstInFlight merges pkt against every MSHR target and writeback
// buffer entry whose address range intersects it (spec.md §4.3's
// "fixPacket" requirement, grounded on original_source's
// Cache::probe walking mshr->getTargetList() and the write buffer before
// ever forwarding a functional probe further down).
func (c *Cache) fixAgainstInFlight(pkt *mem.Packet, blockAddr uint64) {
	if m, ok := c.mshrq.FindMSHR(blockAddr); ok {
		for _, target := range m.Targets {
			fixPacket(pkt, target)
		}
	}
	for _, wb := range c.mshrq.FindWrites(blockAddr) {
		fixPacket(pkt, wb.Pkt)
	}
}

// fixPacket merges the byte range pkt and source have in common: if pkt is
// a read, bytes flow from source into pkt (and pkt is marked satisfied once
// fully covered); if pkt is a write, bytes flow the other way, so a
// functional poke still reaches a write sitting as an MSHR target or a
// block already evicted into the writeback buffer.
func fixPacket(pkt, source *mem.Packet) {
	if source == pkt || source.Data() == nil {
		return
	}

	lo, hi := overlapRange(pkt, source)
	if lo >= hi {
		return
	}

	switch {
	case pkt.IsRead():
		if !pkt.IsDynamicData() && pkt.Data() == nil {
			pkt.AllocateData()
		}
		for addr := lo; addr < hi; addr++ {
			pkt.Data()[addr-pkt.Addr] = source.Data()[addr-source.Addr]
		}
		if lo <= pkt.Addr && hi >= pkt.Addr+uint64(pkt.Size) {
			pkt.SetFlag(mem.FlagSatisfied)
		}
	case pkt.IsWrite():
		if pkt.Data() == nil {
			return
		}
		for addr := lo; addr < hi; addr++ {
			source.Data()[addr-source.Addr] = pkt.Data()[addr-pkt.Addr]
		}
	}
}

// overlapRange returns the [lo, hi) address range a and b have in common,
// with lo >= hi when they do not overlap at all.
func overlapRange(a, b *mem.Packet) (lo, hi uint64) {
	lo = a.Addr
	if b.Addr > lo {
		lo = b.Addr
	}

	hi = a.Addr + uint64(a.Size)
	if bHi := b.Addr + uint64(b.Size); bHi < hi {
		hi = bHi
	}

	return lo, hi
}
