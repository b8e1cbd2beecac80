package tagstore

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// TagStore is the set-associative array of CacheBlks, answering tag lookup
// and block-fill operations (spec.md §2 item 3, §4.2).
type TagStore struct {
	blockSize int
	assoc     int
	nSets     int
	hitLat    sim.VTimeInSec

	sets   [][]*CacheBlk
	victim VictimFinder
}

// New creates an empty TagStore of nSets sets, each assoc ways wide, with
// blockSize-byte blocks, reporting hitLatency as its intrinsic access
// latency. Replacement defaults to LRU-per-set; override with
// SetVictimFinder.
func New(blockSize, assoc, nSets int, hitLatency sim.VTimeInSec) *TagStore {
	t := &TagStore{
		blockSize: blockSize,
		assoc:     assoc,
		nSets:     nSets,
		hitLat:    hitLatency,
		victim:    NewLRUVictimFinder(),
	}

	t.sets = make([][]*CacheBlk, nSets)
	for s := 0; s < nSets; s++ {
		t.sets[s] = make([]*CacheBlk, assoc)
		for w := 0; w < assoc; w++ {
			t.sets[s][w] = &CacheBlk{
				SetIndex: s,
				WayIndex: w,
				Data:     make([]byte, blockSize),
			}
		}
	}

	return t
}

// SetVictimFinder swaps in a non-default replacement policy.
func (t *TagStore) SetVictimFinder(v VictimFinder) { t.victim = v }

// BlockSize returns the configured block size in bytes.
func (t *TagStore) BlockSize() int { return t.blockSize }

// NSets returns the configured number of sets.
func (t *TagStore) NSets() int { return t.nSets }

// AllBlocks returns every CacheBlk this TagStore owns, in (set, way)
// order — used by the checkpoint package to serialize valid blocks.
func (t *TagStore) AllBlocks() []*CacheBlk {
	blocks := make([]*CacheBlk, 0, t.nSets*t.assoc)
	for _, set := range t.sets {
		blocks = append(blocks, set...)
	}
	return blocks
}

// BlockAt returns the CacheBlk occupying a specific (set, way) slot, for
// checkpoint restore — the counterpart to AllBlocks' (set, way) ordering.
func (t *TagStore) BlockAt(set, way int) *CacheBlk {
	return t.sets[set][way]
}

// BlockAddrOf reconstructs the block-aligned address blk currently holds.
func (t *TagStore) BlockAddrOf(blk *CacheBlk) uint64 {
	return blk.Tag*uint64(t.nSets)*uint64(t.blockSize) +
		uint64(blk.SetIndex)*uint64(t.blockSize)
}

func (t *TagStore) setIndex(addr uint64) int {
	return int((addr / uint64(t.blockSize)) % uint64(t.nSets))
}

func (t *TagStore) tagOf(addr uint64) uint64 {
	return addr / uint64(t.blockSize) / uint64(t.nSets)
}

func (t *TagStore) blockAddr(addr uint64) uint64 {
	return addr &^ uint64(t.blockSize-1)
}

// Lookup finds the block holding addr, if any. It performs no state
// mutation (spec.md §4.2: "lookup(addr) → Option<BlkRef>: pure").
func (t *TagStore) Lookup(addr uint64) (*CacheBlk, bool) {
	set := t.sets[t.setIndex(addr)]
	tag := t.tagOf(addr)

	for _, blk := range set {
		if blk.IsValid() && blk.Tag == tag {
			return blk, true
		}
	}

	return nil, false
}

// HandleAccess looks up pkt's block. On a hit, and if update is true, it
// bumps the block's LRU timestamp and, for a write that already holds
// Writable permission, marks it Dirty. On a miss it selects a victim via
// the configured VictimFinder and, if that victim is valid and dirty,
// returns a WritebackReq packet for it and clears the victim's Dirty bit,
// so the flush this call already produced is not mistaken for still-
// pending by a later HandleFill on the same block — installing the new
// data and tag is still HandleFill's job (spec.md §4.2: "on miss selects a
// victim... and does NOT yet install").
//
// It returns the hit block (nil on miss), the victim chosen on a miss (nil
// on a hit), the access latency, and any writeback produced by eviction.
func (t *TagStore) HandleAccess(
	pkt *mem.Packet, update bool, now sim.VTimeInSec,
) (blk *CacheBlk, victim *CacheBlk, latency sim.VTimeInSec, writeback *mem.Packet) {
	blk, hit := t.Lookup(pkt.Addr)
	if hit {
		if update {
			blk.LastRefTick = now
			if pkt.IsWrite() && blk.IsWritable() {
				blk.Status |= StatusDirty
			}
		}
		return blk, nil, t.hitLat, nil
	}

	set := t.sets[t.setIndex(pkt.Addr)]
	v := t.victim.FindVictim(set)

	if v.IsValid() && v.IsDirty() {
		writeback = t.writebackPacketFor(v)
		v.Status &^= StatusDirty
	}

	return nil, v, 0, writeback
}

func (t *TagStore) writebackPacketFor(blk *CacheBlk) *mem.Packet {
	addr := blk.Tag*uint64(t.nSets)*uint64(t.blockSize) +
		uint64(blk.SetIndex)*uint64(t.blockSize)

	data := make([]byte, t.blockSize)
	copy(data, blk.Data)

	req := mem.NewRequest(addr, t.blockSize, 0, 0)
	req.MasterID = blk.SrcMasterID

	pkt := mem.NewPacket(req, mem.WritebackReq, addr, t.blockSize)
	pkt.SetDynamicData(data)

	return pkt
}

// HandleFill installs fillData into victim, retagging it for fillAddr and
// transitioning it to newStatus (spec.md §4.2: "installs data from
// fill_pkt into the chosen block, transitioning to new_state"). If victim
// still holds a valid, dirty block, HandleFill produces that writeback
// itself — a prior HandleAccess on the same victim already clears Dirty
// once it has handed back its own writeback, so this only fires for a
// caller that installs into a dirty victim without a preceding
// HandleAccess on it, never a second time for the same eviction.
func (t *TagStore) HandleFill(
	victim *CacheBlk,
	fillAddr uint64,
	fillData []byte,
	newStatus Status,
	srcMaster mem.MasterID,
	now sim.VTimeInSec,
) (extraWriteback *mem.Packet) {
	if victim.IsValid() && victim.IsDirty() {
		extraWriteback = t.writebackPacketFor(victim)
	}

	victim.Tag = t.tagOf(fillAddr)
	victim.Status = newStatus | StatusValid
	victim.SrcMasterID = srcMaster
	victim.LastRefTick = now
	copy(victim.Data, fillData)

	return extraWriteback
}

// HandleSnoop applies an externally driven coherence transition to blk,
// as decided by the CoherenceDriver (spec.md §4.2: "external state
// transition driven by the coherence protocol").
func (t *TagStore) HandleSnoop(blk *CacheBlk, newStatus Status) {
	blk.Status = newStatus
}

// InvalidateBlk unconditionally demotes the block at addr to Invalid, if
// present (spec.md §4.2).
func (t *TagStore) InvalidateBlk(addr uint64) {
	if blk, ok := t.Lookup(addr); ok {
		blk.Invalidate()
	}
}
