// Package tagstore implements the set-associative array of CacheBlks the
// cache controller looks up and fills on every access (spec.md §4.2).
package tagstore

import (
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// Status is the coherence/validity bitset carried on every CacheBlk
// (spec.md §3: "{Valid, Writable, Dirty, Readable, Prefetched}").
type Status uint8

// The block status bits named in spec.md §3.
const (
	StatusValid Status = 1 << iota
	StatusWritable
	StatusDirty
	StatusReadable
	StatusPrefetched
)

// Has reports whether every bit in want is set.
func (s Status) Has(want Status) bool { return s&want == want }

// CacheBlk is one set-associative slot: fixed block_size bytes of data plus
// the metadata the tag store and coherence driver need (spec.md §3).
// A CacheBlk is allocated once per (set, way) at TagStore construction and
// is mutated in place for its whole lifetime — it is destroyed only by
// replacement, never freed and reallocated.
type CacheBlk struct {
	SetIndex int
	WayIndex int

	Tag    uint64
	Status Status

	Data []byte

	LastRefTick sim.VTimeInSec
	SrcMasterID mem.MasterID
}

// IsValid reports whether the block currently holds live data.
func (b *CacheBlk) IsValid() bool { return b.Status.Has(StatusValid) }

// IsWritable reports whether the block may be written without a coherence
// upgrade.
func (b *CacheBlk) IsWritable() bool { return b.Status.Has(StatusWritable) }

// IsDirty reports whether the block holds data newer than memory's copy.
func (b *CacheBlk) IsDirty() bool { return b.Status.Has(StatusDirty) }

// Addr reconstructs the block-aligned address this block currently holds,
// given the tag store's set-index shift and block size.
func (b *CacheBlk) Addr(blockSize, nSets int) uint64 {
	return b.Tag*uint64(nSets)*uint64(blockSize) +
		uint64(b.SetIndex)*uint64(blockSize)
}

// Invalidate unconditionally demotes the block to Invalid, dropping any
// dirty/writable/readable state along with it (spec.md §4.2
// "invalidateBlk: unconditional demotion to Invalid").
func (b *CacheBlk) Invalidate() {
	b.Status = 0
}
