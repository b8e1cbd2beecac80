package tagstore

// A VictimFinder decides which way in a set should be evicted to make room
// for a new block (spec.md §4.2: "Replacement is pluggable; the default is
// LRU per set"). It is consulted only on a miss.
type VictimFinder interface {
	FindVictim(set []*CacheBlk) *CacheBlk
}

// LRUVictimFinder is the default replacement policy: prefer an invalid
// (empty) way, otherwise the least-recently-referenced way, breaking ties
// on the lowest way index (spec.md §4.2: "Tie-breaks on equal last_ref_tick
// choose the lowest way index").
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a VictimFinder implementing LRU-per-set
// eviction.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim scans set for an empty way first, then the least-recently-used
// valid way.
func (f *LRUVictimFinder) FindVictim(set []*CacheBlk) *CacheBlk {
	for _, blk := range set {
		if !blk.IsValid() {
			return blk
		}
	}

	victim := set[0]
	for _, blk := range set[1:] {
		if blk.LastRefTick < victim.LastRefTick {
			victim = blk
		}
	}

	return victim
}
