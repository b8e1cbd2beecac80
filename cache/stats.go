package cache

import "github.com/archsim/memhier/mem"

// Stats is the controller's own counters, mirroring spec.md §6's per-command
// breakdown ("L2.hits.ReadReq") and the per-master-ID accounting the
// original implementation keeps alongside it. The stats package aggregates
// these into its sqlite-backed registry under Name-prefixed keys.
type Stats struct {
	Name string

	Hits   map[mem.Command]uint64
	Misses map[mem.Command]uint64

	HitsByMaster   map[mem.MasterID]uint64
	MissesByMaster map[mem.MasterID]uint64

	FastWrites uint64
}

// NewStats creates a zeroed Stats for a controller named name.
func NewStats(name string) *Stats {
	return &Stats{
		Name:           name,
		Hits:           make(map[mem.Command]uint64),
		Misses:         make(map[mem.Command]uint64),
		HitsByMaster:   make(map[mem.MasterID]uint64),
		MissesByMaster: make(map[mem.MasterID]uint64),
	}
}
