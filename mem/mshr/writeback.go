package mshr

import "github.com/archsim/memhier/mem"

// WritebackEntry is exactly one evicted dirty block pending transmission
// to the next memory level (spec.md §3: "opaque beyond its block_addr and
// its data payload").
type WritebackEntry struct {
	BlockAddr uint64
	Pkt       *mem.Packet

	// InService means another cache has taken ownership of this line via a
	// snoop and this cache no longer needs to transmit the writeback itself
	// (spec.md §4.3 snoop step 5: "On a snoop invalidate: mark the
	// writeback in service").
	InService bool
}
