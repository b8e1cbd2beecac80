// Package prefetcher implements the speculative-fill hook spec.md §2 item
// 6 describes: something that "observes access stream; enqueues
// speculative fills via the MSHRQueue." The cache controller calls it after
// every access and is responsible for actually issuing whatever addresses
// it suggests — the Prefetcher itself never touches the MSHR table
// directly, keeping it a pure function of the access stream.
package prefetcher

import "github.com/archsim/memhier/mem"

// Prefetcher observes completed accesses and suggests additional
// block-aligned addresses worth fetching speculatively.
type Prefetcher interface {
	// Notify is called after every demand access resolves (hit or miss).
	// It returns zero or more block addresses the cache should consider
	// issuing HardPFReq packets for.
	Notify(pkt *mem.Packet, blockAddr uint64, hit bool) []uint64
}

// NextLine is the simplest useful Prefetcher: on every miss, it suggests
// the block immediately following the one just fetched.
type NextLine struct {
	blockSize int
}

// NewNextLine creates a NextLine prefetcher for the given block size.
func NewNextLine(blockSize int) *NextLine {
	return &NextLine{blockSize: blockSize}
}

// Notify suggests blockAddr+blockSize on a miss, and nothing on a hit —
// the line a hit landed in is presumably already warm, so the access
// stream's locality is better spent one line further out.
func (p *NextLine) Notify(pkt *mem.Packet, blockAddr uint64, hit bool) []uint64 {
	if hit || pkt.Req.IsPrefetch() {
		return nil
	}
	return []uint64{blockAddr + uint64(p.blockSize)}
}

// None is a Prefetcher that never suggests anything, used when
// prefetch_on_access is configured off.
type None struct{}

// Notify always returns nil.
func (None) Notify(*mem.Packet, uint64, bool) []uint64 { return nil }
