package mem

import (
	"github.com/rs/xid"

	"github.com/archsim/memhier/sim"
)

// ReqFlags is the bitset of access flags carried on a Request
// (spec.md §3: "{uncacheable, locked, prefetch, instruction, …}").
type ReqFlags uint32

// The access flag bits named in spec.md §3.
const (
	FlagUncacheable ReqFlags = 1 << iota
	FlagLocked
	FlagPrefetch
	FlagInstruction
	FlagReqNoAllocate
)

// Has reports whether every bit set in want is also set in f.
func (f ReqFlags) Has(want ReqFlags) bool { return f&want == want }

// MasterID identifies a memory-requesting agent for statistics attribution
// (spec.md §3 "thread/CPU identifiers"; §6 "per-master-ID accounting").
type MasterID int

// Request is the description of a single memory access: what address, how
// large, on whose behalf, and when it was issued. Its issuer and the
// Translator fill in VAddr, PAddr and MasterID before the first Packet is
// built from it, and nothing changes it after that; Packet carries it through the hierarchy
// and response packets still reference the original Request.
type Request struct {
	id string

	VAddr uint64
	PAddr uint64
	Size  int

	Flags ReqFlags

	PC       uint64
	ThreadID int
	MasterID MasterID

	IssueTick sim.VTimeInSec
}

// NewRequest creates a Request for an access of size bytes at paddr, issued
// at the given tick. VAddr defaults to paddr; callers that care about the
// virtual/physical distinction set VAddr explicitly after construction.
func NewRequest(paddr uint64, size int, flags ReqFlags, issueTick sim.VTimeInSec) *Request {
	return &Request{
		id:        xid.New().String(),
		VAddr:     paddr,
		PAddr:     paddr,
		Size:      size,
		Flags:     flags,
		IssueTick: issueTick,
	}
}

// ID returns the Request's unique identifier, generated once at creation
// and stable for the Request's lifetime (teacher: req.go's xid.New() per
// request).
func (r *Request) ID() string { return r.id }

// IsUncacheable reports whether this request must bypass the tag store.
func (r *Request) IsUncacheable() bool { return r.Flags.Has(FlagUncacheable) }

// IsLocked reports whether this request is part of a load-linked /
// store-conditional pair.
func (r *Request) IsLocked() bool { return r.Flags.Has(FlagLocked) }

// IsPrefetch reports whether this request was generated speculatively by a
// Prefetcher rather than by architectural execution.
func (r *Request) IsPrefetch() bool { return r.Flags.Has(FlagPrefetch) }

// IsInstFetch reports whether this request is an instruction fetch.
func (r *Request) IsInstFetch() bool { return r.Flags.Has(FlagInstruction) }
