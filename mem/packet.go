package mem

import (
	"github.com/rs/xid"

	"github.com/archsim/memhier/sim"
)

// PktFlags is the bitset of transitions a Packet accumulates as it moves
// through the hierarchy (spec.md §3 and §9: "model as a small set of
// booleans in one word").
type PktFlags uint32

// The packet flag bits named in spec.md §3.
const (
	FlagSatisfied PktFlags = 1 << iota
	FlagNackedLine
	FlagSharedLine
	FlagSnoopCommit
	FlagCacheLineFill
	FlagNoAllocate
)

// Result is the terminal disposition of a Packet (spec.md §3).
type Result int

// The result values named in spec.md §3.
const (
	Pending Result = iota
	Success
	BadAddress
	Nacked
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "Pending"
	case Success:
		return "Success"
	case BadAddress:
		return "BadAddress"
	case Nacked:
		return "Nacked"
	default:
		return "UnknownResult"
	}
}

// SenderState is the typed back-reference a cache attaches to a packet it
// sends to the memory side, so handleResponse can recover the owning MSHR
// without a borrowed pointer (spec.md §9: "an index into an MSHR table, not
// a borrowed pointer"). BlockAddr is that index — the key the MSHRQueue's
// outstanding-miss table is keyed on.
type SenderState struct {
	BlockAddr uint64
}

// Packet is an owned message carrying a Request plus an optional payload
// (spec.md §3). A Packet is owned by exactly one actor at a time; ownership
// transfers atomically on a successful Port.SendTiming.
type Packet struct {
	id string

	Req *Request
	Cmd Command

	// OrigCmd remembers the command the packet was created with, so a
	// coherence-driven rewrite of Cmd (spec.md §4.5 "busCmd... e.g. a read
	// miss... may become an upgrade") can be undone if the send that
	// rewrite was for ends up failing (spec.md §4.4 "restoreOrigCmd").
	OrigCmd Command

	Addr uint64
	Size int

	data        []byte
	dynamicData bool

	flags  PktFlags
	Result Result

	SenderState *SenderState

	// Time is the earliest tick at which the packet may be delivered
	// (spec.md §3 "time"); the issuer sets it when scheduling the matching
	// Port.SendTiming event.
	Time sim.VTimeInSec
}

// NewPacket creates a request packet for req with the given command,
// targeting addr/size. Size is usually req.Size but callers building
// block-sized memory-side requests (fills, writebacks) pass the block
// size explicitly.
func NewPacket(req *Request, cmd Command, addr uint64, size int) *Packet {
	return &Packet{
		id:      xid.New().String(),
		Req:     req,
		Cmd:     cmd,
		OrigCmd: cmd,
		Addr:    addr,
		Size:    size,
	}
}

// SetBusCmd rewrites p's command for coherence purposes (spec.md §4.5
// "busCmd"), leaving OrigCmd untouched so RestoreOrigCmd can undo it.
func (p *Packet) SetBusCmd(cmd Command) { p.Cmd = cmd }

// RestoreOrigCmd undoes any coherence-driven rewrite of p's command
// (spec.md §4.4 "restoreOrigCmd: undo any coherence-driven command rewrite
// when a send fails").
func (p *Packet) RestoreOrigCmd() { p.Cmd = p.OrigCmd }

// ID returns the packet's own identifier. It is distinct from Req.ID():
// a request packet and the memory-side packet issued on its behalf for a
// miss share a Request but have different Packet identities (spec.md §3
// "MSHR... optional sender_packet: the in-flight packet sent to memory,
// distinct identity from the target").
func (p *Packet) ID() string { return p.id }

// MakeResponse mutates p in place into the response for its own command,
// preserving its Request and identity (spec.md §3: "a response packet
// either reuses the original request packet... with the same Request").
func (p *Packet) MakeResponse() {
	p.Cmd = p.Cmd.ResponseFor()
}

// NewResponseFor allocates a fresh response packet sharing orig's Request,
// for cases where the request packet itself must keep flowing elsewhere
// (spec.md §3: "or is freshly allocated with the same Request").
func NewResponseFor(orig *Packet) *Packet {
	resp := &Packet{
		id:   xid.New().String(),
		Req:  orig.Req,
		Cmd:  orig.Cmd.ResponseFor(),
		Addr: orig.Addr,
		Size: orig.Size,
	}
	return resp
}

// SetFlag sets every bit in f.
func (p *Packet) SetFlag(f PktFlags) { p.flags |= f }

// ClearFlag clears every bit in f.
func (p *Packet) ClearFlag(f PktFlags) { p.flags &^= f }

// HasFlag reports whether every bit in f is set.
func (p *Packet) HasFlag(f PktFlags) bool { return p.flags&f == f }

// IsSatisfied reports whether the packet's data/result is final and the
// caller may treat it as done.
func (p *Packet) IsSatisfied() bool { return p.HasFlag(FlagSatisfied) }

// NoAllocate reports whether a response should not be installed into the
// tag store (spec.md §4.3 "handleResponse": "if pkt.is_cache_fill() &&
// !pkt.no_allocate").
func (p *Packet) NoAllocate() bool { return p.HasFlag(FlagNoAllocate) }

// IsCacheFill reports whether this response carries a whole block's worth
// of fill data that should be installed into the tag store.
func (p *Packet) IsCacheFill() bool {
	return p.HasFlag(FlagCacheLineFill) && p.Cmd == ReadResp
}

// IsRead reports whether the packet's command is in the read family.
func (p *Packet) IsRead() bool {
	return p.Cmd == ReadReq || p.Cmd == HardPFReq || p.Cmd == ReadResp
}

// IsWrite reports whether the packet's command is in the write family.
func (p *Packet) IsWrite() bool {
	switch p.Cmd {
	case WriteReq, WritebackReq, WriteInvalidateReq, WriteResp:
		return true
	default:
		return false
	}
}

// BlockAddr returns the block-aligned address p falls within, given
// blockSize.
func (p *Packet) BlockAddr(blockSize int) uint64 {
	return p.Addr &^ uint64(blockSize-1)
}

// SetStaticData points the packet at data without taking ownership: the
// caller (typically a CacheBlk) retains the backing array and the packet
// must not outlive it unmodified. This mirrors the teacher/spec distinction
// between a packet's "static" borrowed payload and a "dynamic" owned one
// (spec.md §3); in Go there is no free() to get wrong, but the distinction
// still documents who may safely mutate the slice later.
func (p *Packet) SetStaticData(data []byte) {
	p.data = data
	p.dynamicData = false
}

// SetDynamicData gives the packet its own owned copy of data.
func (p *Packet) SetDynamicData(data []byte) {
	p.data = data
	p.dynamicData = true
}

// IsDynamicData reports whether the packet owns its payload slice outright.
func (p *Packet) IsDynamicData() bool { return p.dynamicData }

// Data returns the packet's current payload, which may be nil if none has
// been attached yet.
func (p *Packet) Data() []byte { return p.data }

// AllocateData ensures the packet owns a zeroed payload slice of p.Size
// bytes, for write requests built with only a size and no data yet.
func (p *Packet) AllocateData() {
	if p.data == nil {
		p.SetDynamicData(make([]byte, p.Size))
	}
}

// CopyDataFrom copies the bytes of p's address range out of block, which
// must span p's full range. Used to fill a read response from a CacheBlk
// (spec.md §4.3 step 5: "copy the relevant bytes out of the filled block
// into the target packet").
func (p *Packet) CopyDataFrom(blockAddr uint64, block []byte) {
	offset := int(p.Addr - blockAddr)
	buf := make([]byte, p.Size)
	copy(buf, block[offset:offset+p.Size])
	p.SetDynamicData(buf)
}

// CopyDataInto writes p's payload into block at the offset implied by
// blockAddr, for write requests and fast write-allocate installs.
func (p *Packet) CopyDataInto(blockAddr uint64, block []byte) {
	offset := int(p.Addr - blockAddr)
	copy(block[offset:offset+p.Size], p.data)
}

// Meta satisfies sim.Msg so a Packet can be carried directly on a sim.Port.
func (p *Packet) Meta() *sim.MsgMeta {
	return &sim.MsgMeta{ID: p.id, Time: p.Time}
}
