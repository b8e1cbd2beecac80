package mshr

import (
	"log"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// Queue holds the two fixed-capacity tables spec.md §2 item 4 and §4.4
// describe: outstanding misses keyed by block address, and a writeback
// buffer of evicted dirty blocks awaiting transmission. At most one MSHR
// exists per block address at a time (spec.md §3 global invariant).
type Queue struct {
	missCapacity int
	wbCapacity   int

	outstanding map[uint64]*MSHR
	order       []uint64 // insertion order, for FIFO getPacket/target ordering

	writebacks []*WritebackEntry
}

// NewQueue creates a Queue with the given miss-table and writeback-table
// capacities.
func NewQueue(missCapacity, wbCapacity int) *Queue {
	return &Queue{
		missCapacity: missCapacity,
		wbCapacity:   wbCapacity,
		outstanding:  make(map[uint64]*MSHR),
	}
}

// IsFull reports whether the outstanding-miss table is at capacity.
func (q *Queue) IsFull() bool { return len(q.outstanding) >= q.missCapacity }

// WritebacksFull reports whether the writeback table is at capacity.
func (q *Queue) WritebacksFull() bool { return len(q.writebacks) >= q.wbCapacity }

// FindMSHR returns the outstanding MSHR for blockAddr, if any
// (spec.md §4.4 "findMSHR(addr) → Option<MSHR>").
func (q *Queue) FindMSHR(blockAddr uint64) (*MSHR, bool) {
	m, ok := q.outstanding[blockAddr]
	return m, ok
}

// HandleMiss creates a new MSHR for blockAddr or, if one is already
// outstanding, coalesces pkt onto it as another target
// (spec.md §4.4 "handleMiss(pkt, size, ready_tick)"). It panics if a new
// MSHR is needed but the table is already full: the cache controller must
// check IsFull (or havePending capacity) before accepting a miss it cannot
// track, the same discipline sim.Buffer enforces on overflow.
func (q *Queue) HandleMiss(
	blockAddr uint64, pkt *mem.Packet, size int, readyTick sim.VTimeInSec,
) (m *MSHR, isNew bool) {
	if m, ok := q.outstanding[blockAddr]; ok {
		m.AddTarget(pkt)
		return m, false
	}

	if q.IsFull() {
		log.Panic("MSHR queue overflow: miss table is full")
	}

	m = &MSHR{
		BlockAddr: blockAddr,
		Size:      size,
		IssueTick: readyTick,
		OrigCmd:   pkt.Cmd,
		BusCmd:    pkt.Cmd,
	}
	m.AddTarget(pkt)

	q.outstanding[blockAddr] = m
	q.order = append(q.order, blockAddr)

	return m, true
}

// DoWriteback enqueues pkt (a WritebackReq) on the writeback side
// (spec.md §4.4 "doWriteback(pkt): enqueue on the writeback side").
func (q *Queue) DoWriteback(pkt *mem.Packet) *WritebackEntry {
	if q.WritebacksFull() {
		log.Panic("MSHR queue overflow: writeback table is full")
	}

	entry := &WritebackEntry{BlockAddr: pkt.Addr, Pkt: pkt}
	q.writebacks = append(q.writebacks, entry)

	return entry
}

// FindWrites returns every pending writeback entry covering blockAddr
// (spec.md §4.4 "findWrites(addr, out): all pending writeback MSHRs at
// that address"). In practice at most one entry exists per address, but
// the table is scanned rather than assumed unique to match the spec's
// plural contract.
func (q *Queue) FindWrites(blockAddr uint64) []*WritebackEntry {
	var found []*WritebackEntry
	for _, wb := range q.writebacks {
		if wb.BlockAddr == blockAddr {
			found = append(found, wb)
		}
	}
	return found
}

// MarkInService records that senderPkt now carries blockAddr's request on
// the bus, and attaches the typed back-reference handleResponse will use to
// recover m (spec.md §4.4 "markInService(pkt, mshr)").
func (q *Queue) MarkInService(senderPkt *mem.Packet, m *MSHR) {
	m.InService = true
	m.SenderPkt = senderPkt
	m.BusCmd = senderPkt.Cmd
	senderPkt.SenderState = &mem.SenderState{BlockAddr: m.BlockAddr}
}

// GetPacket returns the next unit of work the cache should try to send on
// the memory-side port: the first target of the earliest-enqueued
// not-yet-in-service MSHR, or — if every MSHR is already in service — the
// packet of the earliest not-yet-in-service, not-yet-transmitted
// writeback (spec.md §4.4: "next packet to transmit; miss > writeback
// priority is implementation choice, must be consistent" — this module
// consistently prefers misses).
func (q *Queue) GetPacket() (pkt *mem.Packet, m *MSHR, wb *WritebackEntry) {
	for _, addr := range q.order {
		cand := q.outstanding[addr]
		if cand == nil || cand.InService {
			continue
		}
		return cand.Targets[0], cand, nil
	}

	for _, entry := range q.writebacks {
		if !entry.InService {
			return entry.Pkt, nil, entry
		}
	}

	return nil, nil, nil
}

// RestoreOrigCmd undoes a coherence-driven command rewrite on pkt when the
// send it was prepared for failed (spec.md §4.4).
func (q *Queue) RestoreOrigCmd(pkt *mem.Packet) { pkt.RestoreOrigCmd() }

// HavePending reports whether any MSHR or writeback is still waiting to be
// sent on the bus.
func (q *Queue) HavePending() bool {
	for _, addr := range q.order {
		if m := q.outstanding[addr]; m != nil && !m.InService {
			return true
		}
	}
	for _, wb := range q.writebacks {
		if !wb.InService {
			return true
		}
	}
	return false
}

// DoMasterRequest reports whether the cache should currently be trying to
// acquire the memory-side bus. spec.md §4.4 lists it alongside HavePending
// without distinguishing the two further; this module treats them as the
// same question, since nothing in this design models a separate
// bus-arbitration phase.
func (q *Queue) DoMasterRequest() bool { return q.HavePending() }

// Retire removes m from the outstanding table once every target has been
// serviced (spec.md §3 "freed on response once all targets have been
// serviced").
func (q *Queue) Retire(blockAddr uint64) {
	delete(q.outstanding, blockAddr)
	for i, addr := range q.order {
		if addr == blockAddr {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// RetireWriteback removes entry from the writeback table once it has been
// transmitted (or superseded by another cache taking ownership).
func (q *Queue) RetireWriteback(entry *WritebackEntry) {
	for i, wb := range q.writebacks {
		if wb == entry {
			q.writebacks = append(q.writebacks[:i], q.writebacks[i+1:]...)
			return
		}
	}
}

// AllOutstanding returns every currently tracked MSHR, for snoop lookup
// and drain/checkpoint logic.
func (q *Queue) AllOutstanding() map[uint64]*MSHR { return q.outstanding }

// AllWritebacks returns every currently tracked writeback entry.
func (q *Queue) AllWritebacks() []*WritebackEntry { return q.writebacks }

// Restore installs m directly into the outstanding table, for checkpoint
// restore (spec.md §6 "MSHR targets in original form"). Unlike HandleMiss
// it performs no coalescing or capacity check: restore replays exactly what
// Save captured.
func (q *Queue) Restore(m *MSHR) {
	q.outstanding[m.BlockAddr] = m
	q.order = append(q.order, m.BlockAddr)
}

// RestoreWriteback installs entry directly into the writeback table, for
// checkpoint restore.
func (q *Queue) RestoreWriteback(entry *WritebackEntry) {
	q.writebacks = append(q.writebacks, entry)
}
