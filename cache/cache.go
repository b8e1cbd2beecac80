// Package cache implements the cache controller state machine spec.md §4.3
// describes: the component that reconciles tag lookup, MSHR accounting,
// coherence, and the writeback buffer on every request, exposing a
// cpu-side and a mem-side sim.Port.
package cache

import (
	"log"

	"github.com/archsim/memhier/config"
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/coherence"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/prefetcher"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// Scheduler is the narrow slice of sim.Engine the controller needs: the
// current tick, and the ability to schedule (and cancel) its own events.
// Cache never touches anything else on the engine, matching spec.md §1's
// treatment of the scheduler as an external collaborator reached only
// through the interfaces the core consumes.
type Scheduler interface {
	sim.TimeTeller
	sim.EventScheduler
}

// Cache is the controller: it composes a TagStore, an MSHR/writeback
// Queue, a CoherenceDriver, and a Prefetcher, and exposes a cpu-side and a
// mem-side Port (spec.md §2 item 7).
type Cache struct {
	*sim.ComponentBase

	cfg       config.Config
	blockSize int

	tags  *tagstore.TagStore
	mshrq *mshr.Queue
	coh   coherence.Driver
	pf    prefetcher.Prefetcher

	cpuSide sim.Port
	memSide sim.Port

	scheduler Scheduler

	stats *Stats

	// victims remembers, per in-flight miss, which CacheBlk HandleFill
	// should install the response into — a side table rather than a field
	// on mshr.MSHR so the mshr package stays independent of tagstore.
	victims map[uint64]*tagstore.CacheBlk

	// pendingInvalidate marks a block address whose in-service MSHR
	// should self-invalidate the instant its fill arrives, because a
	// snoop observed the miss in flight (spec.md §4.3 step 4,
	// §8 invariant 5).
	pendingInvalidate map[uint64]bool

	// blocked is true once the MSHR table is full and the cache has
	// refused a CPU-side request; cleared (with a retry signal to the CPU
	// side) the next time an MSHR retires.
	blocked bool

	cpuSideBlockedQueue []*mem.Packet
	memSideBlocked      *pendingMemSend
}

type pendingMemSend struct {
	pkt *mem.Packet
	m   *mshr.MSHR
	wb  *mshr.WritebackEntry
}

// New builds a Cache named name, configured by cfg, driven by scheduler.
// Its two ports are not yet wired — call CPUSidePort().SetPeer and
// MemSidePort().SetPeer (or sim helpers that do so) before use.
func New(name string, cfg config.Config, scheduler Scheduler) *Cache {
	if err := cfg.Validate(); err != nil {
		log.Panicf("cache %s: invalid config: %v", name, err)
	}

	c := &Cache{
		ComponentBase:      sim.NewComponentBase(name),
		cfg:                cfg,
		blockSize:          cfg.BlockSize,
		tags:               tagstore.New(cfg.BlockSize, cfg.Assoc, cfg.NSets, sim.VTimeInSec(cfg.HitLatency)),
		mshrq:              mshr.NewQueue(cfg.MSHREntries, cfg.WritebackEntries),
		scheduler:          scheduler,
		stats:              NewStats(name),
		victims:           make(map[uint64]*tagstore.CacheBlk),
		pendingInvalidate: make(map[uint64]bool),
	}

	c.coh = coherence.NewDriver(cfg.CoherenceProtocol, nil, true)

	if cfg.PrefetchOnAccess {
		c.pf = prefetcher.NewNextLine(cfg.BlockSize)
	} else {
		c.pf = prefetcher.None{}
	}

	c.cpuSide = sim.NewPort(c, name+".cpu_side")
	c.memSide = sim.NewPort(c, name+".mem_side")
	c.AddPort("cpu_side", c.cpuSide)
	c.AddPort("mem_side", c.memSide)

	return c
}

// CPUSidePort returns the port a CPU or an outer cache wires into.
func (c *Cache) CPUSidePort() sim.Port { return c.cpuSide }

// MemSidePort returns the port the next memory level wires into.
func (c *Cache) MemSidePort() sim.Port { return c.memSide }

// SetUpstreamInvalidator rewires the coherence driver's upstream
// propagation target — used when stacking this Cache below an inner
// cache level, after both are constructed.
func (c *Cache) SetUpstreamInvalidator(up coherence.UpstreamInvalidator) {
	c.coh = coherence.NewDriver(c.cfg.CoherenceProtocol, up, c.coh.AllowFastWrites())
}

// Stats returns the controller's statistics counters.
func (c *Cache) Stats() *Stats { return c.stats }

// TagStore returns the controller's tag array, for checkpoint
// serialization.
func (c *Cache) TagStore() *tagstore.TagStore { return c.tags }

// MSHRQueue returns the controller's miss/writeback tables, for checkpoint
// serialization.
func (c *Cache) MSHRQueue() *mshr.Queue { return c.mshrq }

// Drain implements spec.md §5's quiescence requirement for this cache: it
// refuses new CPU-side work and reports whether every outstanding MSHR and
// writeback has resolved, matching the drain-before-checkpoint contract
// spec.md §6 sets (spec §6 "Timing-only packet state... must be drained to
// Drained before serialization").
func (c *Cache) Drain() bool {
	c.blocked = true
	return !c.mshrq.HavePending() &&
		len(c.mshrq.AllOutstanding()) == 0 &&
		len(c.mshrq.AllWritebacks()) == 0 &&
		c.memSideBlocked == nil &&
		len(c.cpuSideBlockedQueue) == 0
}

func (c *Cache) now() sim.VTimeInSec { return c.scheduler.CurrentTime() }

// RecvTiming dispatches an inbound timing packet by which port it arrived
// on (spec.md §4.3: "dispatches by direction and mode").
func (c *Cache) RecvTiming(port sim.Port, msg sim.Msg) bool {
	pkt, ok := msg.(*mem.Packet)
	if !ok {
		panic("cache: non-Packet message on a timing port")
	}

	switch port {
	case c.cpuSide:
		return c.recvFromCPUSide(pkt)
	case c.memSide:
		return c.recvFromMemSide(pkt)
	default:
		panic("cache: RecvTiming on a port this cache does not own")
	}
}

func (c *Cache) recvFromCPUSide(pkt *mem.Packet) bool {
	if pkt.HasFlag(mem.FlagSnoopCommit) {
		return c.snoop(pkt)
	}

	if c.blocked {
		return false
	}

	// A miss that finds the MSHR table full sets blocked without tracking
	// pkt, so the sender keeps it and re-sends on the retry.
	c.access(pkt)
	return !c.blocked
}

func (c *Cache) recvFromMemSide(pkt *mem.Packet) bool {
	if pkt.Cmd.IsResponse() {
		c.handleResponse(pkt)
	} else {
		c.snoop(pkt)
	}
	return true
}

// RecvAtomic dispatches an inbound atomic-mode packet by port.
func (c *Cache) RecvAtomic(port sim.Port, msg sim.Msg) sim.VTimeInSec {
	pkt, ok := msg.(*mem.Packet)
	if !ok {
		panic("cache: non-Packet message on an atomic port")
	}

	switch port {
	case c.cpuSide:
		return c.doAtomicAccess(pkt)
	case c.memSide:
		return c.probeAtomic(pkt)
	default:
		panic("cache: RecvAtomic on a port this cache does not own")
	}
}

// RecvFunctional dispatches an inbound functional-mode packet by port.
func (c *Cache) RecvFunctional(port sim.Port, msg sim.Msg) {
	pkt, ok := msg.(*mem.Packet)
	if !ok {
		panic("cache: non-Packet message on a functional port")
	}

	switch port {
	case c.cpuSide:
		c.doFunctionalAccess(pkt)
	case c.memSide:
		c.functionalFromMemSide(pkt)
	default:
		panic("cache: RecvFunctional on a port this cache does not own")
	}
}

// RecvRetry re-attempts whatever this cache was blocked trying to send out
// port.
func (c *Cache) RecvRetry(port sim.Port) {
	switch port {
	case c.cpuSide:
		c.retryCPUSide()
	case c.memSide:
		c.retryMemSide()
	default:
		panic("cache: RecvRetry on a port this cache does not own")
	}
}

// cacheEventKind distinguishes the handful of self-scheduled events the
// controller uses to model the tick delay between deciding a packet is
// ready and actually attempting to send it.
type cacheEventKind int

const (
	eventCPUReply cacheEventKind = iota
	eventMemReply
)

type cacheEvent struct {
	sim.EventBase
	kind cacheEventKind
	pkt  *mem.Packet
}

// Handle dispatches a self-scheduled cacheEvent (spec.md §5: "the only
// 'waits' are conversions of a computation into a scheduled event").
func (c *Cache) Handle(e sim.Event) error {
	ce, ok := e.(*cacheEvent)
	if !ok {
		panic("cache: unexpected event type")
	}

	switch ce.kind {
	case eventCPUReply:
		c.trySendCPU(ce.pkt)
	case eventMemReply:
		c.trySendMemReply(ce.pkt)
	default:
		panic("cache: unknown cacheEvent kind")
	}

	return nil
}

func (c *Cache) scheduleCPUReply(pkt *mem.Packet, at sim.VTimeInSec) {
	pkt.Time = at
	c.scheduler.Schedule(&cacheEvent{
		EventBase: sim.NewEventBase(at, c),
		kind:      eventCPUReply,
		pkt:       pkt,
	})
}

func (c *Cache) scheduleMemReply(pkt *mem.Packet, at sim.VTimeInSec) {
	pkt.Time = at
	c.scheduler.Schedule(&cacheEvent{
		EventBase: sim.NewEventBase(at, c),
		kind:      eventMemReply,
		pkt:       pkt,
	})
}

// trySendCPU attempts to deliver pkt out the cpu-side port, queueing it
// behind anything already blocked to preserve per-MSHR reply ordering
// (spec.md §8 invariant 4).
func (c *Cache) trySendCPU(pkt *mem.Packet) {
	if len(c.cpuSideBlockedQueue) > 0 {
		c.cpuSideBlockedQueue = append(c.cpuSideBlockedQueue, pkt)
		return
	}

	if !c.cpuSide.SendTiming(pkt) {
		c.cpuSideBlockedQueue = append(c.cpuSideBlockedQueue, pkt)
	}
}

func (c *Cache) retryCPUSide() {
	for len(c.cpuSideBlockedQueue) > 0 {
		pkt := c.cpuSideBlockedQueue[0]
		if !c.cpuSide.SendTiming(pkt) {
			return
		}
		c.cpuSideBlockedQueue = c.cpuSideBlockedQueue[1:]
	}
}

func (c *Cache) trySendMemReply(pkt *mem.Packet) {
	if !c.memSide.SendTiming(pkt) {
		log.Printf("%s: snoop response to %#x nacked at the port, dropping per spec's no-retry-on-bus-nack design", c.Name(), pkt.Addr)
	}
}

// unblockIfPossible clears the cache's resource-exhaustion block and
// notifies the CPU side it may resend, once room exists in the MSHR table.
func (c *Cache) unblockIfPossible() {
	if c.blocked && !c.mshrq.IsFull() {
		c.blocked = false
		c.cpuSide.SendRetry()
	}
}
