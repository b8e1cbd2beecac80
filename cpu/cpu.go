package cpu

import (
	"log"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// Scheduler is the narrow slice of sim.Engine TimingCPU needs, mirroring
// cache.Scheduler (spec.md §1's treatment of the event queue as an
// external collaborator).
type Scheduler interface {
	sim.TimeTeller
	sim.EventScheduler
}

// State names the points in TimingCPU's instruction lifecycle (spec.md
// §4.6).
type State int

// The states spec.md §4.6 names.
const (
	Idle State = iota
	Running
	IcacheRetry
	IcacheWaitResponse
	DcacheRetry
	DcacheWaitResponse
	Draining
	SwitchedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case IcacheRetry:
		return "IcacheRetry"
	case IcacheWaitResponse:
		return "IcacheWaitResponse"
	case DcacheRetry:
		return "DcacheRetry"
	case DcacheWaitResponse:
		return "DcacheWaitResponse"
	case Draining:
		return "Draining"
	case SwitchedOut:
		return "SwitchedOut"
	default:
		return "UnknownState"
	}
}

const fetchSize = 4

// TimingCPU is the single-issue, in-order model spec.md §4.6 describes: one
// instruction in flight at a time, alternating between an icache port and
// a dcache port, with retry-on-refusal and drain-before-suspend semantics.
type TimingCPU struct {
	*sim.ComponentBase

	scheduler  Scheduler
	isa        ISA
	translator mem.Translator

	icache sim.Port
	dcache sim.Port

	cyclePeriod sim.VTimeInSec

	state State
	pc    uint64

	curInst *Instruction

	heldIcachePkt *mem.Packet
	heldDcachePkt *mem.Packet

	lockedAddr    uint64
	hasLockedAddr bool

	drainTarget State
}

// New creates a TimingCPU named name, clocked every cyclePeriod seconds,
// decoding and executing instructions through isa and translating
// addresses through translator.
func New(name string, scheduler Scheduler, isa ISA, translator mem.Translator, cyclePeriod sim.VTimeInSec) *TimingCPU {
	c := &TimingCPU{
		ComponentBase: sim.NewComponentBase(name),
		scheduler:     scheduler,
		isa:           isa,
		translator:    translator,
		cyclePeriod:   cyclePeriod,
		state:         Idle,
	}

	c.icache = sim.NewPort(c, name+".icache_port")
	c.dcache = sim.NewPort(c, name+".dcache_port")
	c.AddPort("icache_port", c.icache)
	c.AddPort("dcache_port", c.dcache)

	return c
}

// ICachePort returns the port that wires into an instruction-side cache.
func (c *TimingCPU) ICachePort() sim.Port { return c.icache }

// DCachePort returns the port that wires into a data-side cache.
func (c *TimingCPU) DCachePort() sim.Port { return c.dcache }

// State returns the CPU's current lifecycle state.
func (c *TimingCPU) State() State { return c.state }

// PC returns the program counter of the instruction about to be (or
// currently being) fetched.
func (c *TimingCPU) PC() uint64 { return c.pc }

// SetPC sets the initial fetch address. Only valid while Idle.
func (c *TimingCPU) SetPC(pc uint64) {
	if c.state != Idle {
		panic("cpu: SetPC called outside Idle")
	}
	c.pc = pc
}

// LockState returns the reservation address recorded by an outstanding
// locked load, if any, for checkpoint serialization.
func (c *TimingCPU) LockState() (addr uint64, held bool) {
	return c.lockedAddr, c.hasLockedAddr
}

// RestoreLock installs a previously saved reservation, for checkpoint
// restore.
func (c *TimingCPU) RestoreLock(addr uint64, held bool) {
	c.lockedAddr = addr
	c.hasLockedAddr = held
}

// InvalidateUpstream implements coherence.UpstreamInvalidator: the dcache
// this CPU issues through calls it on every snoop/invalidate that reaches
// it, so a reservation can be lost even while the CPU sits idle between a
// locked load and its store-conditional, with no dcache packet of its own
// in flight to carry a FlagNackedLine back (spec.md §4.7; following
// original_source's BaseSimpleCPU lock-loss semantics, where any
// invalidate touching the locked line clears the reservation rather than
// waiting for the store-conditional to discover it).
func (c *TimingCPU) InvalidateUpstream(pkt *mem.Packet, _ bool) {
	if !c.hasLockedAddr || !pkt.Cmd.IsInvalidatingRequest() {
		return
	}

	if c.lockedAddr >= pkt.Addr && c.lockedAddr < pkt.Addr+uint64(pkt.Size) {
		c.hasLockedAddr = false
	}
}

// SaveRegisters returns the ISA's architectural register state, if it
// implements RegisterState, or nil otherwise.
func (c *TimingCPU) SaveRegisters() []byte {
	rs, ok := c.isa.(RegisterState)
	if !ok {
		return nil
	}
	return rs.SaveRegisters()
}

// LoadRegisters restores previously saved ISA register state. It is a no-op
// if the ISA does not implement RegisterState or data is empty.
func (c *TimingCPU) LoadRegisters(data []byte) {
	rs, ok := c.isa.(RegisterState)
	if !ok || len(data) == 0 {
		return
	}
	rs.LoadRegisters(data)
}

// Start transitions Idle → Running and issues the first fetch.
func (c *TimingCPU) Start() {
	if c.state != Idle {
		panic("cpu: Start called outside Idle")
	}
	c.state = Running
	c.fetch()
}

func (c *TimingCPU) now() sim.VTimeInSec { return c.scheduler.CurrentTime() }

// nextCycleEdge computes the earliest clock edge at or after t
// (spec.md §4.6 "next_cycle(mem_time)").
func (c *TimingCPU) nextCycleEdge(t sim.VTimeInSec) sim.VTimeInSec {
	if c.cyclePeriod <= 0 {
		return t
	}
	n := float64(t) / float64(c.cyclePeriod)
	edge := sim.VTimeInSec(float64(int64(n)) * float64(c.cyclePeriod))
	if edge < t {
		edge += c.cyclePeriod
	}
	return edge
}

// fetch implements spec.md §4.6's fetch(): build and send an
// instruction-fetch packet.
func (c *TimingCPU) fetch() {
	req := mem.NewRequest(c.pc, fetchSize, mem.FlagInstruction, c.now())

	if fault := c.translator.SetupFetchRequest(req); fault != nil {
		log.Printf("%s: fetch at pc=%#x faulted: %v", c.Name(), c.pc, fault)
		return
	}

	pkt := mem.NewPacket(req, mem.ReadReq, req.PAddr, fetchSize)
	pkt.AllocateData()

	if c.icache.SendTiming(pkt) {
		c.state = IcacheWaitResponse
	} else {
		c.heldIcachePkt = pkt
		c.state = IcacheRetry
	}
}

// issueDcache builds and sends the memory packet for a just-decoded memory
// reference instruction.
func (c *TimingCPU) issueDcache(inst *Instruction) {
	var flags mem.ReqFlags
	if inst.IsLocked {
		flags |= mem.FlagLocked
	}

	req := mem.NewRequest(inst.MemAddr, inst.MemSize, flags, c.now())

	var fault mem.Fault
	var cmd mem.Command
	if inst.IsStore {
		fault = c.translator.TranslateDataWrite(req)
		cmd = mem.WriteReq
	} else {
		fault = c.translator.TranslateDataRead(req)
		cmd = mem.ReadReq
	}

	if fault != nil {
		log.Printf("%s: dcache translation at pc=%#x faulted: %v", c.Name(), inst.PC, fault)
		c.advanceInst(inst, fault)
		return
	}

	pkt := mem.NewPacket(req, cmd, req.PAddr, inst.MemSize)
	if inst.IsStore {
		pkt.SetDynamicData(make([]byte, inst.MemSize))
	}

	if c.dcache.SendTiming(pkt) {
		c.state = DcacheWaitResponse
	} else {
		c.heldDcachePkt = pkt
		c.state = DcacheRetry
	}
}

// completeIfetch implements spec.md §4.6's completeIfetch(pkt): decode the
// fetched instruction and either issue a dcache access or advance directly.
func (c *TimingCPU) completeIfetch(pkt *mem.Packet) {
	inst, fault := c.isa.Decode(pkt.Addr, pkt.Data())
	if fault != nil {
		c.advanceInst(&Instruction{PC: pkt.Addr, NextPC: pkt.Addr + fetchSize}, fault)
		return
	}

	c.curInst = inst

	if inst.IsMemRef {
		c.issueDcache(inst)
		return
	}

	fault = c.isa.Execute(inst, false)
	c.advanceInst(inst, fault)
}

// completeDataAccess implements spec.md §4.6's completeDataAccess(pkt):
// locked-RMW bookkeeping, then execution and advance.
func (c *TimingCPU) completeDataAccess(pkt *mem.Packet) {
	inst := c.curInst

	if !pkt.Req.IsLocked() {
		fault := c.isa.Execute(inst, false)
		c.advanceInst(inst, fault)
		return
	}

	if !pkt.IsWrite() {
		// Locked load: record the reservation address the matching
		// store-conditional must later confirm still holds.
		c.lockedAddr = pkt.Req.PAddr
		c.hasLockedAddr = true
		fault := c.isa.Execute(inst, false)
		c.advanceInst(inst, fault)
		return
	}

	// Store-conditional: it succeeds only if this CPU still holds the
	// reservation it recorded on the matching locked load, and the
	// response did not come back marked NACKED_LINE (meaning a coherence
	// event — a snoop invalidate arriving while the store was in flight —
	// broke the reservation; spec.md §9 deliberately leaves the original's
	// exact SC-failure signal ambiguous, so this module treats any
	// NACKED_LINE on the completing store as a lost reservation).
	locked := c.hasLockedAddr && c.lockedAddr == pkt.Req.PAddr && !pkt.HasFlag(mem.FlagNackedLine)
	c.hasLockedAddr = false

	fault := c.isa.Execute(inst, locked)
	c.advanceInst(inst, fault)
}

// advanceInst implements spec.md §4.6's advanceInst(fault): advance the PC
// and either resume fetching or settle into whatever suspension was
// requested while this access was outstanding.
func (c *TimingCPU) advanceInst(inst *Instruction, fault mem.Fault) {
	if fault != nil {
		log.Printf("%s: instruction at pc=%#x faulted: %v", c.Name(), inst.PC, fault)
	}

	c.pc = inst.NextPC
	c.curInst = nil

	if c.state == Draining {
		c.state = c.drainTarget
		return
	}

	c.state = Running
	c.fetch()
}

// cpuEvent is the self-scheduled clock-edge-alignment delay between a
// response arriving and the CPU actually processing it (spec.md §4.6
// "Timing alignment").
type cpuEvent struct {
	sim.EventBase
	pkt     *mem.Packet
	isFetch bool
}

// Handle dispatches a self-scheduled cpuEvent.
func (c *TimingCPU) Handle(e sim.Event) error {
	ce, ok := e.(*cpuEvent)
	if !ok {
		panic("cpu: unexpected event type")
	}

	if ce.isFetch {
		c.completeIfetch(ce.pkt)
	} else {
		c.completeDataAccess(ce.pkt)
	}

	return nil
}

func (c *TimingCPU) scheduleCompletion(pkt *mem.Packet, isFetch bool) {
	now := c.now()
	edge := c.nextCycleEdge(now)

	if edge == now {
		if isFetch {
			c.completeIfetch(pkt)
		} else {
			c.completeDataAccess(pkt)
		}
		return
	}

	c.scheduler.Schedule(&cpuEvent{
		EventBase: sim.NewEventBase(edge, c),
		pkt:       pkt,
		isFetch:   isFetch,
	})
}

// RecvTiming accepts a response arriving on either port and aligns its
// processing to the next clock edge.
func (c *TimingCPU) RecvTiming(port sim.Port, msg sim.Msg) bool {
	pkt, ok := msg.(*mem.Packet)
	if !ok {
		panic("cpu: non-Packet message on a timing port")
	}

	switch port {
	case c.icache:
		if c.state != IcacheWaitResponse && c.state != Draining {
			panic("cpu: icache response arrived outside IcacheWaitResponse or Draining")
		}
		c.scheduleCompletion(pkt, true)
	case c.dcache:
		if c.state != DcacheWaitResponse && c.state != Draining {
			panic("cpu: dcache response arrived outside DcacheWaitResponse or Draining")
		}
		c.scheduleCompletion(pkt, false)
	default:
		panic("cpu: RecvTiming on a port this cpu does not own")
	}

	return true
}

// RecvRetry implements spec.md §4.6's recvRetry(): re-attempt the packet
// this CPU was blocked holding.
func (c *TimingCPU) RecvRetry(port sim.Port) {
	switch port {
	case c.icache:
		if c.state != IcacheRetry {
			panic("cpu: RecvRetry on icache with nothing held")
		}
		if c.icache.SendTiming(c.heldIcachePkt) {
			c.heldIcachePkt = nil
			c.state = IcacheWaitResponse
		}
	case c.dcache:
		if c.state != DcacheRetry {
			panic("cpu: RecvRetry on dcache with nothing held")
		}
		if c.dcache.SendTiming(c.heldDcachePkt) {
			c.heldDcachePkt = nil
			c.state = DcacheWaitResponse
		}
	default:
		panic("cpu: RecvRetry on a port this cpu does not own")
	}
}

// RecvAtomic never legitimately fires: nothing sends an atomic-mode
// request up into a CPU's own ports.
func (c *TimingCPU) RecvAtomic(sim.Port, sim.Msg) sim.VTimeInSec {
	panic("cpu: unexpected RecvAtomic on a cpu port")
}

// RecvFunctional never legitimately fires, for the same reason as
// RecvAtomic.
func (c *TimingCPU) RecvFunctional(sim.Port, sim.Msg) {
	panic("cpu: unexpected RecvFunctional on a cpu port")
}

// Drain implements spec.md §5's drain semantics: if the CPU is already
// quiescent (Running or Idle) it settles immediately into Idle; otherwise
// it finishes its in-flight access first, entering Draining until then.
func (c *TimingCPU) Drain() {
	switch c.state {
	case Running, Idle:
		c.state = Idle
	default:
		c.drainTarget = Idle
		c.state = Draining
	}
}

// SwitchOut implements spec.md §5's switch-out semantics: quiescent states
// switch out immediately; an in-flight access must resolve first.
func (c *TimingCPU) SwitchOut() {
	switch c.state {
	case Running, Idle:
		c.state = SwitchedOut
	default:
		c.drainTarget = SwitchedOut
		c.state = Draining
	}
}

// StepAtomic runs exactly one instruction synchronously end to end via
// SendAtomic on both ports, for atomic-mode simulation (spec.md §4.3
// "Atomic mode": "no MSHR is used in atomic mode"; spec.md §8 invariant 6
// requires this path and the timing path to reach identical architectural
// state). It returns the cumulative latency and any fault the instruction
// raised.
func (c *TimingCPU) StepAtomic() (sim.VTimeInSec, mem.Fault) {
	req := mem.NewRequest(c.pc, fetchSize, mem.FlagInstruction, c.now())
	if fault := c.translator.SetupFetchRequest(req); fault != nil {
		return 0, fault
	}

	fetchPkt := mem.NewPacket(req, mem.ReadReq, req.PAddr, fetchSize)
	fetchPkt.AllocateData()
	lat := c.icache.SendAtomic(fetchPkt)

	inst, fault := c.isa.Decode(fetchPkt.Addr, fetchPkt.Data())
	if fault != nil {
		return lat, fault
	}

	if !inst.IsMemRef {
		fault = c.isa.Execute(inst, false)
		c.pc = inst.NextPC
		return lat, fault
	}

	var memFlags mem.ReqFlags
	if inst.IsLocked {
		memFlags |= mem.FlagLocked
	}
	memReq := mem.NewRequest(inst.MemAddr, inst.MemSize, memFlags, c.now())

	var cmd mem.Command
	if inst.IsStore {
		fault = c.translator.TranslateDataWrite(memReq)
		cmd = mem.WriteReq
	} else {
		fault = c.translator.TranslateDataRead(memReq)
		cmd = mem.ReadReq
	}
	if fault != nil {
		return lat, fault
	}

	memPkt := mem.NewPacket(memReq, cmd, memReq.PAddr, inst.MemSize)
	if inst.IsStore {
		memPkt.SetDynamicData(make([]byte, inst.MemSize))
	}
	lat += c.dcache.SendAtomic(memPkt)

	locked := false
	if inst.IsLocked {
		if !inst.IsStore {
			c.lockedAddr = memPkt.Req.PAddr
			c.hasLockedAddr = true
		} else {
			locked = c.hasLockedAddr && c.lockedAddr == memPkt.Req.PAddr && !memPkt.HasFlag(mem.FlagNackedLine)
			c.hasLockedAddr = false
		}
	}

	fault = c.isa.Execute(inst, locked)
	c.pc = inst.NextPC

	return lat, fault
}
