package mem

import "github.com/archsim/memhier/sim"

// memScheduler is the narrow slice of sim.Engine SimpleMemory needs,
// mirroring cache.Scheduler and cpu.Scheduler.
type memScheduler interface {
	sim.TimeTeller
	sim.EventScheduler
}

// SimpleMemory is the ideal physical backing store below the cache
// hierarchy. spec.md §1 places the physical memory backing store itself out
// of the core's scope ("Physical memory backing store, symbol tables,
// kernel loading, GDB stubs"); this answers just the narrow "Physical
// memory" external interface spec.md §6 names ("responds to
// ReadReq/WriteReq/Writeback and returns a latency in atomic mode"), so a
// cache hierarchy has something to terminate into. It is grounded on the
// teacher's idealmemcontroller: every request is answered unconditionally
// after a fixed latency, with no DRAM timing modeled.
type SimpleMemory struct {
	*sim.ComponentBase

	port      sim.Port
	scheduler memScheduler
	latency   sim.VTimeInSec

	storage []byte
}

// NewSimpleMemory creates a SimpleMemory of sizeBytes, answering every
// request after latency seconds.
func NewSimpleMemory(name string, scheduler memScheduler, sizeBytes int, latency sim.VTimeInSec) *SimpleMemory {
	m := &SimpleMemory{
		ComponentBase: sim.NewComponentBase(name),
		scheduler:     scheduler,
		latency:       latency,
		storage:       make([]byte, sizeBytes),
	}

	m.port = sim.NewPort(m, name+".port")
	m.AddPort("mem", m.port)

	return m
}

// Port returns the port the lowest cache level wires into.
func (m *SimpleMemory) Port() sim.Port { return m.port }

func (m *SimpleMemory) now() sim.VTimeInSec { return m.scheduler.CurrentTime() }

// service performs pkt's data movement in place and flips it into its
// response form.
func (m *SimpleMemory) service(pkt *Packet) {
	isWrite := pkt.IsWrite()

	if isWrite {
		copy(m.storage[pkt.Addr:], pkt.Data())
	} else {
		data := make([]byte, pkt.Size)
		copy(data, m.storage[pkt.Addr:uint64(pkt.Size)+pkt.Addr])
		pkt.SetDynamicData(data)
	}

	pkt.MakeResponse()
	pkt.SetFlag(FlagSatisfied)
	if !isWrite {
		pkt.SetFlag(FlagCacheLineFill)
	}
}

type memEvent struct {
	sim.EventBase
	pkt *Packet
}

// Handle delivers a previously scheduled response back out the port.
func (m *SimpleMemory) Handle(e sim.Event) error {
	me, ok := e.(*memEvent)
	if !ok {
		panic("mem: unexpected event type on SimpleMemory")
	}

	m.service(me.pkt)
	me.pkt.Time = m.now()

	if !m.port.SendTiming(me.pkt) {
		panic("mem: SimpleMemory's response was refused; nothing above it retries a memory reply")
	}

	return nil
}

// RecvTiming accepts pkt and schedules its response latency seconds out.
func (m *SimpleMemory) RecvTiming(_ sim.Port, msg sim.Msg) bool {
	pkt, ok := msg.(*Packet)
	if !ok {
		panic("mem: non-Packet message delivered to SimpleMemory")
	}

	m.scheduler.Schedule(&memEvent{
		EventBase: sim.NewEventBase(m.now()+m.latency, m),
		pkt:       pkt,
	})

	return true
}

// RecvAtomic services pkt synchronously and reports the latency.
func (m *SimpleMemory) RecvAtomic(_ sim.Port, msg sim.Msg) sim.VTimeInSec {
	pkt, ok := msg.(*Packet)
	if !ok {
		panic("mem: non-Packet message delivered to SimpleMemory")
	}

	m.service(pkt)
	return m.latency
}

// RecvFunctional services pkt without affecting timing state.
func (m *SimpleMemory) RecvFunctional(_ sim.Port, msg sim.Msg) {
	pkt, ok := msg.(*Packet)
	if !ok {
		panic("mem: non-Packet message delivered to SimpleMemory")
	}

	m.service(pkt)
}

// RecvRetry never legitimately fires: SimpleMemory never issues a SendTiming
// that can be refused except the final reply, which panics rather than
// retries (nothing below it needs to resend a memory reply).
func (m *SimpleMemory) RecvRetry(sim.Port) {
	panic("mem: unexpected RecvRetry on SimpleMemory")
}
