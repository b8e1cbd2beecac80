package cpu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/sim"
)

// fakeISA is a hand-written stand-in for a real instruction decoder: tests
// configure its Decode/Execute behavior per scenario rather than decoding
// real instruction bytes, since ISA semantics are out of this module's
// scope (spec.md §1).
type fakeISA struct {
	decode  func(pc uint64, fetched []byte) (*Instruction, mem.Fault)
	execute func(inst *Instruction, locked bool) mem.Fault

	executedLocked []bool
}

func (f *fakeISA) Decode(pc uint64, fetched []byte) (*Instruction, mem.Fault) {
	return f.decode(pc, fetched)
}

func (f *fakeISA) Execute(inst *Instruction, locked bool) mem.Fault {
	f.executedLocked = append(f.executedLocked, locked)
	return f.execute(inst, locked)
}

var _ = Describe("TimingCPU", func() {
	var (
		mockCtrl   *gomock.Controller
		scheduler  *MockScheduler
		icachePort *MockPort
		dcachePort *MockPort
		translator mem.Translator
		nowVal     sim.VTimeInSec
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		scheduler = NewMockScheduler(mockCtrl)
		nowVal = 0
		scheduler.EXPECT().CurrentTime().DoAndReturn(func() sim.VTimeInSec { return nowVal }).AnyTimes()

		icachePort = NewMockPort(mockCtrl)
		dcachePort = NewMockPort(mockCtrl)
		translator = mem.IdentityTranslator{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newCPU := func(isa ISA, cyclePeriod sim.VTimeInSec) *TimingCPU {
		c := New("cpu0", scheduler, isa, translator, cyclePeriod)
		c.icache = icachePort
		c.dcache = dcachePort
		return c
	}

	It("issues an instruction fetch over the icache port on Start", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.SetPC(0x1000)

		icachePort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg interface{}) bool {
			pkt := msg.(*mem.Packet)
			Expect(pkt.Addr).To(Equal(uint64(0x1000)))
			Expect(pkt.Cmd).To(Equal(mem.ReadReq))
			return true
		})

		c.Start()

		Expect(c.State()).To(Equal(IcacheWaitResponse))
	})

	It("holds the fetch packet and enters IcacheRetry when the icache port refuses", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.SetPC(0x1000)

		icachePort.EXPECT().SendTiming(gomock.Any()).Return(false)
		c.Start()
		Expect(c.State()).To(Equal(IcacheRetry))

		icachePort.EXPECT().SendTiming(gomock.Any()).Return(true)
		c.RecvRetry(icachePort)
		Expect(c.State()).To(Equal(IcacheWaitResponse))
	})

	It("advances straight to the next fetch for a non-memory instruction", func() {
		isa := &fakeISA{
			decode: func(pc uint64, _ []byte) (*Instruction, mem.Fault) {
				return &Instruction{PC: pc, NextPC: pc + 4, IsMemRef: false}, nil
			},
			execute: func(*Instruction, bool) mem.Fault { return nil },
		}
		c := newCPU(isa, 1)
		c.SetPC(0x1000)

		gomock.InOrder(
			icachePort.EXPECT().SendTiming(gomock.Any()).Return(true),
			icachePort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg interface{}) bool {
				Expect(msg.(*mem.Packet).Addr).To(Equal(uint64(0x1004)))
				return true
			}),
		)

		c.Start()

		req := mem.NewRequest(0x1000, 4, mem.FlagInstruction, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x1000, 4)
		pkt.MakeResponse()
		pkt.AllocateData()

		Expect(c.RecvTiming(icachePort, pkt)).To(BeTrue())
		Expect(c.PC()).To(Equal(uint64(0x1004)))
		Expect(c.State()).To(Equal(IcacheWaitResponse))
	})

	It("issues a dcache access for a memory-reference instruction", func() {
		isa := &fakeISA{
			decode: func(pc uint64, _ []byte) (*Instruction, mem.Fault) {
				return &Instruction{PC: pc, NextPC: pc + 4, IsMemRef: true, MemAddr: 0x2000, MemSize: 8}, nil
			},
			execute: func(*Instruction, bool) mem.Fault { return nil },
		}
		c := newCPU(isa, 1)
		c.SetPC(0x1000)

		icachePort.EXPECT().SendTiming(gomock.Any()).Return(true)
		c.Start()

		dcachePort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg interface{}) bool {
			pkt := msg.(*mem.Packet)
			Expect(pkt.Addr).To(Equal(uint64(0x2000)))
			Expect(pkt.Cmd).To(Equal(mem.ReadReq))
			return true
		})

		req := mem.NewRequest(0x1000, 4, mem.FlagInstruction, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x1000, 4)
		pkt.MakeResponse()
		pkt.AllocateData()

		Expect(c.RecvTiming(icachePort, pkt)).To(BeTrue())
		Expect(c.State()).To(Equal(DcacheWaitResponse))
	})

	It("records a locked load's reservation address and honors it on a matching store-conditional", func() {
		isa := &fakeISA{execute: func(*Instruction, bool) mem.Fault { return nil }}
		c := newCPU(isa, 1)
		icachePort.EXPECT().SendTiming(gomock.Any()).Return(true).AnyTimes()

		c.curInst = &Instruction{PC: 0x1000, NextPC: 0x1004, IsMemRef: true,
			MemAddr: 0x3000, MemSize: 8, IsLocked: true}

		loadReq := mem.NewRequest(0x3000, 8, mem.FlagLocked, 0)
		loadPkt := mem.NewPacket(loadReq, mem.ReadReq, 0x3000, 8)
		loadPkt.MakeResponse()

		c.completeDataAccess(loadPkt)

		addr, held := c.LockState()
		Expect(held).To(BeTrue())
		Expect(addr).To(Equal(uint64(0x3000)))
		Expect(isa.executedLocked).To(Equal([]bool{false}))

		c.curInst = &Instruction{PC: 0x1004, NextPC: 0x1008, IsMemRef: true,
			MemAddr: 0x3000, MemSize: 8, IsLocked: true, IsStore: true}

		scReq := mem.NewRequest(0x3000, 8, mem.FlagLocked, 0)
		scPkt := mem.NewPacket(scReq, mem.WriteReq, 0x3000, 8)
		scPkt.MakeResponse()

		c.completeDataAccess(scPkt)

		Expect(isa.executedLocked).To(Equal([]bool{false, true}))
		_, held = c.LockState()
		Expect(held).To(BeFalse())
	})

	It("fails a store-conditional whose line was NACKed while in flight", func() {
		isa := &fakeISA{execute: func(*Instruction, bool) mem.Fault { return nil }}
		c := newCPU(isa, 1)
		c.RestoreLock(0x3000, true)
		icachePort.EXPECT().SendTiming(gomock.Any()).Return(true).AnyTimes()
		c.curInst = &Instruction{PC: 0x1004, NextPC: 0x1008, IsMemRef: true,
			MemAddr: 0x3000, MemSize: 8, IsLocked: true, IsStore: true}

		scReq := mem.NewRequest(0x3000, 8, mem.FlagLocked, 0)
		scPkt := mem.NewPacket(scReq, mem.WriteReq, 0x3000, 8)
		scPkt.MakeResponse()
		scPkt.SetFlag(mem.FlagNackedLine)

		c.completeDataAccess(scPkt)

		Expect(isa.executedLocked).To(Equal([]bool{false}))
	})

	It("loses a held reservation when an invalidate reaches it via InvalidateUpstream", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.RestoreLock(0x3000, true)

		inv := mem.NewPacket(mem.NewRequest(0x3000, 64, 0, 0), mem.InvalidateReq, 0x3000, 64)
		c.InvalidateUpstream(inv, true)

		_, held := c.LockState()
		Expect(held).To(BeFalse())
	})

	It("ignores a non-invalidating snoop's InvalidateUpstream call", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.RestoreLock(0x3000, true)

		probe := mem.NewPacket(mem.NewRequest(0x3000, 64, 0, 0), mem.ReadReq, 0x3000, 64)
		c.InvalidateUpstream(probe, true)

		addr, held := c.LockState()
		Expect(held).To(BeTrue())
		Expect(addr).To(Equal(uint64(0x3000)))
	})

	It("leaves a reservation for an unrelated address untouched", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.RestoreLock(0x3000, true)

		inv := mem.NewPacket(mem.NewRequest(0x9000, 64, 0, 0), mem.InvalidateReq, 0x9000, 64)
		c.InvalidateUpstream(inv, true)

		_, held := c.LockState()
		Expect(held).To(BeTrue())
	})

	It("settles into Idle immediately when Drain is called while Running", func() {
		isa := &fakeISA{}
		c := newCPU(isa, 1)
		c.state = Running

		c.Drain()

		Expect(c.State()).To(Equal(Idle))
	})

	It("defers Drain until the in-flight access resolves", func() {
		isa := &fakeISA{
			decode: func(pc uint64, _ []byte) (*Instruction, mem.Fault) {
				return &Instruction{PC: pc, NextPC: pc + 4, IsMemRef: false}, nil
			},
			execute: func(*Instruction, bool) mem.Fault { return nil },
		}
		c := newCPU(isa, 1)
		c.SetPC(0x1000)

		icachePort.EXPECT().SendTiming(gomock.Any()).Return(true)
		c.Start()

		c.Drain()
		Expect(c.State()).To(Equal(Draining))

		req := mem.NewRequest(0x1000, 4, mem.FlagInstruction, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x1000, 4)
		pkt.MakeResponse()
		pkt.AllocateData()

		Expect(c.RecvTiming(icachePort, pkt)).To(BeTrue())
		Expect(c.State()).To(Equal(Idle))
	})
})
