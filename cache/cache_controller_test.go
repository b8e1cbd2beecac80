package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/archsim/memhier/config"
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/coherence"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// These specs exercise the six scenarios spec.md §8 names (S1-S6) against
// the controller directly, with a mocked Engine standing in for the
// scheduler and mocked Ports standing in for whatever sits on the other
// side of the wire — so every MSHR/tag-store/coherence interaction is
// driven from its actual trigger (a RecvTiming call) rather than from a
// full wired-up hierarchy.
var _ = Describe("Cache controller", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		cpuPort  *MockPort
		memPort  *MockPort
		nowVal   sim.VTimeInSec
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		nowVal = 0
		engine.EXPECT().CurrentTime().DoAndReturn(func() sim.VTimeInSec { return nowVal }).AnyTimes()

		cpuPort = NewMockPort(mockCtrl)
		memPort = NewMockPort(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newCache := func(cfg config.Config) *Cache {
		c := New("L1", cfg, engine)
		c.cpuSide = cpuPort
		c.memSide = memPort
		return c
	}

	scheduleCapture := func() *[]sim.Event {
		var captured []sim.Event
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e sim.Event) {
			captured = append(captured, e)
		}).AnyTimes()
		return &captured
	}

	fillPattern := func(n int) []byte {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		return data
	}

	// S1 — load hit.
	It("services a load that hits with the intrinsic hit latency", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		blk := c.tags.BlockAt(0, 0)
		c.tags.HandleFill(blk, 0x1000, fillPattern(64), tagstore.StatusValid|tagstore.StatusWritable, 0, 0)

		events := scheduleCapture()

		req := mem.NewRequest(0x1008, 8, 0, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x1008, 8)

		accepted := c.RecvTiming(cpuPort, pkt)
		Expect(accepted).To(BeTrue())
		Expect(*events).To(HaveLen(1))

		cpuPort.EXPECT().SendTiming(pkt).Return(true)
		Expect(c.Handle((*events)[0])).To(Succeed())

		Expect(pkt.IsSatisfied()).To(BeTrue())
		Expect(pkt.Result).To(Equal(mem.Success))
		Expect(pkt.Data()).To(Equal([]byte{8, 9, 10, 11, 12, 13, 14, 15}))
		Expect(pkt.Time).To(Equal(sim.VTimeInSec(2)))
		Expect(c.stats.Hits[mem.ReadReq]).To(Equal(uint64(1)))
	})

	// S2 — load miss, clean victim.
	It("allocates an MSHR and fills from memory on a clean-victim miss", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		blk := c.tags.BlockAt(0, 0)
		c.tags.HandleFill(blk, 0x1000, fillPattern(64), tagstore.StatusValid|tagstore.StatusWritable, 0, 0)

		events := scheduleCapture()

		var sentReq *mem.Packet
		memPort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg sim.Msg) bool {
			sentReq = msg.(*mem.Packet)
			return true
		})

		req := mem.NewRequest(0x2040, 4, 0, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x2040, 4)

		accepted := c.RecvTiming(cpuPort, pkt)
		Expect(accepted).To(BeTrue())
		Expect(c.stats.Misses[mem.ReadReq]).To(Equal(uint64(1)))
		Expect(sentReq).NotTo(BeNil())
		Expect(sentReq.Cmd).To(Equal(mem.ReadReq))

		nowVal = 100
		sentReq.MakeResponse()
		sentReq.SetFlag(mem.FlagCacheLineFill)
		sentReq.SetDynamicData(fillPattern(64))
		sentReq.Result = mem.Success

		Expect(c.RecvTiming(memPort, sentReq)).To(BeTrue())
		Expect(*events).To(HaveLen(1))

		cpuPort.EXPECT().SendTiming(pkt).Return(true)
		Expect(c.Handle((*events)[0])).To(Succeed())

		Expect(pkt.IsSatisfied()).To(BeTrue())
		Expect(pkt.Data()).To(Equal(fillPattern(64)[0x2040%64 : 0x2040%64+4]))
		Expect(pkt.Time).To(Equal(sim.VTimeInSec(102)))
	})

	// S3 — load miss, dirty victim.
	It("drains a dirty victim's writeback alongside the new line's read", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		blk := c.tags.BlockAt(0, 0)
		c.tags.HandleFill(blk, 0x1000, fillPattern(64),
			tagstore.StatusValid|tagstore.StatusWritable|tagstore.StatusDirty, 0, 0)

		events := scheduleCapture()

		var sentCmds []mem.Command
		var sentPkts []*mem.Packet
		memPort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg sim.Msg) bool {
			p := msg.(*mem.Packet)
			sentCmds = append(sentCmds, p.Cmd)
			sentPkts = append(sentPkts, p)
			return true
		}).Times(2)

		req := mem.NewRequest(0x2040, 4, 0, 0)
		pkt := mem.NewPacket(req, mem.ReadReq, 0x2040, 4)

		Expect(c.RecvTiming(cpuPort, pkt)).To(BeTrue())
		Expect(sentCmds).To(Equal([]mem.Command{mem.WritebackReq, mem.ReadReq}))

		// Deliver the fill response for the read and confirm installFill does
		// not manufacture a second writeback for the same evicted victim —
		// the strict Times(2) above already panics on any further memPort
		// send, so reaching this point without a mock failure is the
		// regression check.
		sentReq := sentPkts[1]
		sentReq.MakeResponse()
		sentReq.SetFlag(mem.FlagCacheLineFill)
		sentReq.SetDynamicData(fillPattern(64))
		sentReq.Result = mem.Success

		Expect(c.RecvTiming(memPort, sentReq)).To(BeTrue())
		Expect(*events).To(HaveLen(1))

		cpuPort.EXPECT().SendTiming(pkt).Return(true)
		Expect(c.Handle((*events)[0])).To(Succeed())
		Expect(pkt.IsSatisfied()).To(BeTrue())
	})

	// S4 — coalescing.
	It("coalesces two loads to the same missing line onto one MSHR and one memory request", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 2, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		events := scheduleCapture()

		var sentReq *mem.Packet
		memPort.EXPECT().SendTiming(gomock.Any()).DoAndReturn(func(msg sim.Msg) bool {
			sentReq = msg.(*mem.Packet)
			return true
		}).Times(1)

		req1 := mem.NewRequest(0x4000, 8, 0, 0)
		pkt1 := mem.NewPacket(req1, mem.ReadReq, 0x4000, 8)
		req2 := mem.NewRequest(0x4008, 8, 0, 0)
		pkt2 := mem.NewPacket(req2, mem.ReadReq, 0x4008, 8)

		Expect(c.RecvTiming(cpuPort, pkt1)).To(BeTrue())
		Expect(c.RecvTiming(cpuPort, pkt2)).To(BeTrue())

		m, ok := c.mshrq.FindMSHR(0x4000)
		Expect(ok).To(BeTrue())
		Expect(m.Targets).To(Equal([]*mem.Packet{pkt1, pkt2}))

		sentReq.MakeResponse()
		sentReq.SetFlag(mem.FlagCacheLineFill)
		sentReq.SetDynamicData(fillPattern(64))
		sentReq.Result = mem.Success

		Expect(c.RecvTiming(memPort, sentReq)).To(BeTrue())
		Expect(*events).To(HaveLen(2))

		cpuPort.EXPECT().SendTiming(pkt1).Return(true)
		cpuPort.EXPECT().SendTiming(pkt2).Return(true)
		Expect(c.Handle((*events)[0])).To(Succeed())
		Expect(c.Handle((*events)[1])).To(Succeed())

		Expect(pkt1.IsSatisfied()).To(BeTrue())
		Expect(pkt2.IsSatisfied()).To(BeTrue())
	})

	// S5 — snoop hits an outstanding miss.
	It("self-invalidates a block the instant its fill arrives if a snoop observed the miss in flight", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		blockAddr := uint64(0xA00) &^ uint64(cfg.BlockSize-1)

		req := mem.NewRequest(0xA00, 8, 0, 0)
		origPkt := mem.NewPacket(req, mem.ReadReq, 0xA00, 8)
		m, isNew := c.mshrq.HandleMiss(blockAddr, origPkt, cfg.BlockSize, 0)
		Expect(isNew).To(BeTrue())

		sentReq := mem.NewPacket(req, mem.ReadReq, blockAddr, cfg.BlockSize)
		c.mshrq.MarkInService(sentReq, m)
		c.victims[blockAddr] = c.tags.BlockAt(0, 0)

		events := scheduleCapture()

		snoopReq := mem.NewRequest(blockAddr, cfg.BlockSize, 0, 0)
		snoopPkt := mem.NewPacket(snoopReq, mem.InvalidateReq, blockAddr, cfg.BlockSize)

		Expect(c.RecvTiming(memPort, snoopPkt)).To(BeTrue())
		Expect(c.pendingInvalidate[blockAddr]).To(BeTrue())

		sentReq.MakeResponse()
		sentReq.SetFlag(mem.FlagCacheLineFill)
		sentReq.SetDynamicData(fillPattern(cfg.BlockSize))
		sentReq.Result = mem.Success

		Expect(c.RecvTiming(memPort, sentReq)).To(BeTrue())
		Expect(*events).To(HaveLen(1))

		cpuPort.EXPECT().SendTiming(origPkt).Return(true)
		Expect(c.Handle((*events)[0])).To(Succeed())

		blk := c.tags.BlockAt(0, 0)
		Expect(blk.IsValid()).To(BeFalse())
	})

	// S6 — fast write-allocate.
	It("installs a full-block write miss directly without touching memory", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)
		scheduleCapture()

		payload := fillPattern(64)
		req := mem.NewRequest(0x3000, 64, 0, 0)
		pkt := mem.NewPacket(req, mem.WriteReq, 0x3000, 64)
		pkt.SetDynamicData(payload)

		Expect(c.RecvTiming(cpuPort, pkt)).To(BeTrue())

		blk := c.tags.BlockAt(0, 0)
		Expect(blk.IsValid()).To(BeTrue())
		Expect(blk.IsWritable()).To(BeTrue())
		Expect(blk.Data).To(Equal(payload))
		Expect(c.stats.FastWrites).To(Equal(uint64(1)))
	})

	// spec.md §7: an atomic access colliding with outstanding timing-mode
	// state is a programmer error, not something atomic mode can reconcile.
	It("panics on an atomic access that collides with an outstanding MSHR", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)
		scheduleCapture()

		memPort.EXPECT().SendTiming(gomock.Any()).Return(true)

		missReq := mem.NewRequest(0x5000, 4, 0, 0)
		missPkt := mem.NewPacket(missReq, mem.ReadReq, 0x5000, 4)
		Expect(c.RecvTiming(cpuPort, missPkt)).To(BeTrue())

		atomicReq := mem.NewRequest(0x5000, 4, 0, 0)
		atomicPkt := mem.NewPacket(atomicReq, mem.ReadReq, 0x5000, 4)

		Expect(func() { c.RecvAtomic(cpuPort, atomicPkt) }).To(Panic())
	})

	It("panics on an atomic access that collides with a pending writeback", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		blk := c.tags.BlockAt(0, 0)
		c.tags.HandleFill(blk, 0x1000, fillPattern(64),
			tagstore.StatusValid|tagstore.StatusWritable|tagstore.StatusDirty, 0, 0)

		req := mem.NewRequest(0x1000, 64, 0, 0)
		pkt := mem.NewPacket(req, mem.WritebackReq, 0x1000, 64)
		pkt.SetDynamicData(fillPattern(64))
		c.mshrq.DoWriteback(pkt)

		atomicReq := mem.NewRequest(0x1000, 4, 0, 0)
		atomicPkt := mem.NewPacket(atomicReq, mem.ReadReq, 0x1000, 4)

		Expect(func() { c.RecvAtomic(cpuPort, atomicPkt) }).To(Panic())
	})

	// spec.md §8.7: functional transparency.
	It("lets a functional probe see a write buffered in an outstanding MSHR target", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)
		scheduleCapture()

		memPort.EXPECT().SendTiming(gomock.Any()).Return(true)

		writeReq := mem.NewRequest(0x6000, 4, 0, 0)
		writePkt := mem.NewPacket(writeReq, mem.WriteReq, 0x6000, 4)
		writePkt.SetDynamicData([]byte{0xAA, 0xBB, 0xCC, 0xDD})

		Expect(c.RecvTiming(cpuPort, writePkt)).To(BeTrue())

		probeReq := mem.NewRequest(0x6000, 4, 0, 0)
		probePkt := mem.NewPacket(probeReq, mem.ReadReq, 0x6000, 4)

		c.RecvFunctional(cpuPort, probePkt)

		Expect(probePkt.IsSatisfied()).To(BeTrue())
		Expect(probePkt.Data()).To(Equal([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	})

	It("lets a functional probe see a dirty block sitting in the writeback buffer", func() {
		cfg := config.Config{
			BlockSize: 64, Assoc: 1, NSets: 1, HitLatency: 2,
			MSHREntries: 4, WritebackEntries: 4, CoherenceProtocol: coherence.ProtocolMSI,
		}
		c := newCache(cfg)

		wbData := fillPattern(64)
		wbReq := mem.NewRequest(0x7000, 64, 0, 0)
		wbPkt := mem.NewPacket(wbReq, mem.WritebackReq, 0x7000, 64)
		wbPkt.SetDynamicData(wbData)
		c.mshrq.DoWriteback(wbPkt)

		probeReq := mem.NewRequest(0x7008, 4, 0, 0)
		probePkt := mem.NewPacket(probeReq, mem.ReadReq, 0x7008, 4)

		c.RecvFunctional(cpuPort, probePkt)

		Expect(probePkt.IsSatisfied()).To(BeTrue())
		Expect(probePkt.Data()).To(Equal(wbData[8:12]))
	})
})
