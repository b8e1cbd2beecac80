package main

import (
	"encoding/binary"

	"github.com/archsim/memhier/cpu"
	"github.com/archsim/memhier/mem"
)

// demoISA is the synthetic instruction stream `run` drives the core with.
// Instruction decode, ISA semantics, and instruction memory are all out of
// the core's scope (spec.md §1) — the core only ever reaches them through
// cpu.ISA — so this is deliberately a minimal stand-in: every instruction
// is a memory reference walking a fixed-size working set with a constant
// stride, which is enough to exercise hits, misses, and (at a small enough
// working set) eviction without needing a real decoder or program image.
type demoISA struct {
	workingSet int
	stride     int
	executed   uint64
}

func newDemoISA(workingSetBytes, strideBytes int) *demoISA {
	return &demoISA{workingSet: workingSetBytes, stride: strideBytes}
}

// Decode ignores the fetched bytes entirely and derives the next access
// deterministically from the PC, so `run` needs no backing instruction
// memory. Instruction n (at pc 4n) accesses n*stride modulo the working
// set, rounded down to an 8-byte boundary so no access straddles a block.
func (d *demoISA) Decode(pc uint64, _ []byte) (*cpu.Instruction, mem.Fault) {
	addr := (((pc / 4) * uint64(d.stride)) % uint64(d.workingSet)) &^ 7

	return &cpu.Instruction{
		PC:       pc,
		NextPC:   pc + 4,
		IsMemRef: true,
		MemAddr:  addr,
		MemSize:  8,
		IsStore:  pc%32 == 28,
	}, nil
}

// Execute has no architectural effect beyond counting instructions.
func (d *demoISA) Execute(*cpu.Instruction, bool) mem.Fault {
	d.executed++
	return nil
}

// SaveRegisters persists the instruction counter, demonstrating the
// cpu.RegisterState checkpoint hook with the one piece of state this ISA
// actually carries.
func (d *demoISA) SaveRegisters() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, d.executed)
	return buf
}

// LoadRegisters restores the instruction counter saved by SaveRegisters.
func (d *demoISA) LoadRegisters(data []byte) {
	if len(data) < 8 {
		return
	}
	d.executed = binary.LittleEndian.Uint64(data)
}
