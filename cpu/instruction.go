// Package cpu implements the single-issue in-order timing model spec.md
// §4.6 describes: one instruction in flight at a time, alternating between
// fetching from the icache port and, for memory references, the dcache
// port. Instruction decode and ISA semantics are out of scope (spec.md §1)
// and are reached only through the narrow ISA interface this package
// consumes.
package cpu

import "github.com/archsim/memhier/mem"

// Instruction is what the ISA decoder hands back for a fetched PC: enough
// for the timing model to decide whether a dcache access is needed and,
// once any access resolves, how to advance.
type Instruction struct {
	PC     uint64
	NextPC uint64

	IsMemRef bool
	MemAddr  uint64
	MemSize  int
	IsStore  bool
	IsLocked bool
}

// ISA is the external collaborator spec.md §1 excludes from the core:
// instruction decode and execution semantics. TimingCPU never inspects an
// opcode itself — it only calls Decode to learn whether the fetched
// instruction needs a memory access, and Execute to run whatever
// non-memory effect the instruction has (including, for a successful
// store-conditional, deciding pass/fail from the lock state the CPU
// reports back).
type ISA interface {
	// Decode turns the raw bytes an instruction fetch returned into an
	// Instruction, given the PC they were fetched from.
	Decode(pc uint64, fetched []byte) (*Instruction, mem.Fault)

	// Execute runs inst's non-memory-reference effect (arithmetic, control
	// flow) or, for a memory reference, any effect that depends on its
	// result (e.g. a load's register writeback). locked, if inst.IsLocked,
	// reports whether a store-conditional succeeded; it is ignored for
	// plain loads, stores, and non-memory instructions.
	Execute(inst *Instruction, locked bool) mem.Fault
}

// RegisterState is an optional capability an ISA may implement so
// checkpoint/restore can save and reload its architectural register file
// without TimingCPU needing to know that ISA's register layout (spec.md §6:
// "state sufficient to resume in atomic mode... CPU register file"). An ISA
// that does not implement it simply has no register state saved.
type RegisterState interface {
	SaveRegisters() []byte
	LoadRegisters([]byte)
}
