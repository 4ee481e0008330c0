package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// The per-stage latch entry types. Each latch carries an owned
// snapshot of the information it transports, never a back-pointer.

// FetchedInst is a Fetch2 -> Decode latch entry: the raw (expanded)
// encoding plus branch-prediction metadata and any fetch-time trap.
type FetchedInst struct {
	PC         uint64
	Raw        uint32
	Size       uint64
	PredTaken  bool
	PredTarget uint64
	Trap       *trap.Trap
}

// DecodedInst is a Decode -> Rename latch entry.
type DecodedInst struct {
	PC         uint64
	Dec        isa.Decoded
	PredTaken  bool
	PredTarget uint64
	Trap       *trap.Trap
}

// RenameIssueEntry is the Rename -> Issue latch entry: the decoded
// instruction plus the producer tags captured for each source operand
// at rename time.
type RenameIssueEntry struct {
	Tag uint64
	PC  uint64
	Dec isa.Decoded

	PredTaken  bool
	PredTarget uint64

	Rs1Tag, Rs2Tag, Rs3Tag tagRef

	// Operand values, filled by issue.
	RV1, RV2, RV3 uint64

	Trap *trap.Trap
}

// ExMem1Entry is the Execute -> Memory1 latch entry.
type ExMem1Entry struct {
	Tag  uint64
	PC   uint64
	Dec  isa.Decoded
	ALU  uint64 // result, or effective address for memory ops
	Data uint64 // store data
	Trap *trap.Trap
}

// Mem1Mem2Entry is the Memory1 -> Memory2 latch entry, carrying the
// translated physical address.
type Mem1Mem2Entry struct {
	Tag   uint64
	PC    uint64
	Dec   isa.Decoded
	ALU   uint64
	VAddr uint64
	PAddr uint64
	Data  uint64
	Trap  *trap.Trap
}

// Mem2WbEntry is the Memory2 -> Writeback latch entry.
type Mem2WbEntry struct {
	Tag      uint64
	PC       uint64
	Dec      isa.Decoded
	ALU      uint64
	LoadData uint64
	Trap     *trap.Trap
}

// writesReg reports whether the decoded instruction architecturally
// writes a destination register.
func writesReg(d isa.Decoded) bool {
	switch d.Kind {
	case isa.KindStore, isa.KindFPStore, isa.KindBranch,
		isa.KindFence, isa.KindFenceI, isa.KindSystem, isa.KindIllegal:
		return false
	}
	return true
}

func writesFP(e *ROBEntry) bool  { return writesReg(e.Dec) && e.Dec.RdIsFP }
func writesInt(e *ROBEntry) bool { return writesReg(e.Dec) && !e.Dec.RdIsFP }

// memRead reports whether the instruction reads memory (loads, LR, and
// the read half of an AMO).
func memRead(d isa.Decoded) bool {
	switch d.Kind {
	case isa.KindLoad, isa.KindFPLoad:
		return true
	case isa.KindAMO:
		return !d.IsSC
	}
	return false
}

// memWrite reports whether the instruction allocates a store-buffer
// entry (stores, SC, and the write half of an AMO; LR does not).
func memWrite(d isa.Decoded) bool {
	switch d.Kind {
	case isa.KindStore, isa.KindFPStore:
		return true
	case isa.KindAMO:
		return !d.IsLR
	}
	return false
}

// isMemOp reports whether the instruction needs address translation.
func isMemOp(d isa.Decoded) bool { return memRead(d) || memWrite(d) }

// resultValue picks the value committed to the register file: loads
// and atomics deliver the memory-stage data (for a store-conditional
// that is the success flag), everything else the ALU result.
func resultValue(e Mem2WbEntry) uint64 {
	if memRead(e.Dec) || e.Dec.Kind == isa.KindAMO {
		return e.LoadData
	}
	return e.ALU
}
