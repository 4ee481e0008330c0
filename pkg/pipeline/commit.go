package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/alu"
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// commitResult is what the commit stage reports back to the engine
// tick: a trap to deliver, or a wait-for-interrupt entry.
type commitResult struct {
	trap      *trap.Trap
	epc       uint64
	enterWFI  bool
	wfiResume uint64

	// fullFlush drains the backend after a serializing commit
	// (privileged return, translation-visible CSR write): anything
	// younger in flight was fetched down the stale path.
	fullFlush bool
}

// commit retires up to width instructions from the ROB head in program
// order: interrupts are detected before any
// retirement; retirement writes architectural registers, applies
// deferred CSR writes, marks store-buffer entries committed, and
// performs privileged returns; serializing instructions stop the
// commit group; one committed store drains to memory per cycle.
func (e *InOrderEngine) commit(h *Hart) commitResult {
	if res := e.checkInterruptsAtCommit(h); res != nil {
		return *res
	}

	var result commitResult

commitLoop:
	for n := 0; n < e.width; n++ {
		head := e.rob.PeekHead()
		if head == nil || head.State == ROBIssued {
			break
		}

		if head.State == ROBFaulted {
			entry, _ := e.rob.CommitHead()
			result.trap = entry.Trap
			result.epc = entry.PC
			break
		}

		entry, _ := e.rob.CommitHead()

		h.Stats.InstructionsRetired++
		h.CSRs.InstretCount++
		e.countRetired(h, &entry)

		if writesFP(&entry) {
			h.FPR[entry.Dec.Rd] = entry.Result
			e.sc.ClearIfMatch(entry.Dec.Rd, true, entry.Tag)
			h.CSRs.Mstatus = (h.CSRs.Mstatus &^ csr.MstatusFS) | csr.MstatusFSDirty
		} else if writesInt(&entry) {
			h.SetReg(entry.Dec.Rd, entry.Result)
			e.sc.ClearIfMatch(entry.Dec.Rd, false, entry.Tag)
		}

		if entry.CSRUpdate != nil {
			addr := entry.CSRUpdate.Addr
			h.CSRs.Write(addr, entry.CSRUpdate.Val)
			isPMP := addr == csr.Pmpcfg0 || addr == csr.Pmpcfg2 ||
				(addr >= csr.Pmpaddr0 && addr < csr.Pmpaddr0+16)
			if isPMP {
				h.MMU.SyncPMP(h.CSRs)
			}
			if addr == csr.Satp {
				h.MMU.FlushTLBs()
				h.FlushDataCaches()
			}
			if addr == csr.Satp || isPMP {
				// Everything younger was fetched under the old
				// translation rules; restart from the next
				// instruction.
				h.PC = entry.PC + entry.Size
				result.fullFlush = true
			}
			// CSR writes serialize: drain before committing more.
			break
		}

		if entry.Dec.Kind == isa.KindSystem {
			switch entry.Dec.SysOp {
			case isa.SysMRet:
				h.DoMRet()
				result.fullFlush = true
				break commitLoop
			case isa.SysSRet:
				h.DoSRet()
				result.fullFlush = true
				break commitLoop
			case isa.SysWFI:
				result.enterWFI = true
				result.wfiResume = entry.PC + entry.Size
				break commitLoop
			}
		}

		if memWrite(entry.Dec) {
			e.sb.MarkCommitted(entry.Tag)
			if entry.Dec.Rs2IsFP {
				h.CSRs.Mstatus = (h.CSRs.Mstatus &^ csr.MstatusFS) | csr.MstatusFSDirty
			}
		}
	}

	// Drain at most one committed store to memory per cycle; a drain
	// to the reservation address breaks any pending LR/SC pair.
	if st, ok := e.sb.DrainOne(); ok {
		writeMemory(h, st.PAddr, st.Width, st.Data)
		if h.CheckReservation(st.PAddr) {
			h.ClearReservation()
		}
	}

	return result
}

// checkInterruptsAtCommit detects pending interrupts before any
// instruction retires. A write to mstatus/mie (or their supervisor
// views) inhibits detection for one cycle so the instruction stream
// drains. A pending-and-enabled interrupt wakes a waiting hart even
// when no trap is taken.
func (e *InOrderEngine) checkInterruptsAtCommit(h *Hart) *commitResult {
	if h.CSRs.InterruptInhibit {
		h.CSRs.InterruptInhibit = false
		return nil
	}

	epc := h.PC
	if h.WFIWaiting {
		epc = h.WFIPC
	} else if head := e.rob.PeekHead(); head != nil {
		epc = head.PC
	}

	if t := h.CheckInterrupts(); t != nil {
		h.WFIWaiting = false
		return &commitResult{trap: t, epc: epc}
	}

	if h.WFIWaiting && h.CSRs.Mip&h.CSRs.Mie != 0 {
		// Wake without trapping; execution resumes at the next
		// instruction.
		h.WFIWaiting = false
		h.PC = h.WFIPC
	}
	return nil
}

func (e *InOrderEngine) countRetired(h *Hart, entry *ROBEntry) {
	d := entry.Dec
	switch d.Kind {
	case isa.KindLoad:
		h.Stats.InstLoad++
	case isa.KindFPLoad:
		h.Stats.InstFPLoad++
	case isa.KindStore:
		h.Stats.InstStore++
	case isa.KindFPStore:
		h.Stats.InstFPStore++
	case isa.KindBranch, isa.KindJAL, isa.KindJALR:
		h.Stats.InstBranch++
	case isa.KindSystem, isa.KindCSR, isa.KindFence, isa.KindFenceI:
		h.Stats.InstSystem++
	case isa.KindFPFMA:
		h.Stats.InstFPFMA++
	case isa.KindFPArith:
		if d.FPOp == alu.FDiv || d.FPOp == alu.FSqrt {
			h.Stats.InstFPDivSqrt++
		} else {
			h.Stats.InstFPArith++
		}
	case isa.KindFPCompare, isa.KindFPClassify, isa.KindFPCvtToInt,
		isa.KindFPCvtToFP, isa.KindFPCvtFmt, isa.KindFPMove:
		h.Stats.InstFPArith++
	default:
		h.Stats.InstALU++
	}
}
