package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/alu"
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// execute runs the selected instructions: compute ALU/FPU results,
// resolve branches against their predictions, stage deferred CSR
// writes, and flag redirects for serializing instructions. Processing
// stops after the first instruction that requests a flush — everything
// younger is wrong-path.
func (e *InOrderEngine) execute(h *Hart, issued []RenameIssueEntry) ([]ExMem1Entry, bool) {
	var out []ExMem1Entry

	for i := range issued {
		entry := &issued[i]

		if entry.Trap != nil {
			out = append(out, ExMem1Entry{Tag: entry.Tag, PC: entry.PC, Dec: entry.Dec, Trap: entry.Trap})
			continue
		}

		res, flush := e.executeOne(h, entry)
		out = append(out, res)
		if res.Trap != nil {
			e.rob.MarkFaulted(res.Tag, *res.Trap)
		}
		if flush {
			h.Stats.StallsControl++
			return out, true
		}
	}
	return out, false
}

func (e *InOrderEngine) executeOne(h *Hart, entry *RenameIssueEntry) (ExMem1Entry, bool) {
	d := entry.Dec
	pc := entry.PC
	size := uint64(d.Size)
	res := ExMem1Entry{Tag: entry.Tag, PC: pc, Dec: d}

	switch d.Kind {
	case isa.KindALU:
		b := entry.RV2
		if d.UseImm {
			b = uint64(d.Imm)
		}
		res.ALU = alu.Exec(d.IntOp, entry.RV1, b)

	case isa.KindLUI:
		res.ALU = uint64(d.Imm)

	case isa.KindAUIPC:
		res.ALU = pc + uint64(d.Imm)

	case isa.KindJAL:
		res.ALU = pc + size
		target := pc + uint64(d.Imm)
		if isLinkReg(d.Rd) {
			h.Pred.OnCall(pc, pc+size, target)
		}
		return res, e.resolveJump(h, entry, target, res)

	case isa.KindJALR:
		res.ALU = pc + size
		target := (entry.RV1 + uint64(d.Imm)) &^ 1
		if d.Rd == 0 && isLinkReg(d.Rs1) {
			h.Pred.OnReturn()
		} else if isLinkReg(d.Rd) {
			h.Pred.OnCall(pc, pc+size, target)
		} else {
			h.Pred.UpdateTarget(pc, target)
		}
		return res, e.resolveJump(h, entry, target, res)

	case isa.KindBranch:
		taken := evalBranch(d.Branch, entry.RV1, entry.RV2)
		target := pc + uint64(d.Imm)
		h.Pred.UpdateBranch(pc, taken, target)
		h.Stats.BranchPredictions++

		actualNext := pc + size
		if taken {
			actualNext = target
		}
		predictedNext := pc + size
		if entry.PredTaken {
			predictedNext = entry.PredTarget
		}
		if actualNext != predictedNext {
			h.Stats.BranchMispredictions++
			h.PC = actualNext
			return res, true
		}

	case isa.KindLoad, isa.KindFPLoad:
		res.ALU = entry.RV1 + uint64(d.Imm)

	case isa.KindStore, isa.KindFPStore:
		res.ALU = entry.RV1 + uint64(d.Imm)
		res.Data = entry.RV2

	case isa.KindAMO:
		res.ALU = entry.RV1
		res.Data = entry.RV2

	case isa.KindCSR:
		return e.executeCSR(h, entry, res)

	case isa.KindSystem:
		return e.executeSystem(h, entry, res)

	case isa.KindFence:
		// Ordering is already guaranteed by commit-order store drain.

	case isa.KindFenceI:
		// Discard the speculative instruction stream; the write-back
		// of prior stores happens at commit drain before the redirect
		// re-fetches.
		h.PC = pc + size
		return res, true

	default:
		return e.executeFP(h, entry, res)
	}

	return res, false
}

// resolveJump compares the frontend's predicted redirect against the
// actual jump target.
func (e *InOrderEngine) resolveJump(h *Hart, entry *RenameIssueEntry, target uint64, res ExMem1Entry) bool {
	if entry.PredTaken && entry.PredTarget == target {
		return false
	}
	h.Stats.BranchMispredictions++
	h.PC = target
	return true
}

func isLinkReg(r uint8) bool { return r == 1 || r == 5 }

func evalBranch(cond isa.BranchCond, a, b uint64) bool {
	switch cond {
	case isa.BEQ:
		return a == b
	case isa.BNE:
		return a != b
	case isa.BLT:
		return int64(a) < int64(b)
	case isa.BGE:
		return int64(a) >= int64(b)
	case isa.BLTU:
		return a < b
	default:
		return a >= b
	}
}

// executeCSR reads the CSR (honoring in-flight deferred writes),
// computes the new value, and stages the write to be applied at
// commit. A CSR write serializes the pipeline: the PC is redirected to
// the next instruction so younger speculative work is discarded.
func (e *InOrderEngine) executeCSR(h *Hart, entry *RenameIssueEntry, res ExMem1Entry) (ExMem1Entry, bool) {
	d := entry.Dec
	addr := d.CSRAddr

	privNeeded := priv.Mode((addr >> 8) & 3)
	if h.Mode < privNeeded {
		t := trap.New(trap.IllegalInstruction, uint64(d.Raw))
		res.Trap = &t
		return res, false
	}

	operand := entry.RV1
	if d.CSRUseImm {
		operand = uint64(d.Rs1)
	}

	writes := true
	switch d.CSROp {
	case isa.CSRRS, isa.CSRRC:
		if d.CSRUseImm {
			writes = operand != 0
		} else {
			writes = d.Rs1 != 0
		}
	}

	if writes && (addr>>10)&3 == 3 {
		t := trap.New(trap.IllegalInstruction, uint64(d.Raw))
		res.Trap = &t
		return res, false
	}

	old := e.ReadCSRSpeculative(h, addr)
	res.ALU = old
	if !writes {
		return res, false
	}

	var newVal uint64
	switch d.CSROp {
	case isa.CSRRW:
		newVal = operand
	case isa.CSRRS:
		newVal = old | operand
	default:
		newVal = old &^ operand
	}

	if rob := e.rob.Find(entry.Tag); rob != nil {
		rob.CSRUpdate = &CSRUpdate{Addr: addr, Val: newVal}
	}

	h.PC = entry.PC + uint64(d.Size)
	return res, true
}

// executeSystem handles ecall/ebreak/mret/sret/wfi. Privileged
// returns and WFI are performed at commit; execute only stops the
// younger speculative stream.
func (e *InOrderEngine) executeSystem(h *Hart, entry *RenameIssueEntry, res ExMem1Entry) (ExMem1Entry, bool) {
	d := entry.Dec
	switch d.SysOp {
	case isa.SysECall:
		var cause trap.Cause
		switch h.Mode {
		case priv.Machine:
			cause = trap.EnvironmentCallFromMachine
		case priv.Supervisor:
			cause = trap.EnvironmentCallFromSupervisor
		default:
			cause = trap.EnvironmentCallFromUser
		}
		t := trap.New(cause, 0)
		res.Trap = &t

	case isa.SysEBreak:
		t := trap.New(trap.Breakpoint, entry.PC)
		res.Trap = &t

	case isa.SysMRet:
		if h.Mode != priv.Machine {
			t := trap.New(trap.IllegalInstruction, uint64(d.Raw))
			res.Trap = &t
			return res, false
		}
		return res, true

	case isa.SysSRet:
		if h.Mode == priv.User {
			t := trap.New(trap.IllegalInstruction, uint64(d.Raw))
			res.Trap = &t
			return res, false
		}
		return res, true

	case isa.SysWFI:
		return res, true
	}
	return res, false
}

// executeFP dispatches the floating-point operation families.
func (e *InOrderEngine) executeFP(h *Hart, entry *RenameIssueEntry, res ExMem1Entry) (ExMem1Entry, bool) {
	d := entry.Dec
	rm := d.RM
	if rm == alu.RoundDynamic {
		rm = alu.RoundingMode(h.CSRs.ReadFrm())
	}

	switch d.Kind {
	case isa.KindFPArith:
		res.ALU = alu.Arith(d.FPOp, d.FPDouble, rm, entry.RV1, entry.RV2)
	case isa.KindFPFMA:
		res.ALU = alu.FMA(d.FPDouble, rm, entry.RV1, entry.RV2, entry.RV3, d.NegProduct, d.NegAddend)
	case isa.KindFPCompare:
		res.ALU = alu.Compare(d.FPOp, d.FPDouble, entry.RV1, entry.RV2)
	case isa.KindFPClassify:
		res.ALU = alu.Classify(d.FPDouble, entry.RV1)
	case isa.KindFPCvtToInt:
		res.ALU = alu.FloatToInt(d.FPDouble, entry.RV1, d.CvtSigned, d.CvtWord)
	case isa.KindFPCvtToFP:
		res.ALU = alu.IntToFloat(d.FPDouble, entry.RV1, d.CvtSigned, d.CvtWord)
	case isa.KindFPCvtFmt:
		res.ALU = alu.ConvertPrecision(d.CvtToDouble, entry.RV1)
	case isa.KindFPMove:
		if d.RdIsFP {
			// fmv.w.x / fmv.d.x
			if d.FPDouble {
				res.ALU = entry.RV1
			} else {
				res.ALU = entry.RV1&0xFFFF_FFFF | 0xFFFF_FFFF_0000_0000
			}
		} else {
			// fmv.x.w / fmv.x.d: raw bit transfer, sign-extended for
			// the word form.
			if d.FPDouble {
				res.ALU = entry.RV1
			} else {
				res.ALU = uint64(int64(int32(uint32(entry.RV1))))
			}
		}
	default:
		t := trap.New(trap.IllegalInstruction, uint64(d.Raw))
		res.Trap = &t
	}
	return res, false
}

// ReadCSRSpeculative scans the ROB newest-to-oldest for a deferred
// write to addr before falling back to the architectural CSR file.
func (e *InOrderEngine) ReadCSRSpeculative(h *Hart, addr uint32) uint64 {
	var val uint64
	found := false
	e.rob.ForEach(func(r *ROBEntry) {
		if r.CSRUpdate != nil && r.CSRUpdate.Addr == addr {
			val = r.CSRUpdate.Val
			found = true
		}
	})
	if found {
		return val
	}
	return h.CSRs.Read(addr)
}
