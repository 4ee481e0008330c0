package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// Frontend is the fetch1/fetch2/decode half of the pipeline plus the
// rename stage that hands instructions to the backend. Fetch1
// generates the fetch address; fetch2 completes the
// instruction-memory read, expands compressed encodings, and consults
// the branch predictor; decode produces control signals.
type Frontend struct {
	width int

	// fetch1 -> fetch2 latch: the address of the next fetch group.
	fetchReq      uint64
	fetchReqValid bool

	// fetch2 -> decode latch.
	fetched []FetchedInst

	// decode -> rename latch.
	decoded []DecodedInst

	// fetchStall counts remaining I-TLB/I-cache latency cycles.
	fetchStall uint64
}

// NewFrontend builds a frontend of the given superscalar width.
func NewFrontend(width int) *Frontend {
	if width <= 0 {
		width = 1
	}
	return &Frontend{width: width}
}

// Flush clears every frontend latch, e.g. after a backend redirect.
func (f *Frontend) Flush() {
	f.fetchReqValid = false
	f.fetched = nil
	f.decoded = nil
	f.fetchStall = 0
}

// Tick runs the frontend stages in reverse order: rename consumes
// decoded instructions, decode consumes fetched ones, fetch2 performs
// the memory read for the latched address, and fetch1 latches a new
// address.
func (f *Frontend) Tick(h *Hart, backend Backend, renameOutput *[]RenameIssueEntry) {
	f.rename(h, backend, renameOutput)
	f.decode()
	if f.fetchStall > 0 {
		f.fetchStall--
	} else {
		f.fetch2(h)
	}
	f.fetch1(h)
}

// fetch1 latches the current PC as the next fetch-group address.
func (f *Frontend) fetch1(h *Hart) {
	if !f.fetchReqValid && f.fetched == nil {
		f.fetchReq = h.PC
		f.fetchReqValid = true
	}
}

// fetch2 reads up to width instructions sequentially from the latched
// address, expanding compressed encodings and consulting the branch
// predictor; a predicted-taken control transfer ends the group. The PC
// is advanced past everything fetched; the backend overrides it on a
// redirect, which the pipeline detects as a flush.
func (f *Frontend) fetch2(h *Hart) {
	if !f.fetchReqValid || f.fetched != nil {
		return
	}
	f.fetchReqValid = false
	pc := f.fetchReq

	var group []FetchedInst
	for len(group) < f.width {
		inst, next, ok := f.fetchOne(h, pc)
		group = append(group, inst)
		if !ok {
			break
		}
		pc = next
		if inst.PredTaken {
			break
		}
	}
	f.fetched = group
	h.PC = pc
}

// fetchOne reads and predecodes a single instruction at pc. ok is
// false when the entry is poisoned by a fetch fault or illegal
// encoding.
func (f *Frontend) fetchOne(h *Hart, pc uint64) (FetchedInst, uint64, bool) {
	result := h.Translate(pc, trap.AccessFetch)
	f.fetchStall += result.Cycles
	if result.Trap != nil {
		return FetchedInst{PC: pc, Size: 4, Trap: result.Trap}, 0, false
	}
	f.fetchStall += h.instrAccess(result.PAddr)

	low := uint32(h.Bus.ReadHalf(result.PAddr))
	raw := low
	size := uint64(2)
	if low&3 == 3 {
		raw |= uint32(h.Bus.ReadHalf(result.PAddr+2)) << 16
		size = 4
	} else {
		expanded, ok := isa.Expand(uint16(low))
		if !ok {
			t := trap.New(trap.IllegalInstruction, uint64(low))
			return FetchedInst{PC: pc, Raw: low, Size: 2, Trap: &t}, 0, false
		}
		raw = expanded
	}

	inst := FetchedInst{PC: pc, Raw: raw, Size: size}
	next := pc + size
	f.predictNext(h, &inst, &next)
	return inst, next, true
}

// predictNext fills the branch-prediction metadata and redirects the
// fetch stream for predicted-taken transfers.
func (f *Frontend) predictNext(h *Hart, inst *FetchedInst, next *uint64) {
	d := isa.Decode(inst.Raw)
	switch d.Kind {
	case isa.KindBranch:
		taken, target, hasTarget := h.Pred.PredictBranch(inst.PC)
		if taken && !hasTarget {
			// Direction says taken but no target is known; compute it
			// from the immediate, which fetch already has.
			target = inst.PC + uint64(d.Imm)
			hasTarget = true
		}
		if taken && hasTarget {
			inst.PredTaken = true
			inst.PredTarget = target
			*next = target
		}
	case isa.KindJAL:
		target := inst.PC + uint64(d.Imm)
		inst.PredTaken = true
		inst.PredTarget = target
		*next = target
	case isa.KindJALR:
		if d.Rd == 0 && isLinkReg(d.Rs1) {
			if target, ok := h.Pred.PredictReturn(); ok {
				inst.PredTaken = true
				inst.PredTarget = target
				*next = target
				return
			}
		}
		if target, ok := h.Pred.LookupTarget(inst.PC); ok {
			inst.PredTaken = true
			inst.PredTarget = target
			*next = target
		}
	}
}

// decode turns fetched instructions into decoded entries carrying
// register indices, immediate, and control signals.
func (f *Frontend) decode() {
	if f.fetched == nil || f.decoded != nil {
		return
	}
	group := make([]DecodedInst, 0, len(f.fetched))
	for _, inst := range f.fetched {
		di := DecodedInst{
			PC:         inst.PC,
			PredTaken:  inst.PredTaken,
			PredTarget: inst.PredTarget,
			Trap:       inst.Trap,
		}
		if inst.Trap == nil {
			di.Dec = isa.Decode(inst.Raw)
			di.Dec.Size = uint8(inst.Size)
			if di.Dec.Illegal {
				t := trap.New(trap.IllegalInstruction, uint64(inst.Raw))
				di.Trap = &t
			}
		} else {
			di.Dec.Raw = inst.Raw
			di.Dec.Size = uint8(inst.Size)
		}
		group = append(group, di)
	}
	f.fetched = nil
	f.decoded = group
}

// rename allocates ROB and store-buffer entries, records destination
// producers in the scoreboard, and captures the current producer tag
// for each source operand. Dispatch count is the minimum of
// frontend-available and the backend's acceptable count.
func (f *Frontend) rename(h *Hart, backend Backend, renameOutput *[]RenameIssueEntry) {
	if f.decoded == nil {
		return
	}

	n := backend.CanAccept()
	if n > len(f.decoded) {
		n = len(f.decoded)
	}

	rob := backend.ROB()
	sb := backend.StoreBuffer()
	sc := backend.Scoreboard()

	for i := 0; i < n; i++ {
		di := f.decoded[i]

		tag, ok := rob.Allocate(di.PC, di.Dec, di.Trap)
		if !ok {
			n = i
			break
		}

		entry := RenameIssueEntry{
			Tag:        tag,
			PC:         di.PC,
			Dec:        di.Dec,
			PredTaken:  di.PredTaken,
			PredTarget: di.PredTarget,
			Trap:       di.Trap,
		}

		if di.Trap == nil {
			if usesRs1(di.Dec) {
				entry.Rs1Tag = producerRef(sc, di.Dec.Rs1, di.Dec.Rs1IsFP)
			}
			if usesRs2(di.Dec) {
				entry.Rs2Tag = producerRef(sc, di.Dec.Rs2, di.Dec.Rs2IsFP)
			}
			if usesRs3(di.Dec) {
				entry.Rs3Tag = producerRef(sc, di.Dec.Rs3, true)
			}
			if memWrite(di.Dec) {
				sb.Allocate(tag, di.Dec.MemWidth)
			}
			if writesReg(di.Dec) {
				sc.SetProducer(di.Dec.Rd, di.Dec.RdIsFP, tag)
			}
		}

		*renameOutput = append(*renameOutput, entry)
	}

	if n == len(f.decoded) {
		f.decoded = nil
	} else {
		f.decoded = f.decoded[n:]
	}
}

func producerRef(sc *Scoreboard, reg uint8, isFP bool) tagRef {
	if tag, ok := sc.Producer(reg, isFP); ok {
		return tagRef{tag: tag, valid: true}
	}
	return tagRef{}
}

// usesRs1 reports whether the instruction reads its rs1 field.
func usesRs1(d isa.Decoded) bool {
	switch d.Kind {
	case isa.KindALU, isa.KindLoad, isa.KindFPLoad, isa.KindStore,
		isa.KindFPStore, isa.KindBranch, isa.KindJALR, isa.KindAMO,
		isa.KindFPArith, isa.KindFPFMA, isa.KindFPCompare,
		isa.KindFPClassify, isa.KindFPCvtToInt, isa.KindFPCvtToFP,
		isa.KindFPCvtFmt, isa.KindFPMove:
		return true
	case isa.KindCSR:
		return !d.CSRUseImm
	}
	return false
}

// usesRs2 reports whether the instruction reads its rs2 field.
func usesRs2(d isa.Decoded) bool {
	switch d.Kind {
	case isa.KindALU:
		return !d.UseImm
	case isa.KindStore, isa.KindFPStore, isa.KindBranch,
		isa.KindFPFMA, isa.KindFPCompare:
		return true
	case isa.KindAMO:
		return !d.IsLR
	case isa.KindFPArith:
		return d.Rs2IsFP
	}
	return false
}

// usesRs3 reports whether the instruction reads its rs3 field (only
// the fused multiply-add family does).
func usesRs3(d isa.Decoded) bool { return d.Kind == isa.KindFPFMA }
