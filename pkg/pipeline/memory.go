package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/alu"
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// Writes into this physical range invalidate the data-cache hierarchy:
// the block device DMAs descriptors and data through it, so cached
// lines over the window would go stale.
const (
	cacheFenceBase = 0x1000_1000
	cacheFenceEnd  = 0x1000_2000
)

// memory1 translates addresses for loads and stores, charges alignment
// and cache-hierarchy latency into the stall counter, and passes
// everything else through. A trap poisons the entry and drops
// anything younger in the same group.
func (e *InOrderEngine) memory1(h *Hart) {
	entries := e.execMem1
	e.execMem1 = nil

	for i := range entries {
		ex := &entries[i]

		if ex.Trap != nil {
			e.mem1Mem2 = append(e.mem1Mem2, Mem1Mem2Entry{
				Tag: ex.Tag, PC: ex.PC, Dec: ex.Dec, ALU: ex.ALU,
				VAddr: ex.ALU, Data: ex.Data, Trap: ex.Trap,
			})
			return
		}

		if !isMemOp(ex.Dec) {
			e.mem1Mem2 = append(e.mem1Mem2, Mem1Mem2Entry{
				Tag: ex.Tag, PC: ex.PC, Dec: ex.Dec, ALU: ex.ALU, Data: ex.Data,
			})
			continue
		}

		vaddr := ex.ALU
		size := widthBytes(ex.Dec.MemWidth)
		isWrite := memWrite(ex.Dec)

		// Misaligned accesses are split at the bus, not faulted; each
		// crossed boundary costs an extra cycle.
		if vaddr%size != 0 {
			e.mem1Stall++
		}

		access := trap.AccessLoad
		if isWrite {
			access = trap.AccessStore
		}

		// An access crossing a page boundary translates each portion
		// independently; a fault on the second page carries that
		// page's address.
		if vaddr>>12 != (vaddr+size-1)>>12 {
			second := h.Translate((vaddr + size - 1) &^ 0xFFF, access)
			e.mem1Stall += second.Cycles
			if second.Trap != nil {
				e.mem1Mem2 = append(e.mem1Mem2, Mem1Mem2Entry{
					Tag: ex.Tag, PC: ex.PC, Dec: ex.Dec, ALU: ex.ALU,
					VAddr: vaddr, Data: ex.Data, Trap: second.Trap,
				})
				return
			}
		}

		result := h.Translate(vaddr, access)
		e.mem1Stall += result.Cycles
		if result.Trap != nil {
			e.mem1Mem2 = append(e.mem1Mem2, Mem1Mem2Entry{
				Tag: ex.Tag, PC: ex.PC, Dec: ex.Dec, ALU: ex.ALU,
				VAddr: vaddr, Data: ex.Data, Trap: result.Trap,
			})
			return
		}
		paddr := result.PAddr

		if _, ramBase, ramEnd, ok := h.Bus.RawRAM(); ok && paddr >= ramBase && paddr < ramEnd {
			e.mem1Stall += h.dataAccess(paddr, isWrite)
		} else {
			e.mem1Stall += h.Bus.CalculateTransitTime(size)
		}
		if isWrite && paddr >= cacheFenceBase && paddr < cacheFenceEnd {
			h.FlushDataCaches()
		}

		e.mem1Mem2 = append(e.mem1Mem2, Mem1Mem2Entry{
			Tag: ex.Tag, PC: ex.PC, Dec: ex.Dec, ALU: ex.ALU,
			VAddr: vaddr, PAddr: paddr, Data: ex.Data,
		})
	}
}

// memory2 completes loads (with store-to-load forwarding), resolves
// store-buffer entries with their physical address and data, and
// performs the atomic-operation sequencing. No memory write happens
// here; stores drain only at commit.
func (e *InOrderEngine) memory2(h *Hart) {
	entries := e.mem1Mem2
	e.mem1Mem2 = nil

	for i := range entries {
		m := entries[i]

		if m.Trap != nil {
			e.mem2Wb = append(e.mem2Wb, Mem2WbEntry{Tag: m.Tag, PC: m.PC, Dec: m.Dec, ALU: m.ALU, Trap: m.Trap})
			return
		}

		var load uint64
		stalled := false

		switch {
		case m.Dec.Kind == isa.KindAMO:
			load, stalled = e.memory2Atomic(h, &m)
		case memRead(m.Dec):
			load, stalled = e.memory2Load(h, &m)
		case memWrite(m.Dec):
			e.sb.Resolve(m.Tag, m.VAddr, m.PAddr, m.Data)
			if h.CheckReservation(m.PAddr) {
				h.ClearReservation()
			}
		}

		if stalled {
			// Partial store overlap: push this entry (and everything
			// younger) back for the next cycle, after the store drains.
			e.mem1Mem2 = append(e.mem1Mem2, entries[i:]...)
			return
		}

		e.mem2Wb = append(e.mem2Wb, Mem2WbEntry{
			Tag: m.Tag, PC: m.PC, Dec: m.Dec, ALU: m.ALU, LoadData: load,
		})
	}
}

// memory2Load reads memory through the store buffer first: a fully
// covering older store forwards, a partial overlap stalls.
func (e *InOrderEngine) memory2Load(h *Hart, m *Mem1Mem2Entry) (uint64, bool) {
	var load uint64
	switch fwd, data := e.sb.ForwardLoad(m.PAddr, m.Dec.MemWidth); fwd {
	case ForwardStall:
		return 0, true
	case ForwardHit:
		load = extendLoad(data, m.Dec.MemWidth, m.Dec.Signed)
	default:
		load = readMemory(h, m.PAddr, m.Dec.MemWidth, m.Dec.Signed)
	}
	if m.Dec.Kind == isa.KindFPLoad && m.Dec.MemWidth == isa.Word {
		load |= 0xFFFF_FFFF_0000_0000
	}
	return load, false
}

// memory2Atomic handles LR/SC and the read-modify-write atomics.
func (e *InOrderEngine) memory2Atomic(h *Hart, m *Mem1Mem2Entry) (uint64, bool) {
	d := m.Dec

	switch {
	case d.IsLR:
		var old uint64
		switch fwd, data := e.sb.ForwardLoad(m.PAddr, d.MemWidth); fwd {
		case ForwardStall:
			return 0, true
		case ForwardHit:
			old = extendLoad(data, d.MemWidth, true)
		default:
			old = readMemory(h, m.PAddr, d.MemWidth, true)
		}
		h.SetReservation(m.PAddr)
		return old, false

	case d.IsSC:
		if h.CheckReservation(m.PAddr) {
			e.sb.Resolve(m.Tag, m.VAddr, m.PAddr, m.Data)
			h.ClearReservation()
			return 0, false
		}
		// Failure keeps the reservation; the entry never drains.
		e.sb.Cancel(m.Tag)
		return 1, false

	default:
		var old uint64
		switch fwd, data := e.sb.ForwardLoad(m.PAddr, d.MemWidth); fwd {
		case ForwardStall:
			return 0, true
		case ForwardHit:
			old = extendLoad(data, d.MemWidth, true)
		default:
			old = readMemory(h, m.PAddr, d.MemWidth, true)
		}

		newVal := alu.AtomicExec(d.AtomicOp, old, m.Data, d.MemWidth == isa.Word)
		e.sb.Resolve(m.Tag, m.VAddr, m.PAddr, newVal)
		if h.CheckReservation(m.PAddr) {
			h.ClearReservation()
		}
		return old, false
	}
}

// readMemory performs a typed bus read with sign extension.
func readMemory(h *Hart, paddr uint64, width isa.MemWidth, signed bool) uint64 {
	switch width {
	case isa.Byte:
		v := h.Bus.ReadByte(paddr)
		if signed {
			return uint64(int64(int8(v)))
		}
		return uint64(v)
	case isa.Half:
		v := h.Bus.ReadHalf(paddr)
		if signed {
			return uint64(int64(int16(v)))
		}
		return uint64(v)
	case isa.Word:
		v := h.Bus.ReadWord(paddr)
		if signed {
			return uint64(int64(int32(v)))
		}
		return uint64(v)
	default:
		return h.Bus.ReadDouble(paddr)
	}
}

// extendLoad sign-extends raw forwarded data, which the store buffer
// returns masked but unextended.
func extendLoad(data uint64, width isa.MemWidth, signed bool) uint64 {
	if !signed {
		return data
	}
	switch width {
	case isa.Byte:
		return uint64(int64(int8(data)))
	case isa.Half:
		return uint64(int64(int16(data)))
	case isa.Word:
		return uint64(int64(int32(data)))
	default:
		return data
	}
}

// writeMemory performs a typed bus write, used by the commit-stage
// store drain.
func writeMemory(h *Hart, paddr uint64, width isa.MemWidth, data uint64) {
	switch width {
	case isa.Byte:
		h.Bus.WriteByte(paddr, uint8(data))
	case isa.Half:
		h.Bus.WriteHalf(paddr, uint16(data))
	case isa.Word:
		h.Bus.WriteWord(paddr, uint32(data))
	default:
		h.Bus.WriteDouble(paddr, data)
	}
}
