// Package pipeline implements the ten-stage superscalar pipeline:
// two fetch stages, decode, rename, issue, execute, two memory stages,
// writeback, and commit, with a reorder buffer, store buffer, tag-based
// scoreboard, and branch predictor.
package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/bpred"
	"github.com/willmccallion/rvsim-sub001/pkg/bus"
	"github.com/willmccallion/rvsim-sub001/pkg/cache"
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/mmu"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
	"github.com/willmccallion/rvsim-sub001/pkg/stats"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// Hart carries the architectural state of a single hardware thread:
// integer and floating-point register files, program counter,
// privilege mode, CSR file, load reservation, and statistics, plus
// the memory hierarchy it owns (the CPU holds the
// system; devices never reference the CPU back).
type Hart struct {
	gpr [32]uint64
	FPR [32]uint64
	PC  uint64

	Mode priv.Mode
	CSRs *csr.File
	MMU  *mmu.Mmu
	Bus  *bus.Bus

	L1I *cache.Cache
	L1D *cache.Cache
	L2  *cache.Cache
	Mem *cache.MemController

	// Pred is the branch-prediction unit: consulted by the frontend,
	// trained by execute.
	Pred *bpred.Predictor

	// reservation is the one-entry load-reservation address.
	reservation      uint64
	reservationValid bool

	// WFIWaiting gates the frontend while the hart sleeps; WFIPC is
	// the resume address.
	WFIWaiting bool
	WFIPC      uint64

	// DirectMode marks a bare-metal run: any trap is fatal and
	// surfaces through FatalTrap instead of being delivered.
	DirectMode bool
	FatalTrap  *trap.Trap

	Stats stats.Stats
}

// NewHart wires a hart to its bus and memory hierarchy. Caches may be
// nil (disabled).
func NewHart(b *bus.Bus, m *mmu.Mmu, l1i, l1d, l2 *cache.Cache, mem *cache.MemController) *Hart {
	return &Hart{
		CSRs: &csr.File{
			Mstatus: csr.DefaultMstatusRV64,
			Misa:    csr.DefaultMisaRV64GC,
		},
		MMU:  m,
		Bus:  b,
		L1I:  l1i,
		L1D:  l1d,
		L2:   l2,
		Mem:  mem,
		Mode: priv.Machine,
	}
}

// Reg reads integer register i; x0 is hardwired to zero.
func (h *Hart) Reg(i uint8) uint64 {
	if i == 0 {
		return 0
	}
	return h.gpr[i]
}

// SetReg writes integer register i; writes to x0 are discarded.
func (h *Hart) SetReg(i uint8, v uint64) {
	if i != 0 {
		h.gpr[i] = v
	}
}

// SetReservation records the load-reservation address.
func (h *Hart) SetReservation(paddr uint64) {
	h.reservation = paddr
	h.reservationValid = true
}

// CheckReservation reports whether a valid reservation covers paddr.
func (h *Hart) CheckReservation(paddr uint64) bool {
	return h.reservationValid && h.reservation == paddr
}

// ClearReservation drops the reservation; any intervening store to the
// reserved address calls this so a later store-conditional fails.
func (h *Hart) ClearReservation() {
	h.reservationValid = false
}

// Translate runs the MMU for this hart's current mode.
func (h *Hart) Translate(vaddr uint64, access trap.AccessKind) mmu.Result {
	return h.MMU.Translate(vaddr, access, h.Mode, h.CSRs, h.Bus)
}

// instrAccess charges an access through the instruction-side cache
// hierarchy: L1I, then L2, then the memory controller.
func (h *Hart) instrAccess(paddr uint64) uint64 {
	return h.hierarchyAccess(paddr, false, h.L1I, &h.Stats.ICacheHits, &h.Stats.ICacheMisses)
}

// dataAccess charges an access through the data-side hierarchy.
func (h *Hart) dataAccess(paddr uint64, isWrite bool) uint64 {
	return h.hierarchyAccess(paddr, isWrite, h.L1D, &h.Stats.DCacheHits, &h.Stats.DCacheMisses)
}

func (h *Hart) hierarchyAccess(paddr uint64, isWrite bool, l1 *cache.Cache, hits, misses *uint64) uint64 {
	memLatency := func() uint64 {
		if h.Mem != nil {
			return h.Mem.Access(paddr)
		}
		return h.Bus.CalculateTransitTime(8)
	}

	if l1 == nil {
		return memLatency()
	}

	l2Latency := func() uint64 {
		if h.L2 == nil {
			return memLatency()
		}
		hit, penalty := h.L2.Access(paddr, isWrite, memLatency())
		if hit {
			h.Stats.L2Hits++
			return l2HitLatency + penalty
		}
		h.Stats.L2Misses++
		return l2HitLatency + memLatency() + penalty
	}

	hit, penalty := l1.Access(paddr, isWrite, l2HitLatency)
	if hit {
		*hits++
		return penalty
	}
	*misses++
	return l2Latency() + penalty
}

// l2HitLatency is the fixed cost of reaching the second-level cache.
const l2HitLatency = 8

// FlushDataCaches invalidates the data-side hierarchy, e.g. on an
// explicit flush-range store or an satp change.
func (h *Hart) FlushDataCaches() {
	if h.L1D != nil {
		h.L1D.Flush()
	}
	if h.L2 != nil {
		h.L2.Flush()
	}
}

// UpdateInterruptLines latches the device-side interrupt state into
// mip: machine timer/software from the CLINT, external levels from the
// PLIC arbitration, and the supervisor timer from stimecmp.
func (h *Hart) UpdateInterruptLines(mTimer, mSoft, mExt, sExt bool) {
	setOrClear := func(bit uint64, on bool) {
		if on {
			h.CSRs.Mip |= bit
		} else {
			h.CSRs.Mip &^= bit
		}
	}
	setOrClear(csr.MachineTimerBit, mTimer)
	setOrClear(csr.MachineSoftwareBit, mSoft)
	setOrClear(csr.MachineExternalBit, mExt)
	setOrClear(csr.SupervisorExternalBit, sExt)

	if h.CSRs.Stimecmp != 0 && h.CSRs.TimeValue >= h.CSRs.Stimecmp {
		h.CSRs.Mip |= csr.SupervisorTimerBit
	}
}

// AccountModeCycle bumps the per-privilege-mode cycle counter.
func (h *Hart) AccountModeCycle() {
	switch h.Mode {
	case priv.Machine:
		h.Stats.CyclesMachine++
	case priv.Supervisor:
		h.Stats.CyclesKernel++
	default:
		h.Stats.CyclesUser++
	}
}
