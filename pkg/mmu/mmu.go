package mmu

import (
	"github.com/willmccallion/rvsim-sub001/pkg/bus"
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// PageShift is the SV39 page offset width (4 KiB pages).
const PageShift = 12

// VPNMask selects the 27-bit virtual page number used for TLB tagging.
const VPNMask = (1 << 27) - 1

// PTE permission bits (shared with tlb.go's Insert).
const (
	pteValid    = 1 << 0
	pteRead     = 1 << 1
	pteWrite    = 1 << 2
	pteExec     = 1 << 3
	pteUser     = 1 << 4
	pteAccessed = 1 << 6
	pteDirty    = 1 << 7
	ptePPNShift = 10
)

// Result is the outcome of a translation request.
type Result struct {
	PAddr  uint64
	Cycles uint64
	Trap   *trap.Trap
}

// Mmu holds the instruction/data TLBs and the PMP unit for one hart.
type Mmu struct {
	ITLB *TLB
	DTLB *TLB
	PMP  PMP
}

// New creates an MMU with the given TLB sizes.
func New(itlbSize, dtlbSize int) *Mmu {
	return &Mmu{ITLB: NewTLB(itlbSize), DTLB: NewTLB(dtlbSize)}
}

// FlushTLBs invalidates both TLBs, e.g. on an satp write (sfence.vma).
func (m *Mmu) FlushTLBs() {
	m.ITLB.Flush()
	m.DTLB.Flush()
}

// SyncPMP reloads the PMP entries from the pmpcfg/pmpaddr CSRs;
// called after a commit-time write to either register file.
func (m *Mmu) SyncPMP(csrs *csr.File) {
	for i := 0; i < PMPCount; i++ {
		cfg := uint8(csrs.Pmpcfg[i/8] >> (uint(i%8) * 8))
		m.PMP.Entries[i] = PMPEntry{Cfg: cfg, Addr: csrs.Pmpaddr[i]}
	}
}

// pmpFault checks the physical-memory-protection unit for paddr and
// returns the matching access fault on denial.
func (m *Mmu) pmpFault(paddr uint64, access trap.AccessKind, mode priv.Mode) *trap.Trap {
	res := m.PMP.Check(paddr, 1,
		access == trap.AccessLoad,
		access == trap.AccessStore,
		access == trap.AccessFetch,
		mode == priv.Machine)
	if res == PMPAllow {
		return nil
	}
	t := trap.AccessFault(access, paddr)
	return &t
}

// canonical reports whether vaddr has the SV39-required canonical
// form: bits 63..39 must equal bit 38. The shift keeps 26 bits (bit 38
// plus the 25 above it), so the all-ones comparison is against a
// 26-bit value.
func canonical(vaddr uint64) bool {
	top := vaddr >> 38
	return top == 0 || top == (1<<26)-1
}

// Translate converts vaddr to a physical address per SV39. In machine
// mode or bare translation mode, the identity mapping is returned at
// zero cost.
func (m *Mmu) Translate(vaddr uint64, access trap.AccessKind, mode priv.Mode, csrs *csr.File, b *bus.Bus) Result {
	if mode == priv.Machine || !csrs.TranslationMode() {
		if t := m.pmpFault(vaddr, access, mode); t != nil {
			return Result{Trap: t}
		}
		return Result{PAddr: vaddr}
	}

	if !canonical(vaddr) {
		t := trap.AccessFault(access, vaddr)
		return Result{Trap: &t}
	}

	vpn := (vaddr >> PageShift) & VPNMask
	tlb := m.DTLB
	if access == trap.AccessFetch {
		tlb = m.ITLB
	}

	if entry, ok := tlb.Lookup(vpn); ok {
		if err := checkPermissions(entry.R, entry.W, entry.X, entry.U, access, mode, csrs); err != nil {
			t := trap.PageFault(access, vaddr)
			return Result{Trap: &t}
		}
		paddr := (entry.PPN << PageShift) | (vaddr & (1<<PageShift - 1))
		if t := m.pmpFault(paddr, access, mode); t != nil {
			return Result{Trap: t}
		}
		return Result{PAddr: paddr}
	}

	res := walkPageTable(m, vaddr, access, mode, csrs, b)
	if res.Trap == nil {
		if t := m.pmpFault(res.PAddr, access, mode); t != nil {
			return Result{Cycles: res.Cycles, Trap: t}
		}
	}
	return res
}

// checkPermissions enforces the access-kind/privilege permission
// matrix.
func checkPermissions(r, w, x, u bool, access trap.AccessKind, mode priv.Mode, csrs *csr.File) error {
	if access == trap.AccessStore && !w {
		return errDenied
	}
	if access == trap.AccessFetch && !x {
		return errDenied
	}

	mxr := csrs.Mstatus&csr.MstatusMXR != 0
	if access == trap.AccessLoad && !(r || (x && mxr)) {
		return errDenied
	}

	if mode == priv.User && !u {
		return errDenied
	}

	if mode == priv.Supervisor && u {
		sum := csrs.Mstatus&csr.MstatusSUM != 0
		if !sum {
			return errDenied
		}
		if access == trap.AccessFetch {
			return errDenied
		}
	}

	return nil
}

type permError struct{}

func (permError) Error() string { return "mmu: permission denied" }

var errDenied = permError{}
