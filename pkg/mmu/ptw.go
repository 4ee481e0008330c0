package mmu

import (
	"github.com/willmccallion/rvsim-sub001/pkg/bus"
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// SV39 walk parameters.
const (
	sv39Levels      = 3
	vpnBitsPerLevel = 9
	vpnEntryMask    = 0x1FF
	pteSize         = 8
	// pteUpdateCycles is the cost of writing a PTE's accessed/dirty
	// bits back to memory.
	pteUpdateCycles = 10
)

// pte wraps a raw SV39 page-table entry.
type pte uint64

func (p pte) valid() bool    { return p&pteValid != 0 }
func (p pte) read() bool     { return p&pteRead != 0 }
func (p pte) write() bool    { return p&pteWrite != 0 }
func (p pte) exec() bool     { return p&pteExec != 0 }
func (p pte) user() bool     { return p&pteUser != 0 }
func (p pte) accessed() bool { return p&pteAccessed != 0 }
func (p pte) dirty() bool    { return p&pteDirty != 0 }
func (p pte) ppn() uint64    { return (uint64(p) >> ptePPNShift) & csr.SatpPPNMask }

// pointer reports whether this entry points at a next-level table:
// valid with R=W=X=0.
func (p pte) pointer() bool { return !p.read() && !p.write() && !p.exec() }

// walkPageTable performs the three-level SV39 walk: index with
// VPN[2], VPN[1], VPN[0], read an 8-byte PTE at
// each level (accumulating bus transit cycles), follow pointer PTEs,
// and stop at a leaf. Mega/giga-page leaves must have an aligned PPN.
// Accessed/dirty bits are set and written back if not already set.
func walkPageTable(m *Mmu, vaddr uint64, access trap.AccessKind, mode priv.Mode, csrs *csr.File, b *bus.Bus) Result {
	ppn := csrs.Root()
	var cycles uint64

	for level := sv39Levels - 1; level >= 0; level-- {
		vpnShift := uint(PageShift + level*vpnBitsPerLevel)
		vpnI := (vaddr >> vpnShift) & vpnEntryMask
		pteAddr := (ppn << PageShift) + vpnI*pteSize

		cycles += b.CalculateTransitTime(pteSize)
		entry := pte(b.ReadDouble(pteAddr))

		if !entry.valid() {
			return pageFaultResult(vaddr, access, cycles)
		}

		if entry.pointer() {
			if level == 0 {
				return pageFaultResult(vaddr, access, cycles)
			}
			ppn = entry.ppn()
			continue
		}

		if level > 0 {
			ppnMask := uint64(1)<<(uint(level)*vpnBitsPerLevel) - 1
			if entry.ppn()&ppnMask != 0 {
				return pageFaultResult(vaddr, access, cycles)
			}
		}

		if err := checkPermissions(entry.read(), entry.write(), entry.exec(), entry.user(), access, mode, csrs); err != nil {
			return pageFaultResult(vaddr, access, cycles)
		}

		updated := entry
		if !entry.accessed() {
			updated |= pteAccessed
		}
		if access == trap.AccessStore && !entry.dirty() {
			updated |= pteDirty
		}
		if updated != entry {
			b.WriteDouble(pteAddr, uint64(updated))
			cycles += pteUpdateCycles
		}

		offsetMask := uint64(1)<<vpnShift - 1
		paddr := (updated.ppn() << PageShift) | (vaddr & offsetMask)

		// Insert the specific 4 KiB page so mega/giga-page TLB hits
		// translate correctly without remembering the leaf level.
		vpn := (vaddr >> PageShift) & VPNMask
		tlb := m.DTLB
		if access == trap.AccessFetch {
			tlb = m.ITLB
		}
		tlb.Insert(vpn, paddr>>PageShift, uint64(updated))

		return Result{PAddr: paddr, Cycles: cycles}
	}

	return pageFaultResult(vaddr, access, cycles)
}

func pageFaultResult(vaddr uint64, access trap.AccessKind, cycles uint64) Result {
	t := trap.PageFault(access, vaddr)
	return Result{Cycles: cycles, Trap: &t}
}
