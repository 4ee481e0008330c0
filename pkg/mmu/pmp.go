// Package mmu implements SV39 virtual memory translation — TLBs, the
// hardware page-table walker, and physical-memory protection —
package mmu

// PMPCount is the number of physical-memory-protection entries
// implemented.
const PMPCount = 16

// pmp config byte fields.
const (
	pmpR = 1 << 0
	pmpW = 1 << 1
	pmpX = 1 << 2
	pmpL = 1 << 7

	pmpAShift = 3
	pmpAMask  = 0x3
)

// MatchMode identifies a PMP entry's address-matching mode.
type MatchMode int

const (
	MatchOff MatchMode = iota
	MatchTOR
	MatchNA4
	MatchNAPOT
)

// PMPEntry is one physical-memory-protection region.
type PMPEntry struct {
	Cfg  uint8
	Addr uint64 // pmpaddr register value: physical address >> 2
}

// MatchMode returns the entry's address-matching mode.
func (e PMPEntry) MatchMode() MatchMode {
	switch (e.Cfg >> pmpAShift) & pmpAMask {
	case 1:
		return MatchTOR
	case 2:
		return MatchNA4
	case 3:
		return MatchNAPOT
	default:
		return MatchOff
	}
}

func (e PMPEntry) readable() bool  { return e.Cfg&pmpR != 0 }
func (e PMPEntry) writable() bool  { return e.Cfg&pmpW != 0 }
func (e PMPEntry) executable() bool { return e.Cfg&pmpX != 0 }
func (e PMPEntry) locked() bool    { return e.Cfg&pmpL != 0 }

// PMPResult is the outcome of a PMP permission check.
type PMPResult int

const (
	PMPAllow PMPResult = iota
	PMPDeny
	PMPNoMatch
)

// PMP is the physical-memory-protection unit: up to PMPCount entries,
// each with an address-matching mode, R/W/X permissions, and a lock
// bit.
type PMP struct {
	Entries [PMPCount]PMPEntry
}

func napotRange(pmpaddr uint64) (lo, hi uint64) {
	trailingOnes := trailingOnesCount(pmpaddr)
	size := uint64(1) << (trailingOnes + 3)
	mask := size - 1
	base := (pmpaddr << 2) &^ mask
	return base, base + size
}

func trailingOnesCount(v uint64) uint64 {
	var n uint64
	for v&1 == 1 {
		n++
		v >>= 1
	}
	return n
}

func na4Range(pmpaddr uint64) (lo, hi uint64) {
	base := pmpaddr << 2
	return base, base + 4
}

// Check determines whether an access at byteAddr of the given size is
// permitted: the first matching entry (in index order) decides; a
// locked entry binds machine mode to its permissions, an unlocked
// entry lets machine mode bypass; with no match, machine mode is
// allowed and other modes fail.
func (p *PMP) Check(byteAddr, size uint64, isRead, isWrite, isExec, isMachineMode bool) PMPResult {
	accessEnd := byteAddr + size

	for i, entry := range p.Entries {
		mode := entry.MatchMode()
		if mode == MatchOff {
			continue
		}

		var lo, hi uint64
		switch mode {
		case MatchTOR:
			hi = entry.Addr << 2
			if i > 0 {
				lo = p.Entries[i-1].Addr << 2
			}
		case MatchNA4:
			lo, hi = na4Range(entry.Addr)
		case MatchNAPOT:
			lo, hi = napotRange(entry.Addr)
		}

		if byteAddr < lo || accessEnd > hi {
			continue
		}

		if isMachineMode && !entry.locked() {
			return PMPAllow
		}

		permitted := (!isRead || entry.readable()) &&
			(!isWrite || entry.writable()) &&
			(!isExec || entry.executable())
		if permitted {
			return PMPAllow
		}
		return PMPDeny
	}

	if isMachineMode {
		return PMPAllow
	}
	return PMPNoMatch
}
