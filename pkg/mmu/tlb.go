package mmu

// TLBEntry caches one virtual-to-physical page translation
type TLBEntry struct {
	Valid      bool
	VPN        uint64 // tag
	PPN        uint64
	R, W, X, U bool
}

// TLB is a direct-mapped translation-lookaside buffer, indexed by
// a direct hash of the virtual page number into a fixed-size table;
// collisions simply evict, which is a faithful model of a small
// hardware TLB.
type TLB struct {
	entries []TLBEntry
}

// NewTLB creates a TLB with the given number of entries.
func NewTLB(size int) *TLB {
	if size <= 0 {
		size = 64
	}
	return &TLB{entries: make([]TLBEntry, size)}
}

func (t *TLB) slot(vpn uint64) int {
	return int(vpn % uint64(len(t.entries)))
}

// Lookup returns the cached entry for vpn, if present.
func (t *TLB) Lookup(vpn uint64) (TLBEntry, bool) {
	e := t.entries[t.slot(vpn)]
	if e.Valid && e.VPN == vpn {
		return e, true
	}
	return TLBEntry{}, false
}

// Insert caches a translation decoded from a raw leaf PTE.
func (t *TLB) Insert(vpn, ppn uint64, pte uint64) {
	t.entries[t.slot(vpn)] = TLBEntry{
		Valid: true,
		VPN:   vpn,
		PPN:   ppn,
		R:     pte&pteRead != 0,
		W:     pte&pteWrite != 0,
		X:     pte&pteExec != 0,
		U:     pte&pteUser != 0,
	}
}

// Flush invalidates every entry, e.g. on an satp write that changes the
// address space.
func (t *TLB) Flush() {
	for i := range t.entries {
		t.entries[i] = TLBEntry{}
	}
}
