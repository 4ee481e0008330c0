package pipeline

import "github.com/willmccallion/rvsim-sub001/pkg/isa"

// SBState tracks a store-buffer entry's lifecycle.
type SBState uint8

const (
	// SBAllocated marks an entry reserved at rename, address unknown.
	SBAllocated SBState = iota
	// SBResolved marks an entry with physical address and data filled
	// at memory2.
	SBResolved
	// SBCommitted marks an entry whose instruction retired; it drains
	// to memory one per cycle.
	SBCommitted
)

// SBEntry is one speculative store.
type SBEntry struct {
	Tag    uint64
	State  SBState
	VAddr  uint64
	PAddr  uint64
	Data   uint64
	Width  isa.MemWidth
	cancel bool
}

// ForwardResult classifies a store-to-load forwarding probe.
type ForwardResult int

const (
	// ForwardMiss means no older store overlaps the load.
	ForwardMiss ForwardResult = iota
	// ForwardHit means an older store fully covers the load.
	ForwardHit
	// ForwardStall means an older store partially overlaps; the load
	// must wait for it to drain.
	ForwardStall
)

// StoreBuffer is a FIFO of speculative stores allocated at rename and
// drained to memory only after commit.
type StoreBuffer struct {
	entries  []SBEntry
	capacity int
}

// NewStoreBuffer creates a store buffer holding up to capacity stores.
func NewStoreBuffer(capacity int) *StoreBuffer {
	if capacity <= 0 {
		capacity = 16
	}
	return &StoreBuffer{entries: make([]SBEntry, 0, capacity), capacity: capacity}
}

// FreeSlots returns how many stores can still be allocated.
func (s *StoreBuffer) FreeSlots() int { return s.capacity - len(s.entries) }

// Allocate reserves an entry for the store with the given ROB tag.
func (s *StoreBuffer) Allocate(tag uint64, width isa.MemWidth) bool {
	if s.FreeSlots() == 0 {
		return false
	}
	s.entries = append(s.entries, SBEntry{Tag: tag, Width: width})
	return true
}

// Resolve fills the entry's addresses and data at memory2.
func (s *StoreBuffer) Resolve(tag, vaddr, paddr, data uint64) {
	for i := range s.entries {
		if s.entries[i].Tag == tag {
			s.entries[i].VAddr = vaddr
			s.entries[i].PAddr = paddr
			s.entries[i].Data = data
			s.entries[i].State = SBResolved
			return
		}
	}
}

// Cancel marks the entry dead (a failed store-conditional); it is
// dropped instead of draining.
func (s *StoreBuffer) Cancel(tag uint64) {
	for i := range s.entries {
		if s.entries[i].Tag == tag {
			s.entries[i].cancel = true
			return
		}
	}
}

// MarkCommitted transitions the entry at commit so it becomes eligible
// to drain.
func (s *StoreBuffer) MarkCommitted(tag uint64) {
	for i := range s.entries {
		if s.entries[i].Tag == tag {
			s.entries[i].State = SBCommitted
			return
		}
	}
}

// DrainOne removes and returns the oldest committed entry, one per
// cycle. Cancelled entries at the head are discarded first.
func (s *StoreBuffer) DrainOne() (SBEntry, bool) {
	for len(s.entries) > 0 {
		head := s.entries[0]
		if head.cancel && head.State == SBCommitted {
			s.entries = s.entries[:copy(s.entries, s.entries[1:])]
			continue
		}
		if head.State != SBCommitted {
			return SBEntry{}, false
		}
		s.entries = s.entries[:copy(s.entries, s.entries[1:])]
		return head, true
	}
	return SBEntry{}, false
}

// widthBytes returns the access size in bytes.
func widthBytes(w isa.MemWidth) uint64 {
	switch w {
	case isa.Byte:
		return 1
	case isa.Half:
		return 2
	case isa.Word:
		return 4
	default:
		return 8
	}
}

// ForwardLoad probes for store-to-load forwarding at paddr, searching
// newest-to-oldest: a fully covering older store returns its (masked,
// shifted) data; a partial overlap returns a stall; otherwise a miss.
// Only resolved or committed entries participate;
// allocated entries have no address yet and are younger than any load
// probing here in an in-order backend.
func (s *StoreBuffer) ForwardLoad(paddr uint64, width isa.MemWidth) (ForwardResult, uint64) {
	loadSize := widthBytes(width)
	loadEnd := paddr + loadSize

	for i := len(s.entries) - 1; i >= 0; i-- {
		e := &s.entries[i]
		if e.State == SBAllocated || e.cancel {
			continue
		}
		storeSize := widthBytes(e.Width)
		storeEnd := e.PAddr + storeSize

		if loadEnd <= e.PAddr || paddr >= storeEnd {
			continue
		}
		if e.PAddr <= paddr && loadEnd <= storeEnd {
			shift := (paddr - e.PAddr) * 8
			data := e.Data >> shift
			if loadSize < 8 {
				data &= uint64(1)<<(loadSize*8) - 1
			}
			return ForwardHit, data
		}
		return ForwardStall, 0
	}
	return ForwardMiss, 0
}

// FlushAfter cancels entries allocated after keepTag, for a
// misprediction recovery.
func (s *StoreBuffer) FlushAfter(keepTag uint64) {
	for i := range s.entries {
		if s.entries[i].Tag > keepTag {
			s.entries = s.entries[:i]
			return
		}
	}
}

// FlushSpeculative drops every entry that has not yet committed;
// committed stores are architectural and always drain.
func (s *StoreBuffer) FlushSpeculative() {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.State == SBCommitted {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}
