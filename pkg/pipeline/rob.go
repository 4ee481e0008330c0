package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/isa"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// ROBState tracks an in-flight instruction's progress.
type ROBState uint8

const (
	// ROBIssued marks an entry still executing.
	ROBIssued ROBState = iota
	// ROBCompleted marks an entry whose result is ready to commit.
	ROBCompleted
	// ROBFaulted marks an entry carrying a pending trap.
	ROBFaulted
)

// CSRUpdate is a deferred CSR write staged by execute and applied at
// commit.
type CSRUpdate struct {
	Addr uint32
	Val  uint64
}

// ROBEntry is one in-flight instruction: tag, PC, raw
// bits, decoded control signals, state, result, pending CSR write, and
// pending trap.
type ROBEntry struct {
	Tag  uint64
	PC   uint64
	Dec  isa.Decoded
	Size uint64

	State  ROBState
	Result uint64

	CSRUpdate *CSRUpdate
	Trap      *trap.Trap
}

// ROB is a bounded FIFO of in-flight instructions in program order.
// Tags are assigned monotonically and are unique while resident;
// commit removes from the head; a misprediction or trap discards all
// entries newer than a given tag in one step.
type ROB struct {
	entries []ROBEntry
	nextTag uint64
}

// NewROB creates a reorder buffer holding up to capacity entries.
func NewROB(capacity int) *ROB {
	if capacity <= 0 {
		capacity = 32
	}
	return &ROB{entries: make([]ROBEntry, 0, capacity)}
}

// FreeSlots returns how many entries can still be allocated.
func (r *ROB) FreeSlots() int { return cap(r.entries) - len(r.entries) }

// Len returns the number of resident entries.
func (r *ROB) Len() int { return len(r.entries) }

// Allocate appends a new entry at the tail and returns its tag.
func (r *ROB) Allocate(pc uint64, dec isa.Decoded, t *trap.Trap) (uint64, bool) {
	if r.FreeSlots() == 0 {
		return 0, false
	}
	tag := r.nextTag
	r.nextTag++
	e := ROBEntry{Tag: tag, PC: pc, Dec: dec, Size: uint64(dec.Size), Trap: t}
	if t != nil {
		e.State = ROBFaulted
	}
	r.entries = append(r.entries, e)
	return tag, true
}

// PeekHead returns the oldest entry without removing it.
func (r *ROB) PeekHead() *ROBEntry {
	if len(r.entries) == 0 {
		return nil
	}
	return &r.entries[0]
}

// CommitHead removes and returns the oldest entry.
func (r *ROB) CommitHead() (ROBEntry, bool) {
	if len(r.entries) == 0 {
		return ROBEntry{}, false
	}
	e := r.entries[0]
	r.entries = r.entries[:copy(r.entries, r.entries[1:])]
	return e, true
}

// Find returns the resident entry with the given tag, or nil.
func (r *ROB) Find(tag uint64) *ROBEntry {
	for i := range r.entries {
		if r.entries[i].Tag == tag {
			return &r.entries[i]
		}
	}
	return nil
}

// MarkCompleted stores the result and moves the entry to completed,
// unless it already faulted.
func (r *ROB) MarkCompleted(tag uint64, result uint64) {
	if e := r.Find(tag); e != nil && e.State != ROBFaulted {
		e.Result = result
		e.State = ROBCompleted
	}
}

// MarkFaulted attaches a trap to the entry.
func (r *ROB) MarkFaulted(tag uint64, t trap.Trap) {
	if e := r.Find(tag); e != nil {
		tt := t
		e.Trap = &tt
		e.State = ROBFaulted
	}
}

// FlushAfter discards every entry strictly newer than keepTag in one
// step.
func (r *ROB) FlushAfter(keepTag uint64) {
	for i := range r.entries {
		if r.entries[i].Tag > keepTag {
			r.entries = r.entries[:i]
			return
		}
	}
}

// FlushAll discards every entry.
func (r *ROB) FlushAll() { r.entries = r.entries[:0] }

// ForEach visits resident entries head-to-tail.
func (r *ROB) ForEach(fn func(*ROBEntry)) {
	for i := range r.entries {
		fn(&r.entries[i])
	}
}
