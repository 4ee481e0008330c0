// Package cache implements a configurable set-associative cache
// simulator with pluggable replacement policies and prefetchers.
package cache

import "math/rand"

// ReplacementPolicy selects and tracks victim ways within each set.
type ReplacementPolicy interface {
	// Update records that way within set was just accessed (on hit or
	// after installation).
	Update(set, way int)
	// Victim selects the way to evict from set.
	Victim(set int) int
}

// LRU is a per-set least-recently-used stack: touch moves the way to
// the front, the victim is the back.
type LRU struct {
	stacks [][]int // stacks[set] lists ways, most-recently-used first
}

// NewLRU creates an LRU policy for the given set/way geometry.
func NewLRU(sets, ways int) *LRU {
	l := &LRU{stacks: make([][]int, sets)}
	for s := range l.stacks {
		stack := make([]int, ways)
		for w := range stack {
			stack[w] = w
		}
		l.stacks[s] = stack
	}
	return l
}

// Update implements ReplacementPolicy.
func (l *LRU) Update(set, way int) {
	stack := l.stacks[set]
	for i, w := range stack {
		if w == way {
			copy(stack[1:i+1], stack[0:i])
			stack[0] = way
			return
		}
	}
}

// Victim implements ReplacementPolicy: the back of the stack.
func (l *LRU) Victim(set int) int {
	stack := l.stacks[set]
	return stack[len(stack)-1]
}

// MRU is structurally identical to LRU but evicts the most-recently-
// used way (the front of the stack) instead of the least.
type MRU struct {
	stacks [][]int
}

// NewMRU creates an MRU policy for the given set/way geometry.
func NewMRU(sets, ways int) *MRU {
	m := &MRU{stacks: make([][]int, sets)}
	for s := range m.stacks {
		stack := make([]int, ways)
		for w := range stack {
			stack[w] = w
		}
		m.stacks[s] = stack
	}
	return m
}

// Update implements ReplacementPolicy.
func (m *MRU) Update(set, way int) {
	stack := m.stacks[set]
	for i, w := range stack {
		if w == way {
			copy(stack[1:i+1], stack[0:i])
			stack[0] = way
			return
		}
	}
}

// Victim implements ReplacementPolicy: the front of the stack (the
// most-recently-used way).
func (m *MRU) Victim(set int) int {
	return m.stacks[set][0]
}

// FIFO is a per-set round-robin pointer, advanced only when it is
// itself selected as a victim (i.e. on installation).
type FIFO struct {
	ptr  []int
	ways int
}

// NewFIFO creates a FIFO policy for the given set/way geometry.
func NewFIFO(sets, ways int) *FIFO {
	return &FIFO{ptr: make([]int, sets), ways: ways}
}

// Update implements ReplacementPolicy: FIFO ignores ordinary hits.
func (f *FIFO) Update(set, way int) {}

// Victim implements ReplacementPolicy and advances the round-robin
// pointer for set.
func (f *FIFO) Victim(set int) int {
	v := f.ptr[set]
	f.ptr[set] = (v + 1) % f.ways
	return v
}

// PLRU is a per-set pseudo-LRU bit vector: the victim is the first way
// whose bit is unset; when all bits are set, only the just-touched
// way's bit survives the reset.
type PLRU struct {
	bits [][]bool
	ways int
}

// NewPLRU creates a PLRU policy for the given set/way geometry.
func NewPLRU(sets, ways int) *PLRU {
	p := &PLRU{bits: make([][]bool, sets), ways: ways}
	for s := range p.bits {
		p.bits[s] = make([]bool, ways)
	}
	return p
}

// Update implements ReplacementPolicy.
func (p *PLRU) Update(set, way int) {
	bits := p.bits[set]
	bits[way] = true
	full := true
	for _, b := range bits {
		if !b {
			full = false
			break
		}
	}
	if full {
		for i := range bits {
			bits[i] = false
		}
		bits[way] = true
	}
}

// Victim implements ReplacementPolicy: the first unset bit, or way 0
// if somehow all are set (defensive; Update always leaves one set).
func (p *PLRU) Victim(set int) int {
	bits := p.bits[set]
	for i, b := range bits {
		if !b {
			return i
		}
	}
	return 0
}

// Random evicts a pseudo-random way per set, drawn from a per-unit
// math/rand generator; the generator is not an LFSR.
type Random struct {
	rng  *rand.Rand
	ways int
}

// NewRandom creates a random-replacement policy for the given set/way
// geometry, seeded deterministically for reproducible simulation runs.
func NewRandom(sets, ways int, seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed)), ways: ways}
}

// Update implements ReplacementPolicy: random replacement tracks no
// per-access state.
func (r *Random) Update(set, way int) {}

// Victim implements ReplacementPolicy.
func (r *Random) Victim(set int) int {
	return r.rng.Intn(r.ways)
}
