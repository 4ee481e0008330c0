package cache

// Prefetcher observes cache accesses and may emit addresses to
// speculatively install.
type Prefetcher interface {
	Observe(addr uint64, hit bool) []uint64
}

// NextLine emits the Degree successive cache lines after each accessed
// address.
type NextLine struct {
	LineBytes uint64
	Degree    int
}

// NewNextLine creates a next-line prefetcher.
func NewNextLine(lineBytes uint64, degree int) *NextLine {
	return &NextLine{LineBytes: lineBytes, Degree: degree}
}

// Observe implements Prefetcher.
func (n *NextLine) Observe(addr uint64, hit bool) []uint64 {
	base := (addr / n.LineBytes) * n.LineBytes
	out := make([]uint64, 0, n.Degree)
	for i := 1; i <= n.Degree; i++ {
		out = append(out, base+uint64(i)*n.LineBytes)
	}
	return out
}

// strideEntry tracks the last observed address and stride for one PC
// (or address-region) slot of the stride table.
type strideEntry struct {
	valid      bool
	lastAddr   uint64
	stride     int64
	confidence int
}

const strideConfidenceThreshold = 2

// Stride detects a constant address delta across successive accesses
// mapped to the same table entry and, once confident, emits Degree
// stride-ahead addresses.
type Stride struct {
	LineBytes uint64
	Degree    int
	table     []strideEntry
}

// NewStride creates a stride prefetcher with the given table size.
func NewStride(lineBytes uint64, tableSize, degree int) *Stride {
	if tableSize <= 0 {
		tableSize = 1
	}
	return &Stride{LineBytes: lineBytes, Degree: degree, table: make([]strideEntry, tableSize)}
}

func (s *Stride) index(addr uint64) int {
	return int((addr / s.LineBytes) % uint64(len(s.table)))
}

// Observe implements Prefetcher.
func (s *Stride) Observe(addr uint64, hit bool) []uint64 {
	idx := s.index(addr)
	e := &s.table[idx]

	if !e.valid {
		*e = strideEntry{valid: true, lastAddr: addr}
		return nil
	}

	delta := int64(addr) - int64(e.lastAddr)
	if delta == e.stride && delta != 0 {
		if e.confidence < 15 {
			e.confidence++
		}
	} else {
		e.stride = delta
		e.confidence = 0
	}
	e.lastAddr = addr

	if e.confidence < strideConfidenceThreshold || e.stride == 0 {
		return nil
	}

	out := make([]uint64, 0, s.Degree)
	for i := 1; i <= s.Degree; i++ {
		target := int64(addr) + e.stride*int64(i)
		if target < 0 {
			continue
		}
		out = append(out, uint64(target))
	}
	return out
}

// Stream is a simplified stream prefetcher: it tracks the most recent
// monotonic run direction per access and, once a short run of
// same-direction accesses is observed, streams ahead by Degree lines.
type Stream struct {
	LineBytes uint64
	Degree    int

	lastAddr  uint64
	lastValid bool
	runLen    int
	ascending bool
}

// NewStream creates a stream prefetcher.
func NewStream(lineBytes uint64, degree int) *Stream {
	return &Stream{LineBytes: lineBytes, Degree: degree}
}

const streamConfidenceRun = 2

// Observe implements Prefetcher.
func (s *Stream) Observe(addr uint64, hit bool) []uint64 {
	if !s.lastValid {
		s.lastAddr, s.lastValid = addr, true
		return nil
	}
	ascending := addr > s.lastAddr
	contiguous := (ascending && addr-s.lastAddr <= s.LineBytes*4) ||
		(!ascending && s.lastAddr-addr <= s.LineBytes*4)

	if contiguous && ascending == s.ascending {
		s.runLen++
	} else {
		s.runLen = 1
		s.ascending = ascending
	}
	s.lastAddr = addr

	if s.runLen < streamConfidenceRun {
		return nil
	}

	out := make([]uint64, 0, s.Degree)
	for i := 1; i <= s.Degree; i++ {
		if s.ascending {
			out = append(out, addr+uint64(i)*s.LineBytes)
		} else {
			out = append(out, addr-uint64(i)*s.LineBytes)
		}
	}
	return out
}

// taggedEntry remembers whether a prefetched line has since been
// referenced, to throttle re-triggering.
type taggedEntry struct {
	valid     bool
	lastAddr  uint64
	triggered bool
}

// Tagged is a tagged-prefetch variant: like NextLine, but only
// re-triggers once the previously prefetched line has actually been
// referenced (a simplified confidence scheme).
type Tagged struct {
	LineBytes uint64
	Degree    int
	entries   map[uint64]bool // line address -> was-prefetched-and-unused
	last      taggedEntry
}

// NewTagged creates a tagged prefetcher.
func NewTagged(lineBytes uint64, degree int) *Tagged {
	return &Tagged{LineBytes: lineBytes, Degree: degree, entries: make(map[uint64]bool)}
}

// Observe implements Prefetcher.
func (t *Tagged) Observe(addr uint64, hit bool) []uint64 {
	line := (addr / t.LineBytes) * t.LineBytes
	wasTagged := t.entries[line]
	delete(t.entries, line)

	if hit && !wasTagged {
		return nil
	}

	out := make([]uint64, 0, t.Degree)
	for i := 1; i <= t.Degree; i++ {
		target := line + uint64(i)*t.LineBytes
		out = append(out, target)
		t.entries[target] = true
	}
	return out
}
