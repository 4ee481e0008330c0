package cache

// Policy identifies a replacement-policy kind for Config.
type Policy int

const (
	PolicyLRU Policy = iota
	PolicyFIFO
	PolicyPLRU
	PolicyMRU
	PolicyRandom
)

// PrefetchKind identifies a prefetcher kind for Config.
type PrefetchKind int

const (
	PrefetchNone PrefetchKind = iota
	PrefetchNextLine
	PrefetchStride
	PrefetchStream
	PrefetchTagged
)

// Config parameterizes a set-associative cache level.
type Config struct {
	SizeBytes      uint64
	LineBytes      uint64
	Ways           int
	Policy         Policy
	Prefetcher     PrefetchKind
	PrefetchDegree int
	PrefetchTable  int
	Enabled        bool
	// Seed drives the Random policy's generator, for reproducibility.
	Seed int64
}

// line is one cache-line slot: tag, valid bit, dirty bit.
type line struct {
	tag   uint64
	valid bool
	dirty bool
}

// Cache is a configurable set-associative cache simulator modeling
// hit/miss classification and penalty.
type Cache struct {
	lines     []line
	numSets   int
	ways      int
	lineBytes uint64
	enabled   bool

	policy     ReplacementPolicy
	prefetcher Prefetcher
}

// New creates a cache simulator from cfg.
func New(cfg Config) *Cache {
	ways := cfg.Ways
	if ways <= 0 {
		ways = 1
	}
	lineBytes := cfg.LineBytes
	if lineBytes == 0 {
		lineBytes = 64
	}
	size := cfg.SizeBytes
	if size == 0 {
		size = 4096
	}

	numLines := int(size / lineBytes)
	numSets := numLines / ways
	if numSets <= 0 {
		numSets = 1
	}

	var policy ReplacementPolicy
	switch cfg.Policy {
	case PolicyFIFO:
		policy = NewFIFO(numSets, ways)
	case PolicyPLRU:
		policy = NewPLRU(numSets, ways)
	case PolicyMRU:
		policy = NewMRU(numSets, ways)
	case PolicyRandom:
		policy = NewRandom(numSets, ways, cfg.Seed)
	default:
		policy = NewLRU(numSets, ways)
	}

	degree := cfg.PrefetchDegree
	if degree <= 0 {
		degree = 1
	}
	var pref Prefetcher
	switch cfg.Prefetcher {
	case PrefetchNextLine:
		pref = NewNextLine(lineBytes, degree)
	case PrefetchStride:
		table := cfg.PrefetchTable
		if table <= 0 {
			table = 64
		}
		pref = NewStride(lineBytes, table, degree)
	case PrefetchStream:
		pref = NewStream(lineBytes, degree)
	case PrefetchTagged:
		pref = NewTagged(lineBytes, degree)
	}

	return &Cache{
		lines:      make([]line, numSets*ways),
		numSets:    numSets,
		ways:       ways,
		lineBytes:  lineBytes,
		enabled:    cfg.Enabled,
		policy:     policy,
		prefetcher: pref,
	}
}

func (c *Cache) setAndTag(addr uint64) (set int, tag uint64) {
	set = int((addr / c.lineBytes) % uint64(c.numSets))
	tag = addr / (c.lineBytes * uint64(c.numSets))
	return
}

// Contains reports whether addr is currently resident.
func (c *Cache) Contains(addr uint64) bool {
	if !c.enabled {
		return false
	}
	set, tag := c.setAndTag(addr)
	base := set * c.ways
	for i := 0; i < c.ways; i++ {
		l := c.lines[base+i]
		if l.valid && l.tag == tag {
			return true
		}
	}
	return false
}

// installLine selects a victim and installs addr's line, returning the
// write-back penalty incurred if the victim was dirty.
func (c *Cache) installLine(addr uint64, isWrite bool, nextLevelLatency uint64) uint64 {
	set, tag := c.setAndTag(addr)
	base := set * c.ways

	way := c.policy.Victim(set)
	idx := base + way

	var penalty uint64
	if c.lines[idx].valid && c.lines[idx].dirty {
		penalty = nextLevelLatency
	}

	c.lines[idx] = line{tag: tag, valid: true, dirty: isWrite}
	c.policy.Update(set, way)
	return penalty
}

// Access performs a cache access: on hit, updates the
// replacement policy and (if a write) sets the dirty bit; on miss,
// installs a new line via the replacement policy, accounting for a
// dirty write-back penalty, then consults the prefetcher.
func (c *Cache) Access(addr uint64, isWrite bool, nextLevelLatency uint64) (hit bool, penalty uint64) {
	if !c.enabled {
		return false, 0
	}

	set, tag := c.setAndTag(addr)
	base := set * c.ways

	for i := 0; i < c.ways; i++ {
		idx := base + i
		if c.lines[idx].valid && c.lines[idx].tag == tag {
			c.policy.Update(set, i)
			if isWrite {
				c.lines[idx].dirty = true
			}
			hit = true
			break
		}
	}

	if !hit {
		penalty = c.installLine(addr, isWrite, nextLevelLatency)
	}

	if c.prefetcher != nil {
		for _, target := range c.prefetcher.Observe(addr, hit) {
			if !c.Contains(target) {
				c.installLine(target, false, nextLevelLatency)
			}
		}
	}

	return hit, penalty
}

// Flush invalidates all dirty lines; clean lines may remain resident.
func (c *Cache) Flush() {
	if !c.enabled {
		return
	}
	for i := range c.lines {
		if c.lines[i].valid && c.lines[i].dirty {
			c.lines[i].dirty = false
			c.lines[i].valid = false
		}
	}
}
