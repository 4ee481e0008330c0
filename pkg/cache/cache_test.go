package cache

import "testing"

func lruCache(sets, ways int, lineBytes uint64) *Cache {
	return New(Config{
		SizeBytes: uint64(sets*ways) * lineBytes,
		LineBytes: lineBytes,
		Ways:      ways,
		Policy:    PolicyLRU,
		Enabled:   true,
	})
}

func TestColdMissThenHit(t *testing.T) {
	c := lruCache(2, 2, 64)

	hit, _ := c.Access(0x100, false, 50)
	if hit {
		t.Fatal("cold access should miss")
	}
	hit, penalty := c.Access(0x100, false, 50)
	if !hit || penalty != 0 {
		t.Fatalf("second access: hit=%v penalty=%d, want penalty-free hit", hit, penalty)
	}
}

func TestDirtyEvictionPenalty(t *testing.T) {
	// 2 sets x 2 ways x 64-byte lines; addresses 0, 128, 256 share
	// set 0. The third access evicts the dirty line for address 0 and
	// pays exactly the next-level latency.
	c := lruCache(2, 2, 64)
	const nextLatency = 42

	if hit, _ := c.Access(0, true, nextLatency); hit {
		t.Fatal("write to 0 should miss")
	}
	if hit, _ := c.Access(128, false, nextLatency); hit {
		t.Fatal("read of 128 should miss")
	}
	hit, penalty := c.Access(256, false, nextLatency)
	if hit {
		t.Fatal("read of 256 should miss")
	}
	if penalty != nextLatency {
		t.Fatalf("dirty eviction penalty = %d, want %d", penalty, nextLatency)
	}
	if c.Contains(0) {
		t.Error("address 0 should have been evicted")
	}
}

func TestCleanEvictionFree(t *testing.T) {
	c := lruCache(2, 2, 64)
	c.Access(0, false, 99)
	c.Access(128, false, 99)
	_, penalty := c.Access(256, false, 99)
	if penalty != 0 {
		t.Errorf("clean eviction penalty = %d, want 0", penalty)
	}
}

func TestFlushInvalidatesDirty(t *testing.T) {
	c := lruCache(2, 2, 64)
	c.Access(0, true, 0)  // dirty
	c.Access(64, false, 0) // clean, other set
	c.Flush()
	if c.Contains(0) {
		t.Error("dirty line should be invalidated by flush")
	}
	if !c.Contains(64) {
		t.Error("clean line may remain after flush")
	}
}

func TestLRUVictim(t *testing.T) {
	p := NewLRU(1, 3)
	p.Update(0, 0)
	p.Update(0, 1)
	p.Update(0, 2)
	if v := p.Victim(0); v != 0 {
		t.Errorf("LRU victim = %d, want 0", v)
	}
	p.Update(0, 0) // touch 0; now 1 is oldest
	if v := p.Victim(0); v != 1 {
		t.Errorf("LRU victim after touch = %d, want 1", v)
	}
}

func TestMRUVictim(t *testing.T) {
	p := NewMRU(1, 3)
	p.Update(0, 0)
	p.Update(0, 1)
	if v := p.Victim(0); v != 1 {
		t.Errorf("MRU victim = %d, want most-recent way 1", v)
	}
}

func TestFIFOAdvancesOnInstall(t *testing.T) {
	p := NewFIFO(1, 2)
	// The pointer advances only when selected as a victim (install);
	// hits never move it.
	if v := p.Victim(0); v != 0 {
		t.Errorf("first FIFO victim = %d, want 0", v)
	}
	p.Update(0, 1) // ordinary hit, no effect
	if v := p.Victim(0); v != 1 {
		t.Errorf("second FIFO victim = %d, want 1", v)
	}
	if v := p.Victim(0); v != 0 {
		t.Errorf("FIFO victim should wrap to 0, got %d", v)
	}
}

func TestPLRUFirstUnset(t *testing.T) {
	p := NewPLRU(1, 4)
	p.Update(0, 0)
	p.Update(0, 1)
	if v := p.Victim(0); v != 2 {
		t.Errorf("PLRU victim = %d, want first unmarked way 2", v)
	}
	// Marking all ways resets, leaving only the last touch set.
	p.Update(0, 2)
	p.Update(0, 3)
	if v := p.Victim(0); v != 0 {
		t.Errorf("PLRU victim after saturation = %d, want 0", v)
	}
}

func TestNextLinePrefetch(t *testing.T) {
	c := New(Config{
		SizeBytes:      1024,
		LineBytes:      64,
		Ways:           2,
		Policy:         PolicyLRU,
		Prefetcher:     PrefetchNextLine,
		PrefetchDegree: 2,
		Enabled:        true,
	})
	c.Access(0, false, 0)
	if !c.Contains(64) || !c.Contains(128) {
		t.Error("next-line prefetcher should have installed the following lines")
	}
}

func TestStridePrefetch(t *testing.T) {
	p := NewStride(64, 16, 1)
	// Establish a 256-byte stride until the confidence threshold.
	var targets []uint64
	for addr := uint64(0); addr < 0x1000; addr += 256 {
		targets = p.Observe(addr, false)
	}
	if len(targets) == 0 {
		t.Fatal("confident stride should emit prefetch targets")
	}
	if targets[0]%256 != 0 {
		t.Errorf("stride target %#x not stride-aligned", targets[0])
	}
}

func TestDisabledCache(t *testing.T) {
	c := New(Config{Enabled: false})
	if hit, penalty := c.Access(0, false, 9); hit || penalty != 0 {
		t.Error("disabled cache should miss for free")
	}
}

func TestMemControllerRowHitMiss(t *testing.T) {
	m := NewMemController(MemConfig{RowBytes: 2048, Banks: 4, RowHitLatency: 10, RowMissLatency: 30})
	if lat := m.Access(0); lat != 30 {
		t.Errorf("cold access latency = %d, want row-miss 30", lat)
	}
	if lat := m.Access(64); lat != 10 {
		t.Errorf("same-row access latency = %d, want row-hit 10", lat)
	}
	// A different row in the same bank forces a miss.
	if lat := m.Access(2048 * 4); lat != 30 {
		t.Errorf("row conflict latency = %d, want row-miss 30", lat)
	}
}
