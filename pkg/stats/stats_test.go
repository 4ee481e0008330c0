package stats

import "testing"

func TestSnapshotMirrorsCounters(t *testing.T) {
	s := &Stats{
		Cycles:              100,
		InstructionsRetired: 40,
		InstALU:             25,
		DCacheHits:          7,
		StallsMem:           3,
	}
	snap := s.Snapshot()
	if snap["cycles"] != 100 || snap["instructions_retired"] != 40 {
		t.Error("core counters missing from snapshot")
	}
	if snap["inst_alu"] != 25 || snap["dcache_hits"] != 7 || snap["stalls_mem"] != 3 {
		t.Error("category counters missing from snapshot")
	}
}

func TestIPC(t *testing.T) {
	s := &Stats{}
	if s.IPC() != 0 {
		t.Error("IPC before the first cycle should be 0")
	}
	s.Cycles = 200
	s.InstructionsRetired = 100
	if got := s.IPC(); got != 0.5 {
		t.Errorf("IPC = %v, want 0.5", got)
	}
}
