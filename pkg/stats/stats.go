// Package stats accumulates the per-hart performance counters: cycles,
// retired instructions by category, cache hits/misses, predictor
// outcomes, stall cycles by cause, and per-privilege-mode cycles.
package stats

// Stats is the cumulative counter set for one hart.
type Stats struct {
	Cycles              uint64
	InstructionsRetired uint64

	InstLoad   uint64
	InstStore  uint64
	InstBranch uint64
	InstALU    uint64
	InstSystem uint64

	InstFPLoad    uint64
	InstFPStore   uint64
	InstFPArith   uint64
	InstFPFMA     uint64
	InstFPDivSqrt uint64

	BranchPredictions    uint64
	BranchMispredictions uint64

	CyclesUser    uint64
	CyclesKernel  uint64
	CyclesMachine uint64

	StallsMem     uint64
	StallsControl uint64
	StallsData    uint64

	TrapsTaken uint64

	ICacheHits   uint64
	ICacheMisses uint64
	DCacheHits   uint64
	DCacheMisses uint64
	L2Hits       uint64
	L2Misses     uint64
}

// Snapshot serializes the counters to a key-value dictionary for
// external tooling.
func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"cycles":                s.Cycles,
		"instructions_retired":  s.InstructionsRetired,
		"inst_load":             s.InstLoad,
		"inst_store":            s.InstStore,
		"inst_branch":           s.InstBranch,
		"inst_alu":              s.InstALU,
		"inst_system":           s.InstSystem,
		"inst_fp_load":          s.InstFPLoad,
		"inst_fp_store":         s.InstFPStore,
		"inst_fp_arith":         s.InstFPArith,
		"inst_fp_fma":           s.InstFPFMA,
		"inst_fp_div_sqrt":      s.InstFPDivSqrt,
		"branch_predictions":    s.BranchPredictions,
		"branch_mispredictions": s.BranchMispredictions,
		"cycles_user":           s.CyclesUser,
		"cycles_kernel":         s.CyclesKernel,
		"cycles_machine":        s.CyclesMachine,
		"stalls_mem":            s.StallsMem,
		"stalls_control":        s.StallsControl,
		"stalls_data":           s.StallsData,
		"traps_taken":           s.TrapsTaken,
		"icache_hits":           s.ICacheHits,
		"icache_misses":         s.ICacheMisses,
		"dcache_hits":           s.DCacheHits,
		"dcache_misses":         s.DCacheMisses,
		"l2_hits":               s.L2Hits,
		"l2_misses":             s.L2Misses,
	}
}

// IPC returns retired instructions per cycle, or 0 before the first
// cycle.
func (s *Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.InstructionsRetired) / float64(s.Cycles)
}
