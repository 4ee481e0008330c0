package vm

import (
	"fmt"
	"io"
)

// regNames is the RISC-V ABI register naming, used for state dumps.
var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// DumpState writes a human-readable snapshot of the hart's
// architectural state, used when a direct-mode run dies on a fatal
// trap.
func (s *System) DumpState(w io.Writer) {
	h := s.Hart
	fmt.Fprintf(w, "pc   = %#016x  mode = %s\n", h.PC, h.Mode)
	if h.FatalTrap != nil {
		fmt.Fprintf(w, "trap = cause %#x tval %#x\n", h.FatalTrap.Encode(), h.FatalTrap.Value)
	}
	for i := 0; i < 32; i += 2 {
		fmt.Fprintf(w, "%-4s = %#016x  %-4s = %#016x\n",
			regNames[i], h.Reg(uint8(i)), regNames[i+1], h.Reg(uint8(i+1)))
	}
	fmt.Fprintf(w, "mstatus = %#x  mcause = %#x  mepc = %#x  mtval = %#x\n",
		h.CSRs.Mstatus, h.CSRs.Mcause, h.CSRs.Mepc, h.CSRs.Mtval)
}

// DumpStats writes the statistics snapshot as key-value lines in the
// fixed statKeys order.
func (s *System) DumpStats(w io.Writer) {
	snap := s.Hart.Stats.Snapshot()
	for _, key := range statKeys {
		fmt.Fprintf(w, "%-24s %d\n", key, snap[key])
	}
	fmt.Fprintf(w, "%-24s %.3f\n", "ipc", s.Hart.Stats.IPC())
}

// statKeys fixes a stable print order for DumpStats.
var statKeys = []string{
	"cycles", "instructions_retired",
	"inst_alu", "inst_load", "inst_store", "inst_branch", "inst_system",
	"inst_fp_load", "inst_fp_store", "inst_fp_arith", "inst_fp_fma",
	"inst_fp_div_sqrt",
	"branch_predictions", "branch_mispredictions",
	"icache_hits", "icache_misses", "dcache_hits", "dcache_misses",
	"l2_hits", "l2_misses",
	"stalls_mem", "stalls_control", "stalls_data",
	"cycles_machine", "cycles_kernel", "cycles_user",
	"traps_taken",
}
