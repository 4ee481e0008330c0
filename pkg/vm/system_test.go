package vm

import (
	"testing"

	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
)

// Instruction encoders for the test programs, one per format.

func encR(op, f3, f7, rd, rs1, rs2 uint32) uint32 {
	return op | rd<<7 | f3<<12 | rs1<<15 | rs2<<20 | f7<<25
}

func encI(op, f3, rd, rs1 uint32, imm int32) uint32 {
	return op | rd<<7 | f3<<12 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

func encS(op, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm) & 0xFFF
	return op | (u&0x1F)<<7 | f3<<12 | rs1<<15 | rs2<<20 | (u>>5)<<25
}

func encB(f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return 0x63 | ((u>>11)&1)<<7 | ((u>>1)&0xF)<<8 | f3<<12 |
		rs1<<15 | rs2<<20 | ((u>>5)&0x3F)<<25 | ((u>>12)&1)<<31
}

func encU(op, rd, imm20 uint32) uint32 { return op | rd<<7 | imm20<<12 }

func addi(rd, rs1 uint32, imm int32) uint32 { return encI(0x13, 0, rd, rs1, imm) }
func lw(rd, rs1 uint32, imm int32) uint32   { return encI(0x03, 0b010, rd, rs1, imm) }
func sw(rs1, rs2 uint32, imm int32) uint32  { return encS(0x23, 0b010, rs1, rs2, imm) }

func program(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		out[4*i] = byte(w)
		out[4*i+1] = byte(w >> 8)
		out[4*i+2] = byte(w >> 16)
		out[4*i+3] = byte(w >> 24)
	}
	return out
}

func fastConfig() Config {
	return Config{RAMSize: 4 << 20, Width: 2}
}

func TestTakenBranchMisprediction(t *testing.T) {
	// addi x1,x0,10; addi x2,x0,20; beq x1,x1,+8; addi x3,x0,99;
	// addi x4,x0,42 — the taken branch skips the x3 write.
	sys := New(fastConfig())
	prog := program(
		addi(1, 0, 10),
		addi(2, 0, 20),
		encB(0b000, 1, 1, 8), // beq x1, x1, +8
		addi(3, 0, 99),
		addi(4, 0, 42),
	)
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		sys.Step()
	}

	h := sys.Hart
	if got := h.Reg(1); got != 10 {
		t.Errorf("x1 = %d, want 10", got)
	}
	if got := h.Reg(2); got != 20 {
		t.Errorf("x2 = %d, want 20", got)
	}
	if got := h.Reg(3); got != 0 {
		t.Errorf("x3 = %d, want 0 (flushed wrong-path write)", got)
	}
	if got := h.Reg(4); got != 42 {
		t.Errorf("x4 = %d, want 42", got)
	}
	if h.Stats.BranchMispredictions == 0 {
		t.Error("the taken branch should have mispredicted at least once")
	}
}

func TestLoadReservedStoreConditional(t *testing.T) {
	// lr.w x5,(x6); addi x7,x5,1; sc.w x8,x7,(x6)
	sys := New(fastConfig())
	prog := program(
		encR(0x2F, 0b010, 0b0001000, 5, 6, 0), // lr.w x5, (x6)
		addi(7, 5, 1),
		encR(0x2F, 0b010, 0b0001100, 8, 6, 7), // sc.w x8, x7, (x6)
	)
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}
	const addr = RAMBase + 0x100
	sys.Bus.WriteWord(addr, 7)
	sys.Hart.SetReg(6, addr)

	for i := 0; i < 60; i++ {
		sys.Step()
	}

	h := sys.Hart
	if got := h.Reg(5); got != 7 {
		t.Errorf("lr.w result = %d, want 7", got)
	}
	if got := h.Reg(8); got != 0 {
		t.Errorf("sc.w result = %d, want 0 (success)", got)
	}
	if got := sys.Bus.ReadWord(addr); got != 8 {
		t.Errorf("memory after sc.w = %d, want 8", got)
	}
}

func TestStoreConditionalWithoutReservationFails(t *testing.T) {
	sys := New(fastConfig())
	prog := program(
		encR(0x2F, 0b010, 0b0001100, 8, 6, 7), // sc.w x8, x7, (x6)
	)
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}
	const addr = RAMBase + 0x100
	sys.Bus.WriteWord(addr, 7)
	sys.Hart.SetReg(6, addr)
	sys.Hart.SetReg(7, 99)

	for i := 0; i < 40; i++ {
		sys.Step()
	}

	if got := sys.Hart.Reg(8); got != 1 {
		t.Errorf("sc.w without reservation = %d, want 1 (failure)", got)
	}
	if got := sys.Bus.ReadWord(addr); got != 7 {
		t.Errorf("memory = %d, the failed sc.w must not write", got)
	}
}

func TestSupervisorTimerInterrupt(t *testing.T) {
	sys := New(fastConfig())
	h := sys.Hart

	const handler = RAMBase + 0x200
	// Main: spin. Handler: spin.
	spin := encU(0x6F, 0, 0) // jal x0, 0
	sys.Bus.LoadBinary(program(spin), RAMBase)
	sys.Bus.LoadBinary(program(spin), handler)

	// Firmware-style handoff: open PMP, delegate the supervisor
	// timer, enable it, and enter supervisor mode.
	h.CSRs.Pmpaddr[0] = ^uint64(0) >> 10
	h.CSRs.Pmpcfg[0] = 0x1F
	h.MMU.SyncPMP(h.CSRs)

	h.CSRs.Mideleg = 1 << 5 // delegate supervisor timer
	h.CSRs.Mie = csr.SupervisorTimerBit
	h.CSRs.Mstatus |= csr.MstatusSIE
	h.CSRs.Stvec = handler
	h.CSRs.Stimecmp = 100
	h.Mode = priv.Supervisor
	h.PC = RAMBase

	for i := 0; i < 200; i++ {
		sys.Step()
	}

	if got := h.CSRs.Scause; got != (1<<63)|5 {
		t.Fatalf("scause = %#x, want supervisor timer interrupt", got)
	}
	if h.Mode != priv.Supervisor {
		t.Errorf("trap should stay in supervisor mode, got %v", h.Mode)
	}
	if h.PC != handler {
		t.Errorf("pc = %#x, want handler %#x", h.PC, handler)
	}
	if h.Stats.TrapsTaken != 1 {
		t.Errorf("traps taken = %d, want exactly 1", h.Stats.TrapsTaken)
	}
	if h.CSRs.Mip&csr.SupervisorTimerBit == 0 {
		t.Error("stip should still be pending before the stimecmp write")
	}

	// Writing stimecmp clears the pending bit.
	h.CSRs.Write(csr.Stimecmp, 1<<40)
	sys.Step()
	if h.CSRs.Mip&csr.SupervisorTimerBit != 0 {
		t.Error("stimecmp write should clear stip")
	}
}

func TestWFIWakesWithoutTrap(t *testing.T) {
	sys := New(fastConfig())
	h := sys.Hart

	prog := program(
		encI(0x73, 0, 0, 0, 0x105), // wfi
		addi(1, 0, 7),
	)
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}

	// Timer enabled in mie but the global enable is clear: a pending
	// interrupt wakes the hart without trapping.
	h.CSRs.Mie = csr.MachineTimerBit
	sys.Bus.WriteDouble(CLINTBase+0x4000, 20) // mtimecmp

	for i := 0; i < 400; i++ {
		sys.Step()
	}

	if got := h.Reg(1); got != 7 {
		t.Errorf("x1 = %d, want 7 (execution resumed after wfi)", got)
	}
	if h.Stats.TrapsTaken != 0 {
		t.Errorf("traps taken = %d, want 0 (wake without trap)", h.Stats.TrapsTaken)
	}
}

func TestBareMetalSortAndPowerOff(t *testing.T) {
	// Bubble-sorts {5, 2, 8, 1, 4} in place, then powers off through
	// the system controller.
	const dataOff = 0x200

	prog := program(
		encU(0x17, 10, 0),        // auipc x10, 0
		addi(10, 10, dataOff),    // x10 = &a[0]
		addi(11, 0, 5),           // n
		addi(12, 0, 0),           // i = 0
		// outer (index 4):
		addi(13, 0, 0),           // j = 0
		addi(14, 11, -1),         // n-1
		// inner (index 6):
		encI(0x13, 0b001, 15, 13, 2), // slli x15, x13, 2
		encR(0x33, 0, 0, 15, 15, 10), // add x15, x15, x10
		lw(16, 15, 0),
		lw(17, 15, 4),
		encB(0b101, 17, 16, 12), // bge x17, x16, +12 (skip swap)
		sw(15, 17, 0),
		sw(15, 16, 4),
		// index 13:
		addi(13, 13, 1),
		encB(0b100, 13, 14, -32), // blt x13, x14, inner
		addi(12, 12, 1),
		encB(0b100, 12, 11, -48), // blt x12, x11, outer
		// power off: syscon pass magic
		encU(0x37, 1, 0x100),    // lui x1, 0x100 -> 0x0010_0000
		encU(0x37, 2, 0x5),      // lui x2, 0x5  -> 0x5000
		addi(2, 2, 0x555),       // x2 = 0x5555
		sw(1, 2, 0),
		encU(0x6F, 0, 0), // jal x0, 0
	)

	sys := New(fastConfig())
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}
	for i, v := range []uint32{5, 2, 8, 1, 4} {
		sys.Bus.WriteWord(RAMBase+dataOff+uint64(4*i), v)
	}

	code := sys.Run(200000)
	if code != 0 {
		if sys.Hart.FatalTrap != nil {
			t.Fatalf("fatal trap: cause %#x tval %#x at pc %#x",
				sys.Hart.FatalTrap.Encode(), sys.Hart.FatalTrap.Value, sys.Hart.PC)
		}
		t.Fatalf("exit code = %d, want 0", code)
	}

	want := []uint32{1, 2, 4, 5, 8}
	for i, w := range want {
		if got := sys.Bus.ReadWord(RAMBase + dataOff + uint64(4*i)); got != w {
			t.Errorf("a[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestStoreDrainVisibleAfterCommit(t *testing.T) {
	sys := New(fastConfig())
	prog := program(
		addi(1, 0, 123),
		sw(6, 1, 0), // sw x1, 0(x6)
	)
	if err := sys.LoadFlatBinary(prog); err != nil {
		t.Fatal(err)
	}
	const addr = RAMBase + 0x300
	sys.Hart.SetReg(6, addr)

	for i := 0; i < 40; i++ {
		sys.Step()
	}
	if got := sys.Bus.ReadWord(addr); got != 123 {
		t.Errorf("memory = %d, want 123", got)
	}
}

func TestKernelBootHandoff(t *testing.T) {
	// The DTB lands at RAMBase+DTBOffset, past fastConfig's 4 MiB.
	cfg := fastConfig()
	cfg.RAMSize = 64 << 20
	sys := New(cfg)
	// Kernel body: spin.
	kernel := program(encU(0x6F, 0, 0))
	dtb := []byte{0xD0, 0x0D, 0xFE, 0xED}
	if err := sys.BootKernel(kernel, 0x20_0000, dtb); err != nil {
		t.Fatal(err)
	}

	h := sys.Hart
	if h.Mode != priv.Machine || h.PC != RAMBase {
		t.Fatal("boot should start at the machine-mode shim")
	}

	// The MRET shim transfers to the kernel in supervisor mode.
	for i := 0; i < 60 && h.Mode != priv.Supervisor; i++ {
		sys.Step()
	}
	if h.Mode != priv.Supervisor {
		t.Fatal("mret shim should drop to supervisor mode")
	}
	if h.PC != RAMBase+0x20_0000 {
		t.Errorf("pc = %#x, want kernel entry", h.PC)
	}
	if got := h.Reg(10); got != 0 {
		t.Errorf("a0 = %d, want hart id 0", got)
	}
	if got := h.Reg(11); got != RAMBase+DTBOffset {
		t.Errorf("a1 = %#x, want DTB address", got)
	}
	if got := sys.Bus.ReadByte(RAMBase + DTBOffset); got != 0xD0 {
		t.Error("DTB not loaded")
	}
}

func TestDirectModeFatalTrap(t *testing.T) {
	sys := New(fastConfig())
	// An illegal instruction in direct mode aborts the run.
	if err := sys.LoadFlatBinary(program(0xFFFF_FFFF)); err != nil {
		t.Fatal(err)
	}
	code := sys.Run(10000)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if sys.Hart.FatalTrap == nil {
		t.Fatal("fatal trap should be recorded")
	}
}

func TestNOPRetirementCountsInstret(t *testing.T) {
	// Canonical NOPs (addi x0,x0,0) retire like any other instruction
	// and advance instret.
	sys := New(fastConfig())
	if err := sys.LoadFlatBinary(program(
		addi(0, 0, 0),
		addi(0, 0, 0),
		addi(0, 0, 0),
		addi(1, 0, 9),
	)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		sys.Step()
	}
	if got := sys.Hart.Reg(1); got != 9 {
		t.Fatalf("x1 = %d, want 9", got)
	}
	if got := sys.Hart.CSRs.InstretCount; got < 4 {
		t.Errorf("instret = %d, want at least 4 (NOPs must count)", got)
	}
	if got := sys.Hart.Stats.InstructionsRetired; got < 4 {
		t.Errorf("retired = %d, want at least 4", got)
	}
}

func TestStatsAccumulate(t *testing.T) {
	sys := New(fastConfig())
	if err := sys.LoadFlatBinary(program(
		addi(1, 0, 1),
		addi(2, 0, 2),
		addi(3, 0, 3),
	)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		sys.Step()
	}
	st := &sys.Hart.Stats
	if st.Cycles != 30 {
		t.Errorf("cycles = %d, want 30", st.Cycles)
	}
	if st.InstructionsRetired < 3 {
		t.Errorf("retired = %d, want at least the three adds", st.InstructionsRetired)
	}
	snap := st.Snapshot()
	if snap["cycles"] != 30 {
		t.Error("snapshot should mirror the counters")
	}
	if st.CyclesMachine != 30 {
		t.Errorf("machine-mode cycles = %d, want 30", st.CyclesMachine)
	}
}
