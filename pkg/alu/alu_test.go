package alu

import "testing"

func TestDivisionByZero(t *testing.T) {
	// Quotient is all-ones, remainder is the dividend.
	if got := Exec(Div, 42, 0); got != ^uint64(0) {
		t.Errorf("div by zero quotient = %#x, want all-ones", got)
	}
	if got := Exec(Rem, 42, 0); got != 42 {
		t.Errorf("rem by zero = %d, want dividend", got)
	}
	if got := Exec(Divu, 42, 0); got != ^uint64(0) {
		t.Errorf("divu by zero quotient = %#x, want all-ones", got)
	}
	if got := Exec(Remu, 42, 0); got != 42 {
		t.Errorf("remu by zero = %d, want dividend", got)
	}
}

func TestDivisionOverflow(t *testing.T) {
	minI64 := uint64(1) << 63
	if got := Exec(Div, minI64, ^uint64(0)); got != minI64 {
		t.Errorf("INT_MIN / -1 = %#x, want INT_MIN", got)
	}
	if got := Exec(Rem, minI64, ^uint64(0)); got != 0 {
		t.Errorf("INT_MIN %% -1 = %#x, want 0", got)
	}
}

func TestWordDivision(t *testing.T) {
	// Word-variant results sign-extend from bit 31.
	minI32 := uint64(0x8000_0000)
	neg1 := uint64(0xFFFF_FFFF)
	if got := Exec(DivW, minI32, neg1); got != 0xFFFF_FFFF_8000_0000 {
		t.Errorf("divw INT32_MIN / -1 = %#x", got)
	}
	if got := Exec(DivW, 7, 0); got != ^uint64(0) {
		t.Errorf("divw by zero = %#x, want all-ones", got)
	}
	if got := Exec(RemW, 0xFFFF_FFF9, 0); got != 0xFFFF_FFFF_FFFF_FFF9 {
		t.Errorf("remw -7 %% 0 = %#x, want sign-extended dividend", got)
	}
}

func TestShiftMasking(t *testing.T) {
	// Shift amounts mask to 6 bits for doubleword, 5 for word.
	if got := Exec(Sll, 1, 64); got != 1 {
		t.Errorf("sll by 64 = %#x, want 1 (amount masked to 0)", got)
	}
	if got := Exec(Sll, 1, 65); got != 2 {
		t.Errorf("sll by 65 = %#x, want 2", got)
	}
	if got := Exec(SllW, 1, 32); got != 1 {
		t.Errorf("sllw by 32 = %#x, want 1", got)
	}
	if got := Exec(Sra, 1<<63, 63); got != ^uint64(0) {
		t.Errorf("sra sign fill = %#x", got)
	}
	if got := Exec(SrlW, 0x8000_0000, 4); got != 0x0800_0000 {
		t.Errorf("srlw = %#x", got)
	}
	if got := Exec(SraW, 0x8000_0000, 4); got != 0xFFFF_FFFF_F800_0000 {
		t.Errorf("sraw = %#x", got)
	}
}

func TestMulHigh(t *testing.T) {
	cases := []struct {
		op      IntOp
		a, b    uint64
		want    uint64
	}{
		{Mulh, 1 << 62, 4, 1},
		{Mulhu, ^uint64(0), ^uint64(0), ^uint64(0) - 1},
		{Mulh, ^uint64(0), ^uint64(0), 0},       // -1 * -1 = 1, high 0
		{Mulhsu, ^uint64(0), 2, ^uint64(0)},     // -1 * 2 = -2, high all-ones
	}
	for _, c := range cases {
		if got := Exec(c.op, c.a, c.b); got != c.want {
			t.Errorf("op %d (%#x, %#x) = %#x, want %#x", c.op, c.a, c.b, got, c.want)
		}
	}
}

func TestSetLessThan(t *testing.T) {
	if got := Exec(Slt, ^uint64(0), 1); got != 1 {
		t.Errorf("slt -1 < 1 = %d, want 1", got)
	}
	if got := Exec(Sltu, ^uint64(0), 1); got != 0 {
		t.Errorf("sltu max < 1 = %d, want 0", got)
	}
}

func TestWordAddSub(t *testing.T) {
	if got := Exec(AddW, 0x7FFF_FFFF, 1); got != 0xFFFF_FFFF_8000_0000 {
		t.Errorf("addw overflow = %#x, want sign-extended wrap", got)
	}
	if got := Exec(SubW, 0, 1); got != ^uint64(0) {
		t.Errorf("subw 0-1 = %#x", got)
	}
}
