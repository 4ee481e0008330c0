package alu

import "testing"

func TestAtomicExec(t *testing.T) {
	cases := []struct {
		name string
		op   AtomicOp
		m, r uint64
		want uint64
	}{
		{"swap", AmoSwap, 10, 20, 20},
		{"add", AmoAdd, 10, 20, 30},
		{"add wraps", AmoAdd, ^uint64(0), 1, 0},
		{"xor", AmoXor, 0b1100, 0b1010, 0b0110},
		{"and", AmoAnd, 0b1100, 0b1010, 0b1000},
		{"or", AmoOr, 0b1100, 0b1010, 0b1110},
		{"min signed", AmoMin, ^uint64(0), 1, ^uint64(0)},
		{"max signed", AmoMax, ^uint64(0), 1, 1},
		{"minu", AmoMinu, ^uint64(0), 1, 1},
		{"maxu", AmoMaxu, ^uint64(0), 1, ^uint64(0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := AtomicExec(c.op, c.m, c.r, false); got != c.want {
				t.Errorf("got %#x, want %#x", got, c.want)
			}
		})
	}
}

func TestAtomicExecWord(t *testing.T) {
	// Word width truncates to 32 bits, computes, and sign-extends.
	got := AtomicExec(AmoAdd, 0x7FFF_FFFF, 1, true)
	if got != 0xFFFF_FFFF_8000_0000 {
		t.Errorf("amoadd.w overflow = %#x, want sign-extended", got)
	}

	// Upper operand bits are ignored for word width.
	got = AtomicExec(AmoMin, 0xDEAD_0000_0000_0001, 2, true)
	if got != 1 {
		t.Errorf("amomin.w = %#x, want 1", got)
	}
}
