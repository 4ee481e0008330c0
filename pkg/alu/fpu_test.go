package alu

import (
	"math"
	"testing"
)

func TestNaNBoxing(t *testing.T) {
	v := BoxF32(1.5)
	if v>>32 != 0xFFFF_FFFF {
		t.Fatalf("boxed value upper bits = %#x, want all-ones", v>>32)
	}
	if got := UnboxF32(v); got != 1.5 {
		t.Errorf("unbox = %v, want 1.5", got)
	}

	// An improperly boxed register reads as canonical NaN.
	bad := uint64(math.Float32bits(1.5))
	if got := UnboxF32(bad); !isNaN32(got) {
		t.Errorf("unboxed value without box = %v, want NaN", got)
	}
	if bits := math.Float32bits(UnboxF32(bad)); bits != canonicalF32 {
		t.Errorf("improper box yields %#x, want canonical NaN", bits)
	}
}

func TestCanonicalNaNPropagation(t *testing.T) {
	// Any arithmetic NaN result is the canonical quiet NaN regardless
	// of input payload.
	payload := uint64(0x7FF0_0000_0000_0001) // signaling NaN with payload
	got := Arith(FAdd, true, RoundNearestEven, payload, BoxF64(1.0))
	if got != canonicalF64 {
		t.Errorf("NaN + 1.0 = %#x, want canonical NaN %#x", got, canonicalF64)
	}

	sBad := BoxF32(math.Float32frombits(0x7F80_0001))
	gotS := Arith(FMul, false, RoundNearestEven, sBad, BoxF32(2.0))
	if uint32(gotS) != canonicalF32 {
		t.Errorf("single NaN * 2 = %#x, want canonical %#x", uint32(gotS), canonicalF32)
	}
}

func TestMinMaxSignedZero(t *testing.T) {
	negZero := BoxF64(math.Copysign(0, -1))
	posZero := BoxF64(0)
	if got := Arith(FMin, true, RoundNearestEven, negZero, posZero); got != negZero {
		t.Errorf("min(-0, +0) = %#x, want -0", got)
	}
	if got := Arith(FMax, true, RoundNearestEven, negZero, posZero); got != posZero {
		t.Errorf("max(-0, +0) = %#x, want +0", got)
	}

	// minNum semantics: one NaN operand yields the other operand.
	if got := Arith(FMin, true, RoundNearestEven, canonicalF64, BoxF64(3.0)); got != BoxF64(3.0) {
		t.Errorf("min(NaN, 3) = %#x, want 3.0", got)
	}
}

func TestCompare(t *testing.T) {
	a, b := BoxF64(1.0), BoxF64(2.0)
	if Compare(CmpLt, true, a, b) != 1 {
		t.Error("1 < 2 should be true")
	}
	if Compare(CmpLe, true, b, b) != 1 {
		t.Error("2 <= 2 should be true")
	}
	if Compare(CmpEq, true, a, b) != 0 {
		t.Error("1 == 2 should be false")
	}
	// NaN compares false.
	if Compare(CmpEq, true, canonicalF64, canonicalF64) != 0 {
		t.Error("NaN == NaN should be false")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		v    uint64
		want uint64
	}{
		{BoxF64(math.Inf(-1)), 1 << 0},
		{BoxF64(-1.5), 1 << 1},
		{BoxF64(math.Copysign(0, -1)), 1 << 3},
		{BoxF64(0), 1 << 4},
		{BoxF64(1.5), 1 << 6},
		{BoxF64(math.Inf(1)), 1 << 7},
		{canonicalF64, 1 << 9}, // quiet NaN
	}
	for _, c := range cases {
		if got := Classify(true, c.v); got != c.want {
			t.Errorf("classify(%#x) = %#x, want %#x", c.v, got, c.want)
		}
	}
}

func TestFloatToIntSaturation(t *testing.T) {
	huge := BoxF64(1e30)
	if got := FloatToInt(true, huge, true, false); got != (1<<63)-1 {
		t.Errorf("fcvt.l.d 1e30 = %#x, want INT64_MAX", got)
	}
	negHuge := BoxF64(-1e30)
	if got := FloatToInt(true, negHuge, true, false); got != 1<<63 {
		t.Errorf("fcvt.l.d -1e30 = %#x, want INT64_MIN", got)
	}
	if got := FloatToInt(true, negHuge, false, false); got != 0 {
		t.Errorf("fcvt.lu.d -1e30 = %#x, want 0", got)
	}
	// Word-width saturation sign-extends.
	if got := FloatToInt(true, huge, true, true); got != 0x7FFF_FFFF {
		t.Errorf("fcvt.w.d 1e30 = %#x, want INT32_MAX", got)
	}
}

func TestIntFloatRoundTrip(t *testing.T) {
	v := IntToFloat(true, uint64(42), true, false)
	if F64(v) != 42.0 {
		t.Errorf("fcvt.d.l 42 = %v", F64(v))
	}
	back := FloatToInt(true, v, true, false)
	if back != 42 {
		t.Errorf("round trip = %d, want 42", back)
	}

	neg := IntToFloat(true, ^uint64(0), true, false)
	if F64(neg) != -1.0 {
		t.Errorf("fcvt.d.l -1 = %v", F64(neg))
	}
	unsigned := IntToFloat(true, ^uint64(0), false, false)
	if F64(unsigned) != math.Ldexp(1, 64) {
		t.Errorf("fcvt.d.lu all-ones = %v", F64(unsigned))
	}
}

func TestConvertPrecision(t *testing.T) {
	d := BoxF64(1.25)
	s := ConvertPrecision(false, d)
	if UnboxF32(s) != 1.25 {
		t.Errorf("fcvt.s.d 1.25 = %v", UnboxF32(s))
	}
	back := ConvertPrecision(true, s)
	if F64(back) != 1.25 {
		t.Errorf("fcvt.d.s 1.25 = %v", F64(back))
	}
}

func TestFMA(t *testing.T) {
	a, b, c := BoxF64(2.0), BoxF64(3.0), BoxF64(1.0)
	if got := FMA(true, RoundNearestEven, a, b, c, false, false); F64(got) != 7.0 {
		t.Errorf("fmadd 2*3+1 = %v", F64(got))
	}
	if got := FMA(true, RoundNearestEven, a, b, c, false, true); F64(got) != 5.0 {
		t.Errorf("fmsub 2*3-1 = %v", F64(got))
	}
	if got := FMA(true, RoundNearestEven, a, b, c, true, false); F64(got) != -5.0 {
		t.Errorf("fnmsub -(2*3)+1 = %v", F64(got))
	}
	if got := FMA(true, RoundNearestEven, a, b, c, true, true); F64(got) != -7.0 {
		t.Errorf("fnmadd -(2*3)-1 = %v", F64(got))
	}
}
