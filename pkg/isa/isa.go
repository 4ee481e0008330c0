// Package isa implements RV64GC instruction decode: field extraction,
// compressed-instruction expansion, immediate sign-extension, and
// control-signal generation.
package isa

import "github.com/willmccallion/rvsim-sub001/pkg/alu"

// Kind categorizes a decoded instruction for the pipeline's execute
// and memory stages.
type Kind uint8

const (
	KindALU Kind = iota
	KindLoad
	KindStore
	KindBranch
	KindJAL
	KindJALR
	KindLUI
	KindAUIPC
	KindSystem
	KindFence
	KindFenceI
	KindAMO
	KindCSR
	KindFPArith
	KindFPFMA
	KindFPCompare
	KindFPClassify
	KindFPCvtToInt
	KindFPCvtToFP
	KindFPCvtFmt
	KindFPMove
	KindFPLoad
	KindFPStore
	KindIllegal
)

// BranchCond identifies a conditional-branch comparison.
type BranchCond uint8

const (
	BEQ BranchCond = iota
	BNE
	BLT
	BGE
	BLTU
	BGEU
)

// MemWidth identifies a load/store access width.
type MemWidth uint8

const (
	Byte MemWidth = iota
	Half
	Word
	Double
)

// SystemOp identifies a SYSTEM-opcode instruction that is not a CSR
// access.
type SystemOp uint8

const (
	SysECall SystemOp = iota
	SysEBreak
	SysMRet
	SysSRet
	SysWFI
)

// CSROp identifies the CSR instruction family.
type CSROp uint8

const (
	CSRRW CSROp = iota
	CSRRS
	CSRRC
)

// Decoded is one decoded instruction's control signals, register
// indices, and immediate.
type Decoded struct {
	Raw  uint32
	Size uint8 // 2 (compressed) or 4

	Kind Kind

	Rd, Rs1, Rs2, Rs3 uint8
	RdIsFP, Rs1IsFP   bool
	Rs2IsFP, Rs3IsFP  bool
	Imm               int64

	IntOp  alu.IntOp
	UseImm bool // operand-select: rs2 value vs. immediate
	IsWord bool // *W integer op

	MemWidth MemWidth
	Signed   bool // load sign-extension

	AtomicOp         alu.AtomicOp
	IsLR, IsSC       bool
	Acquire, Release bool

	Branch BranchCond

	SysOp     SystemOp
	CSROp     CSROp
	CSRAddr   uint32
	CSRUseImm bool // csrrwi/csrrsi/csrrci: rs1 field holds a 5-bit immediate

	FPOp                  alu.FPOp
	FPDouble              bool
	RM                    alu.RoundingMode
	NegProduct, NegAddend bool
	CvtSigned, CvtWord    bool
	CvtToDouble           bool

	Illegal bool
}

// signExtend sign-extends the low `bits` bits of v.
func signExtend(v uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(v<<uint(shift))) >> uint(shift)
}

func bit(v uint32, n uint) uint32 { return (v >> n) & 1 }
func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func immI(raw uint32) int64 { return signExtend(raw>>20, 12) }

func immS(raw uint32) int64 {
	v := (bits(raw, 31, 25) << 5) | bits(raw, 11, 7)
	return signExtend(v, 12)
}

func immB(raw uint32) int64 {
	v := (bit(raw, 31) << 12) | (bit(raw, 7) << 11) |
		(bits(raw, 30, 25) << 5) | (bits(raw, 11, 8) << 1)
	return signExtend(v, 13)
}

func immU(raw uint32) int64 {
	return int64(int32(raw & 0xFFFFF000))
}

func immJ(raw uint32) int64 {
	v := (bit(raw, 31) << 20) | (bits(raw, 19, 12) << 12) |
		(bit(raw, 20) << 11) | (bits(raw, 30, 21) << 1)
	return signExtend(v, 21)
}

// Decode decodes a 32-bit instruction encoding into its control
// signals. Compressed (16-bit) encodings must be expanded via Expand
// before being passed here.
func Decode(raw uint32) Decoded {
	d := Decoded{Raw: raw, Size: 4}
	opcode := bits(raw, 6, 0)
	d.Rd = uint8(bits(raw, 11, 7))
	d.Rs1 = uint8(bits(raw, 19, 15))
	d.Rs2 = uint8(bits(raw, 24, 20))
	d.Rs3 = uint8(bits(raw, 31, 27))
	funct3 := bits(raw, 14, 12)
	funct7 := bits(raw, 31, 25)

	switch opcode {
	case 0b0110111: // LUI
		d.Kind = KindLUI
		d.Imm = immU(raw)
	case 0b0010111: // AUIPC
		d.Kind = KindAUIPC
		d.Imm = immU(raw)
	case 0b1101111: // JAL
		d.Kind = KindJAL
		d.Imm = immJ(raw)
	case 0b1100111: // JALR
		d.Kind = KindJALR
		d.Imm = immI(raw)
	case 0b1100011: // BRANCH
		d.Kind = KindBranch
		d.Imm = immB(raw)
		switch funct3 {
		case 0b000:
			d.Branch = BEQ
		case 0b001:
			d.Branch = BNE
		case 0b100:
			d.Branch = BLT
		case 0b101:
			d.Branch = BGE
		case 0b110:
			d.Branch = BLTU
		case 0b111:
			d.Branch = BGEU
		default:
			d.Illegal = true
		}
	case 0b0000011: // LOAD
		d.Kind = KindLoad
		d.Imm = immI(raw)
		decodeMemWidth(&d, funct3)
	case 0b0100011: // STORE
		d.Kind = KindStore
		d.Imm = immS(raw)
		switch funct3 {
		case 0b000:
			d.MemWidth = Byte
		case 0b001:
			d.MemWidth = Half
		case 0b010:
			d.MemWidth = Word
		case 0b011:
			d.MemWidth = Double
		default:
			d.Illegal = true
		}
	case 0b0010011: // OP-IMM
		d.Kind = KindALU
		d.UseImm = true
		d.Imm = immI(raw)
		decodeOpImm(&d, funct3, funct7, raw, false)
	case 0b0011011: // OP-IMM-32
		d.Kind = KindALU
		d.UseImm = true
		d.IsWord = true
		d.Imm = immI(raw)
		decodeOpImm(&d, funct3, funct7, raw, true)
	case 0b0110011: // OP
		d.Kind = KindALU
		decodeOp(&d, funct3, funct7, false)
	case 0b0111011: // OP-32
		d.Kind = KindALU
		d.IsWord = true
		decodeOp(&d, funct3, funct7, true)
	case 0b0001111: // MISC-MEM
		if funct3 == 0b001 {
			d.Kind = KindFenceI
		} else {
			d.Kind = KindFence
		}
	case 0b1110011: // SYSTEM
		decodeSystem(&d, raw, funct3)
	case 0b0101111: // AMO
		decodeAMO(&d, raw, funct3, funct7)
	case 0b0000111: // LOAD-FP
		d.Kind = KindFPLoad
		d.Imm = immI(raw)
		d.RdIsFP = true
		if funct3 == 0b010 {
			d.MemWidth = Word
		} else {
			d.MemWidth = Double
		}
	case 0b0100111: // STORE-FP
		d.Kind = KindFPStore
		d.Imm = immS(raw)
		d.Rs2IsFP = true
		if funct3 == 0b010 {
			d.MemWidth = Word
		} else {
			d.MemWidth = Double
		}
	case 0b1000011, 0b1000111, 0b1001011, 0b1001111: // FMADD/FMSUB/FNMSUB/FNMADD
		d.Kind = KindFPFMA
		d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP, d.Rs3IsFP = true, true, true, true
		d.FPDouble = bits(raw, 26, 25) == 1
		d.RM = alu.RoundingMode(funct3)
		switch opcode {
		case 0b1000111:
			d.NegAddend = true
		case 0b1001011:
			d.NegProduct = true
		case 0b1001111:
			d.NegProduct = true
			d.NegAddend = true
		}
	case 0b1010011: // OP-FP
		decodeOpFP(&d, raw, funct3, funct7)
	default:
		d.Illegal = true
	}
	if d.Illegal {
		d.Kind = KindIllegal
	}
	return d
}

func decodeMemWidth(d *Decoded, funct3 uint32) {
	switch funct3 {
	case 0b000:
		d.MemWidth, d.Signed = Byte, true
	case 0b001:
		d.MemWidth, d.Signed = Half, true
	case 0b010:
		d.MemWidth, d.Signed = Word, true
	case 0b011:
		d.MemWidth, d.Signed = Double, true
	case 0b100:
		d.MemWidth, d.Signed = Byte, false
	case 0b101:
		d.MemWidth, d.Signed = Half, false
	case 0b110:
		d.MemWidth, d.Signed = Word, false
	default:
		d.Illegal = true
	}
}

func decodeOpImm(d *Decoded, funct3, funct7 uint32, raw uint32, word bool) {
	switch funct3 {
	case 0b000:
		d.IntOp = pick(word, alu.AddW, alu.Add)
	case 0b010:
		d.IntOp = alu.Slt
	case 0b011:
		d.IntOp = alu.Sltu
	case 0b100:
		d.IntOp = alu.Xor
	case 0b110:
		d.IntOp = alu.Or
	case 0b111:
		d.IntOp = alu.And
	case 0b001:
		d.IntOp = pick(word, alu.SllW, alu.Sll)
		d.Imm = int64(shamt(raw, word))
	case 0b101:
		if bits(funct7, 6, 1) == 0b010000 {
			d.IntOp = pick(word, alu.SraW, alu.Sra)
		} else {
			d.IntOp = pick(word, alu.SrlW, alu.Srl)
		}
		d.Imm = int64(shamt(raw, word))
	default:
		d.Illegal = true
	}
}

func shamt(raw uint32, word bool) uint32 {
	if word {
		return bits(raw, 24, 20)
	}
	return bits(raw, 25, 20)
}

func pick(word bool, w, n alu.IntOp) alu.IntOp {
	if word {
		return w
	}
	return n
}

func decodeOp(d *Decoded, funct3, funct7 uint32, word bool) {
	if funct7 == 0b0000001 {
		decodeMulDiv(d, funct3, word)
		return
	}
	switch funct3 {
	case 0b000:
		if funct7 == 0b0100000 {
			d.IntOp = pick(word, alu.SubW, alu.Sub)
		} else {
			d.IntOp = pick(word, alu.AddW, alu.Add)
		}
	case 0b001:
		d.IntOp = pick(word, alu.SllW, alu.Sll)
	case 0b010:
		d.IntOp = alu.Slt
	case 0b011:
		d.IntOp = alu.Sltu
	case 0b100:
		d.IntOp = alu.Xor
	case 0b101:
		if funct7 == 0b0100000 {
			d.IntOp = pick(word, alu.SraW, alu.Sra)
		} else {
			d.IntOp = pick(word, alu.SrlW, alu.Srl)
		}
	case 0b110:
		d.IntOp = alu.Or
	case 0b111:
		d.IntOp = alu.And
	}
}

func decodeMulDiv(d *Decoded, funct3 uint32, word bool) {
	switch funct3 {
	case 0b000:
		d.IntOp = pick(word, alu.MulW, alu.Mul)
	case 0b001:
		d.IntOp = alu.Mulh
	case 0b010:
		d.IntOp = alu.Mulhsu
	case 0b011:
		d.IntOp = alu.Mulhu
	case 0b100:
		d.IntOp = pick(word, alu.DivW, alu.Div)
	case 0b101:
		d.IntOp = pick(word, alu.DivuW, alu.Divu)
	case 0b110:
		d.IntOp = pick(word, alu.RemW, alu.Rem)
	case 0b111:
		d.IntOp = pick(word, alu.RemuW, alu.Remu)
	}
}

func decodeSystem(d *Decoded, raw, funct3 uint32) {
	if funct3 == 0 {
		d.Kind = KindSystem
		imm12 := bits(raw, 31, 20)
		switch imm12 {
		case 0x000:
			d.SysOp = SysECall
		case 0x001:
			d.SysOp = SysEBreak
		case 0x302:
			d.SysOp = SysMRet
		case 0x102:
			d.SysOp = SysSRet
		case 0x105:
			d.SysOp = SysWFI
		default:
			d.Illegal = true
		}
		return
	}
	d.Kind = KindCSR
	d.CSRAddr = bits(raw, 31, 20)
	switch funct3 {
	case 0b001:
		d.CSROp = CSRRW
	case 0b010:
		d.CSROp = CSRRS
	case 0b011:
		d.CSROp = CSRRC
	case 0b101:
		d.CSROp, d.CSRUseImm = CSRRW, true
	case 0b110:
		d.CSROp, d.CSRUseImm = CSRRS, true
	case 0b111:
		d.CSROp, d.CSRUseImm = CSRRC, true
	default:
		d.Illegal = true
	}
}

func decodeAMO(d *Decoded, raw, funct3, funct7 uint32) {
	d.Kind = KindAMO
	d.MemWidth = Word
	if funct3 == 0b011 {
		d.MemWidth = Double
	}
	d.Acquire = bit(raw, 26) != 0
	d.Release = bit(raw, 25) != 0
	switch bits(funct7, 6, 2) {
	case 0b00010:
		d.IsLR = true
	case 0b00011:
		d.IsSC = true
	case 0b00001:
		d.AtomicOp = alu.AmoSwap
	case 0b00000:
		d.AtomicOp = alu.AmoAdd
	case 0b00100:
		d.AtomicOp = alu.AmoXor
	case 0b01100:
		d.AtomicOp = alu.AmoAnd
	case 0b01000:
		d.AtomicOp = alu.AmoOr
	case 0b10000:
		d.AtomicOp = alu.AmoMin
	case 0b10100:
		d.AtomicOp = alu.AmoMax
	case 0b11000:
		d.AtomicOp = alu.AmoMinu
	case 0b11100:
		d.AtomicOp = alu.AmoMaxu
	default:
		d.Illegal = true
	}
}

func decodeOpFP(d *Decoded, raw, funct3, funct7 uint32) {
	double := funct7&1 == 1
	d.FPDouble = double
	d.RM = alu.RoundingMode(funct3)
	top5 := bits(funct7, 6, 2)
	switch top5 {
	case 0b00000:
		d.Kind, d.FPOp, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, alu.FAdd, true, true, true
	case 0b00001:
		d.Kind, d.FPOp, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, alu.FSub, true, true, true
	case 0b00010:
		d.Kind, d.FPOp, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, alu.FMul, true, true, true
	case 0b00011:
		d.Kind, d.FPOp, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, alu.FDiv, true, true, true
	case 0b01011:
		d.Kind, d.FPOp, d.RdIsFP, d.Rs1IsFP = KindFPArith, alu.FSqrt, true, true
	case 0b00100:
		d.Kind, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, true, true, true
		switch funct3 {
		case 0:
			d.FPOp = alu.FSgnj
		case 1:
			d.FPOp = alu.FSgnjn
		default:
			d.FPOp = alu.FSgnjx
		}
	case 0b00101:
		d.Kind, d.RdIsFP, d.Rs1IsFP, d.Rs2IsFP = KindFPArith, true, true, true
		if funct3 == 0 {
			d.FPOp = alu.FMin
		} else {
			d.FPOp = alu.FMax
		}
	case 0b10100:
		d.Kind, d.Rs1IsFP, d.Rs2IsFP = KindFPCompare, true, true
		switch funct3 {
		case 0b010:
			d.FPOp = alu.CmpEq
		case 0b001:
			d.FPOp = alu.CmpLt
		default:
			d.FPOp = alu.CmpLe
		}
	case 0b11100:
		d.Rs1IsFP = true
		if funct3 == 0 {
			d.Kind = KindFPMove // fmv.x.w / fmv.x.d
		} else {
			d.Kind = KindFPClassify
		}
	case 0b11110:
		d.Kind, d.RdIsFP = KindFPMove, true // fmv.w.x / fmv.d.x
	case 0b11000: // fcvt.w/wu/l/lu.s/d (float -> int); rs2 selects width/sign
		d.Kind, d.Rs1IsFP = KindFPCvtToInt, true
		d.CvtSigned = d.Rs2 == 0 || d.Rs2 == 2
		d.CvtWord = d.Rs2 < 2
	case 0b11010: // fcvt.s/d.w/wu/l/lu (int -> float); rs2 selects width/sign
		d.Kind, d.RdIsFP = KindFPCvtToFP, true
		d.CvtSigned = d.Rs2 == 0 || d.Rs2 == 2
		d.CvtWord = d.Rs2 < 2
	case 0b01000: // fcvt.s.d / fcvt.d.s: rs2 selects source format, not funct7's LSB
		d.Kind, d.RdIsFP, d.Rs1IsFP = KindFPCvtFmt, true, true
		d.FPDouble = d.Rs2 == 1    // source is double (fcvt.s.d)
		d.CvtToDouble = d.Rs2 == 0 // target is double (fcvt.d.s)
	default:
		d.Illegal = true
	}
}
