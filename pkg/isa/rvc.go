package isa

// Expand translates a 16-bit compressed (RVC) instruction into its
// equivalent 32-bit RV64GC encoding. ok is false for a reserved or
// unimplemented encoding, which the caller should treat as an illegal
// instruction.
func Expand(c uint16) (raw uint32, ok bool) {
	quadrant := c & 0b11
	funct3 := (c >> 13) & 0b111

	switch quadrant {
	case 0b00:
		return expandQuadrant0(c, funct3)
	case 0b01:
		return expandQuadrant1(c, funct3)
	case 0b10:
		return expandQuadrant2(c, funct3)
	}
	return 0, false
}

// creg maps a 3-bit compressed register field to its architectural
// register number (x8-x15).
func creg(v uint16) uint32 { return uint32(v) + 8 }

func rI(opcode, funct3, rd, rs1 uint32, imm int64) uint32 {
	return opcode | rd<<7 | funct3<<12 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

func rR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return opcode | rd<<7 | funct3<<12 | rs1<<15 | rs2<<20 | funct7<<25
}

func rS(opcode, funct3, rs1, rs2 uint32, imm int64) uint32 {
	u := uint32(imm) & 0xFFF
	return opcode | (u&0x1F)<<7 | funct3<<12 | rs1<<15 | rs2<<20 | (u>>5)<<25
}

func rB(opcode, funct3, rs1, rs2 uint32, imm int64) uint32 {
	u := uint32(imm)
	return opcode | ((u>>11)&1)<<7 | ((u>>1)&0xF)<<8 | funct3<<12 |
		rs1<<15 | rs2<<20 | ((u>>5)&0x3F)<<25 | ((u>>12)&1)<<31
}

func rU(opcode, rd uint32, imm int64) uint32 {
	return opcode | rd<<7 | uint32(imm)&0xFFFFF000
}

func rJ(opcode, rd uint32, imm int64) uint32 {
	u := uint32(imm)
	return opcode | rd<<7 | ((u>>12)&0xFF)<<12 | ((u>>11)&1)<<20 |
		((u>>1)&0x3FF)<<21 | ((u>>20)&1)<<31
}

const (
	opLoad   = 0b0000011
	opFLoad  = 0b0000111
	opStore  = 0b0100011
	opFStore = 0b0100111
	opOpImm  = 0b0010011
	opOpImm32 = 0b0011011
	opOp     = 0b0110011
	opOp32   = 0b0111011
	opLUI    = 0b0110111
	opBranch = 0b1100011
	opJAL    = 0b1101111
	opJALR   = 0b1100111
	opSystem = 0b1110011
)

func expandQuadrant0(c uint16, funct3 uint16) (uint32, bool) {
	rdp := creg((c >> 2) & 0b111)
	rs1p := creg((c >> 7) & 0b111)
	switch funct3 {
	case 0b000: // C.ADDI4SPN
		imm := int64(ciw(c))
		if imm == 0 {
			return 0, false
		}
		return rI(opOpImm, 0, rdp, 2, imm), true
	case 0b001: // C.FLD
		return rI(opFLoad, 0b011, rdp, rs1p, clImm(c, true)), true
	case 0b010: // C.LW
		return rI(opLoad, 0b010, rdp, rs1p, clImm(c, false)), true
	case 0b011: // C.LD
		return rI(opLoad, 0b011, rdp, rs1p, clImm(c, true)), true
	case 0b101: // C.FSD
		return rS(opFStore, 0b011, rs1p, rdp, clImm(c, true)), true
	case 0b110: // C.SW
		return rS(opStore, 0b010, rs1p, rdp, clImm(c, false)), true
	case 0b111: // C.SD
		return rS(opStore, 0b011, rs1p, rdp, clImm(c, true)), true
	}
	return 0, false
}

// ciw decodes C.ADDI4SPN's zero-extended immediate:
// imm[5:4|9:6|2|3] at bits [12:11|10:7|6|5].
func ciw(c uint16) uint32 {
	return (uint32(c>>11)&0x3)<<4 | (uint32(c>>7)&0xF)<<6 |
		(uint32(c>>6)&1)<<2 | (uint32(c>>5)&1)<<3
}

// clImm decodes the scaled offset shared by C.LW/C.SW (4 bytes) and
// C.LD/C.SD/C.FLD/C.FSD (8 bytes).
func clImm(c uint16, double bool) int64 {
	if double {
		// C.LD/C.SD/C.FLD/C.FSD: imm[5:3]=bits[12:10], imm[7:6]=bits[6:5]
		imm := (uint32(c>>10)&0x7)<<3 | (uint32(c>>5)&0x3)<<6
		return int64(imm)
	}
	// C.LW/C.SW: imm[5:3]=bits[12:10], imm[2]=bit[6], imm[6]=bit[5]
	imm := (uint32(c>>10)&0x7)<<3 | (uint32(c>>6)&0x1)<<2 | (uint32(c>>5)&0x1)<<6
	return int64(imm)
}

func expandQuadrant1(c uint16, funct3 uint16) (uint32, bool) {
	rd := uint32(c>>7) & 0x1F
	switch funct3 {
	case 0b000: // C.NOP / C.ADDI
		imm := ciImm(c)
		return rI(opOpImm, 0, rd, rd, imm), true
	case 0b001: // C.ADDIW
		imm := ciImm(c)
		return rI(opOpImm32, 0, rd, rd, imm), true
	case 0b010: // C.LI
		imm := ciImm(c)
		return rI(opOpImm, 0, rd, 0, imm), true
	case 0b011:
		if rd == 2 { // C.ADDI16SP
			imm := addi16spImm(c)
			return rI(opOpImm, 0, 2, 2, imm), true
		}
		// C.LUI
		imm := luiImm(c)
		if imm == 0 {
			return 0, false
		}
		return rU(opLUI, rd, imm), true
	case 0b100:
		rdp := creg((c >> 7) & 0b111)
		funct2 := (c >> 10) & 0b11
		switch funct2 {
		case 0b00: // C.SRLI
			shamt := int64(shamt6(c))
			return rI(opOpImm, 0b101, rdp, rdp, shamt), true
		case 0b01: // C.SRAI
			shamt := int64(shamt6(c))
			return rI(opOpImm, 0b101, rdp, rdp, shamt|(1<<10)), true
		case 0b10: // C.ANDI
			imm := ciImm(c)
			return rI(opOpImm, 0b111, rdp, rdp, imm), true
		case 0b11:
			rs2p := creg((c >> 2) & 0b111)
			op2 := (c >> 5) & 0b11
			isWord := (c>>12)&1 != 0
			switch {
			case isWord && op2 == 0: // C.SUBW
				return rR(opOp32, 0, 0b0100000, rdp, rdp, rs2p), true
			case isWord && op2 == 1: // C.ADDW
				return rR(opOp32, 0, 0, rdp, rdp, rs2p), true
			case !isWord && op2 == 0: // C.SUB
				return rR(opOp, 0, 0b0100000, rdp, rdp, rs2p), true
			case !isWord && op2 == 1: // C.XOR
				return rR(opOp, 0b100, 0, rdp, rdp, rs2p), true
			case !isWord && op2 == 2: // C.OR
				return rR(opOp, 0b110, 0, rdp, rdp, rs2p), true
			case !isWord && op2 == 3: // C.AND
				return rR(opOp, 0b111, 0, rdp, rdp, rs2p), true
			}
		}
	case 0b101: // C.J
		return rJ(opJAL, 0, cjImm(c)), true
	case 0b110: // C.BEQZ
		rs1p := creg((c >> 7) & 0b111)
		return rB(opBranch, 0b000, rs1p, 0, cbImm(c)), true
	case 0b111: // C.BNEZ
		rs1p := creg((c >> 7) & 0b111)
		return rB(opBranch, 0b001, rs1p, 0, cbImm(c)), true
	}
	return 0, false
}

func expandQuadrant2(c uint16, funct3 uint16) (uint32, bool) {
	rd := uint32(c>>7) & 0x1F
	switch funct3 {
	case 0b000: // C.SLLI
		shamt := int64(shamt6(c))
		return rI(opOpImm, 0b001, rd, rd, shamt), true
	case 0b001: // C.FLDSP
		return rI(opFLoad, 0b011, rd, 2, cldspImm(c)), true
	case 0b010: // C.LWSP
		if rd == 0 {
			return 0, false
		}
		return rI(opLoad, 0b010, rd, 2, clwspImm(c)), true
	case 0b011: // C.LDSP
		if rd == 0 {
			return 0, false
		}
		return rI(opLoad, 0b011, rd, 2, cldspImm(c)), true
	case 0b100:
		rs2 := uint32(c>>2) & 0x1F
		hi := (c >> 12) & 1
		switch {
		case hi == 0 && rs2 == 0: // C.JR
			if rd == 0 {
				return 0, false
			}
			return rI(opJALR, 0, 0, rd, 0), true
		case hi == 0: // C.MV
			return rR(opOp, 0, 0, rd, 0, rs2), true
		case hi == 1 && rd == 0 && rs2 == 0: // C.EBREAK
			return rI(opSystem, 0, 0, 0, 1), true
		case hi == 1 && rs2 == 0: // C.JALR
			return rI(opJALR, 0, 1, rd, 0), true
		default: // C.ADD
			return rR(opOp, 0, 0, rd, rd, rs2), true
		}
	case 0b101: // C.FSDSP
		rs2 := uint32(c>>2) & 0x1F
		return rS(opFStore, 0b011, 2, rs2, csdspImm(c, true)), true
	case 0b110: // C.SWSP
		rs2 := uint32(c>>2) & 0x1F
		return rS(opStore, 0b010, 2, rs2, cswspImm(c)), true
	case 0b111: // C.SDSP
		rs2 := uint32(c>>2) & 0x1F
		return rS(opStore, 0b011, 2, rs2, csdspImm(c, true)), true
	}
	return 0, false
}

// ciImm decodes the 6-bit sign-extended immediate shared by
// C.ADDI/C.ADDIW/C.LI/C.ANDI: imm[5]=bit[12], imm[4:0]=bits[6:2].
func ciImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<5 | uint32(c>>2)&0x1F
	return signExtend(v, 6)
}

// shamt6 decodes the 6-bit shift amount of C.SLLI/C.SRLI/C.SRAI.
func shamt6(c uint16) uint32 {
	return (uint32(c>>12)&1)<<5 | uint32(c>>2)&0x1F
}

// luiImm decodes C.LUI's non-zero 6-bit immediate into U-format
// position (bits 17:12).
func luiImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<17 | (uint32(c>>2)&0x1F)<<12
	return signExtend(v, 18)
}

// addi16spImm decodes C.ADDI16SP's immediate, scaled by 16.
func addi16spImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<9 | (uint32(c>>3)&0x3)<<7 |
		(uint32(c>>5)&1)<<6 | (uint32(c>>2)&1)<<5 | (uint32(c>>6)&1)<<4
	return signExtend(v, 10)
}

// cjImm decodes C.J/C.JAL's 11-bit offset.
func cjImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<11 | (uint32(c>>8)&1)<<10 | (uint32(c>>9)&0x3)<<8 |
		(uint32(c>>6)&1)<<7 | (uint32(c>>7)&1)<<6 | (uint32(c>>2)&1)<<5 |
		(uint32(c>>11)&1)<<4 | (uint32(c>>3)&0x7)<<1
	return signExtend(v, 12)
}

// cbImm decodes C.BEQZ/C.BNEZ's 8-bit offset.
func cbImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<8 | (uint32(c>>5)&0x3)<<6 | (uint32(c>>2)&1)<<5 |
		(uint32(c>>10)&0x3)<<3 | (uint32(c>>3)&0x3)<<1
	return signExtend(v, 9)
}

// clwspImm decodes C.LWSP's stack-relative word offset.
func clwspImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<5 | (uint32(c>>4)&0x7)<<2 | (uint32(c>>2)&0x3)<<6
	return int64(v)
}

// cldspImm decodes C.LDSP/C.FLDSP's stack-relative doubleword offset.
func cldspImm(c uint16) int64 {
	v := (uint32(c>>12)&1)<<5 | (uint32(c>>5)&0x3)<<3 | (uint32(c>>2)&0x7)<<6
	return int64(v)
}

// cswspImm decodes C.SWSP's stack-relative word offset.
func cswspImm(c uint16) int64 {
	v := (uint32(c>>9)&0xF)<<2 | (uint32(c>>7)&0x3)<<6
	return int64(v)
}

// csdspImm decodes C.SDSP/C.FSDSP's stack-relative doubleword offset.
func csdspImm(c uint16, _ bool) int64 {
	v := (uint32(c>>10)&0x7)<<3 | (uint32(c>>7)&0x7)<<6
	return int64(v)
}
