package isa

import (
	"fmt"

	"github.com/willmccallion/rvsim-sub001/pkg/alu"
)

// Disassemble renders d as RISC-V assembly text, for the simulator's
// trace/debug output.
func Disassemble(d Decoded) string {
	switch d.Kind {
	case KindLUI:
		return fmt.Sprintf("lui x%d, %d", d.Rd, d.Imm>>12)
	case KindAUIPC:
		return fmt.Sprintf("auipc x%d, %d", d.Rd, d.Imm>>12)
	case KindJAL:
		return fmt.Sprintf("jal x%d, %d", d.Rd, d.Imm)
	case KindJALR:
		return fmt.Sprintf("jalr x%d, %d(x%d)", d.Rd, d.Imm, d.Rs1)
	case KindBranch:
		return fmt.Sprintf("%s x%d, x%d, %d", branchName(d.Branch), d.Rs1, d.Rs2, d.Imm)
	case KindLoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", loadName(d.MemWidth, d.Signed), d.Rd, d.Imm, d.Rs1)
	case KindStore:
		return fmt.Sprintf("%s x%d, %d(x%d)", storeName(d.MemWidth), d.Rs2, d.Imm, d.Rs1)
	case KindALU:
		if d.UseImm {
			return fmt.Sprintf("%si x%d, x%d, %d", intOpName(d.IntOp), d.Rd, d.Rs1, d.Imm)
		}
		return fmt.Sprintf("%s x%d, x%d, x%d", intOpName(d.IntOp), d.Rd, d.Rs1, d.Rs2)
	case KindFence:
		return "fence"
	case KindFenceI:
		return "fence.i"
	case KindSystem:
		return systemName(d.SysOp)
	case KindCSR:
		return fmt.Sprintf("%s x%d, 0x%x, x%d", csrName(d.CSROp), d.Rd, d.CSRAddr, d.Rs1)
	case KindAMO:
		return disasmAMO(d)
	case KindFPLoad:
		return fmt.Sprintf("%s f%d, %d(x%d)", fpLoadName(d.MemWidth), d.Rd, d.Imm, d.Rs1)
	case KindFPStore:
		return fmt.Sprintf("%s f%d, %d(x%d)", fpStoreName(d.MemWidth), d.Rs2, d.Imm, d.Rs1)
	case KindFPArith, KindFPFMA, KindFPCompare, KindFPClassify,
		KindFPCvtToInt, KindFPCvtToFP, KindFPCvtFmt, KindFPMove:
		return fmt.Sprintf("f.op f%d, f%d, f%d", d.Rd, d.Rs1, d.Rs2)
	case KindIllegal:
		return fmt.Sprintf("<illegal: 0x%08x>", d.Raw)
	}
	return fmt.Sprintf("<unknown: 0x%08x>", d.Raw)
}

func branchName(c BranchCond) string {
	switch c {
	case BEQ:
		return "beq"
	case BNE:
		return "bne"
	case BLT:
		return "blt"
	case BGE:
		return "bge"
	case BLTU:
		return "bltu"
	default:
		return "bgeu"
	}
}

func loadName(w MemWidth, signed bool) string {
	switch w {
	case Byte:
		if signed {
			return "lb"
		}
		return "lbu"
	case Half:
		if signed {
			return "lh"
		}
		return "lhu"
	case Word:
		if signed {
			return "lw"
		}
		return "lwu"
	default:
		return "ld"
	}
}

func storeName(w MemWidth) string {
	switch w {
	case Byte:
		return "sb"
	case Half:
		return "sh"
	case Word:
		return "sw"
	default:
		return "sd"
	}
}

func fpLoadName(w MemWidth) string {
	if w == Word {
		return "flw"
	}
	return "fld"
}

func fpStoreName(w MemWidth) string {
	if w == Word {
		return "fsw"
	}
	return "fsd"
}

func systemName(op SystemOp) string {
	switch op {
	case SysECall:
		return "ecall"
	case SysEBreak:
		return "ebreak"
	case SysMRet:
		return "mret"
	case SysSRet:
		return "sret"
	default:
		return "wfi"
	}
}

func csrName(op CSROp) string {
	switch op {
	case CSRRW:
		return "csrrw"
	case CSRRS:
		return "csrrs"
	default:
		return "csrrc"
	}
}

func disasmAMO(d Decoded) string {
	width := "w"
	if d.MemWidth == Double {
		width = "d"
	}
	if d.IsLR {
		return fmt.Sprintf("lr.%s x%d, (x%d)", width, d.Rd, d.Rs1)
	}
	if d.IsSC {
		return fmt.Sprintf("sc.%s x%d, x%d, (x%d)", width, d.Rd, d.Rs2, d.Rs1)
	}
	return fmt.Sprintf("amo%s.%s x%d, x%d, (x%d)", amoOpName(d.AtomicOp), width, d.Rd, d.Rs2, d.Rs1)
}

var intOpNames = map[alu.IntOp]string{
	alu.Add: "add", alu.Sub: "sub", alu.Sll: "sll", alu.Slt: "slt",
	alu.Sltu: "sltu", alu.Xor: "xor", alu.Srl: "srl", alu.Sra: "sra",
	alu.Or: "or", alu.And: "and",
	alu.AddW: "addw", alu.SubW: "subw", alu.SllW: "sllw", alu.SrlW: "srlw", alu.SraW: "sraw",
	alu.Mul: "mul", alu.Mulh: "mulh", alu.Mulhsu: "mulhsu", alu.Mulhu: "mulhu",
	alu.Div: "div", alu.Divu: "divu", alu.Rem: "rem", alu.Remu: "remu",
	alu.MulW: "mulw", alu.DivW: "divw", alu.DivuW: "divuw", alu.RemW: "remw", alu.RemuW: "remuw",
}

func intOpName(op alu.IntOp) string {
	if name, ok := intOpNames[op]; ok {
		return name
	}
	return "?"
}

var amoOpNames = map[alu.AtomicOp]string{
	alu.AmoSwap: "swap", alu.AmoAdd: "add", alu.AmoXor: "xor", alu.AmoAnd: "and",
	alu.AmoOr: "or", alu.AmoMin: "min", alu.AmoMax: "max", alu.AmoMinu: "minu", alu.AmoMaxu: "maxu",
}

func amoOpName(op alu.AtomicOp) string {
	if name, ok := amoOpNames[op]; ok {
		return name
	}
	return "?"
}
