// Package csr implements the RISC-V control-and-status-register file for
// machine and supervisor privilege modes.
package csr

// Addresses of the CSRs this simulator implements. Unlisted addresses
// read as zero and discard writes.
const (
	Mvendorid = 0xF11
	Marchid   = 0xF12
	Mimpid    = 0xF13
	Mhartid   = 0xF14

	Mstatus    = 0x300
	Misa       = 0x301
	Medeleg    = 0x302
	Mideleg    = 0x303
	Mie        = 0x304
	Mtvec      = 0x305
	Mcounteren = 0x306
	Mscratch   = 0x340
	Mepc       = 0x341
	Mcause     = 0x342
	Mtval      = 0x343
	Mip        = 0x344

	Sstatus    = 0x100
	Sie        = 0x104
	Stvec      = 0x105
	Scounteren = 0x106
	Sscratch   = 0x140
	Sepc       = 0x141
	Scause     = 0x142
	Stval      = 0x143
	Sip        = 0x144
	Satp       = 0x180
	Stimecmp   = 0x14D

	Fflags = 0x001
	Frm    = 0x002
	Fcsr   = 0x003

	Cycle   = 0xC00
	Time    = 0xC01
	Instret = 0xC02

	Mcycle   = 0xB00
	Minstret = 0xB02

	// SimPanic is a custom CSR used as an internal "requested" trap
	// value by the simulator; it has no hardware meaning.
	SimPanic = 0x8FF

	// Pmpcfg0 and Pmpcfg2 each pack eight PMP entry configuration
	// bytes (RV64 layout: odd-numbered pmpcfg registers do not exist).
	Pmpcfg0 = 0x3A0
	Pmpcfg2 = 0x3A2
	// Pmpaddr0 is the base address of the 64 possible PMP address
	// registers; this simulator implements the first 16.
	Pmpaddr0 = 0x3B0
)

// Mstatus field masks and shifts.
const (
	MstatusUIE  uint64 = 1 << 0
	MstatusSIE  uint64 = 1 << 1
	MstatusMIE  uint64 = 1 << 3
	MstatusSPIE uint64 = 1 << 5
	MstatusMPIE uint64 = 1 << 7
	MstatusSPP  uint64 = 1 << 8
	MstatusMPP  uint64 = 3 << 11

	MstatusMPPShift uint64 = 11
	MstatusMPPMask  uint64 = 3

	MstatusFS      uint64 = 3 << 13
	MstatusFSOff   uint64 = 0 << 13
	MstatusFSInit  uint64 = 1 << 13
	MstatusFSClean uint64 = 2 << 13
	MstatusFSDirty uint64 = 3 << 13

	MstatusSUM uint64 = 1 << 18
	MstatusMXR uint64 = 1 << 19
)

// Mie/Mip bit positions, shared between interrupt-enable and
// interrupt-pending registers.
const (
	UserSoftwareBit       uint64 = 1 << 0
	SupervisorSoftwareBit uint64 = 1 << 1
	MachineSoftwareBit    uint64 = 1 << 3
	UserTimerBit          uint64 = 1 << 4
	SupervisorTimerBit    uint64 = 1 << 5
	MachineTimerBit       uint64 = 1 << 7
	UserExternalBit       uint64 = 1 << 8
	SupervisorExternalBit uint64 = 1 << 9
	MachineExternalBit    uint64 = 1 << 11
)

// Satp field masks.
const (
	SatpModeShift uint64 = 60
	SatpModeBare  uint64 = 0
	SatpModeSv39  uint64 = 8
	SatpModeMask  uint64 = 0xF
	SatpPPNMask   uint64 = 0xFFF_FFFF_FFFF
)

// MISA extension bits and default values.
const (
	MisaExtA uint64 = 1 << 0
	MisaExtC uint64 = 1 << 2
	MisaExtD uint64 = 1 << 3
	MisaExtF uint64 = 1 << 5
	MisaExtI uint64 = 1 << 8
	MisaExtM uint64 = 1 << 12
	MisaExtS uint64 = 1 << 18
	MisaExtU uint64 = 1 << 20

	MisaXLEN64 uint64 = 2 << 62

	// DefaultMstatusRV64 sets SXL and UXL to the 64-bit encoding.
	DefaultMstatusRV64 uint64 = 0xa_0000_0000
	DefaultMisaRV64GC  uint64 = MisaXLEN64 | MisaExtA | MisaExtC |
		MisaExtD | MisaExtF | MisaExtI | MisaExtM | MisaExtS | MisaExtU
)

// File is the control-and-status-register bank for a single hart.
//
// Supervisor-visible registers (sstatus, sie, sip) are not separate
// storage: they are masked projections of the corresponding machine
// registers, read and written through ReadSstatus/WriteSstatus/ReadSie/etc.
type File struct {
	Mstatus  uint64
	Misa     uint64
	Medeleg  uint64
	Mideleg  uint64
	Mie      uint64
	Mtvec    uint64
	Mscratch uint64
	Mepc     uint64
	Mcause   uint64
	Mtval    uint64
	Mip      uint64

	Stvec    uint64
	Sscratch uint64
	Sepc     uint64
	Scause   uint64
	Stval    uint64
	Satp     uint64
	Stimecmp uint64

	// FcsrValue packs fflags (bits 4..0) and frm (bits 7..5).
	FcsrValue uint64

	CycleCount   uint64
	TimeValue    uint64
	InstretCount uint64

	Pmpcfg  [2]uint64 // pmpcfg0, pmpcfg2 (8 entries each, RV64 layout)
	Pmpaddr [16]uint64

	// InterruptInhibit suppresses interrupt detection for the cycle
	// following a write to mstatus/mie/sstatus/sie
	InterruptInhibit bool
}

// sstatusMask selects the bits of mstatus visible through sstatus.
const sstatusMask = MstatusUIE | MstatusSIE | MstatusSPIE | MstatusSPP |
	MstatusFS | MstatusSUM | MstatusMXR

// sieSipMask selects the supervisor-delegable bits of mie/mip.
const sieSipMask = UserSoftwareBit | SupervisorSoftwareBit | UserTimerBit |
	SupervisorTimerBit | UserExternalBit | SupervisorExternalBit

// ReadSstatus returns the supervisor view of mstatus.
func (f *File) ReadSstatus() uint64 { return f.Mstatus & sstatusMask }

// WriteSstatus writes the supervisor-visible bits of mstatus, leaving
// the rest of mstatus untouched, and arms the interrupt-detection
// inhibit for the next cycle.
func (f *File) WriteSstatus(val uint64) {
	f.Mstatus = (f.Mstatus &^ sstatusMask) | (val & sstatusMask)
	f.InterruptInhibit = true
}

// ReadSie returns the supervisor view of mie.
func (f *File) ReadSie() uint64 { return f.Mie & sieSipMask }

// WriteSie writes the supervisor-visible bits of mie.
func (f *File) WriteSie(val uint64) {
	f.Mie = (f.Mie &^ sieSipMask) | (val & sieSipMask)
	f.InterruptInhibit = true
}

// ReadSip returns the supervisor view of mip.
func (f *File) ReadSip() uint64 { return f.Mip & sieSipMask }

// WriteSip writes the supervisor-visible, software-settable bits of mip
// (only the supervisor-software-interrupt-pending bit is writable).
func (f *File) WriteSip(val uint64) {
	const writable = SupervisorSoftwareBit
	f.Mip = (f.Mip &^ writable) | (val & writable)
}

// Read returns the value of the CSR at addr, or 0 if unrecognized.
func (f *File) Read(addr uint32) uint64 {
	switch addr {
	case Mstatus:
		return f.Mstatus
	case Misa:
		return f.Misa
	case Medeleg:
		return f.Medeleg
	case Mideleg:
		return f.Mideleg
	case Mie:
		return f.Mie
	case Mtvec:
		return f.Mtvec
	case Mscratch:
		return f.Mscratch
	case Mepc:
		return f.Mepc
	case Mcause:
		return f.Mcause
	case Mtval:
		return f.Mtval
	case Mip:
		return f.Mip
	case Sstatus:
		return f.ReadSstatus()
	case Sie:
		return f.ReadSie()
	case Stvec:
		return f.Stvec
	case Sscratch:
		return f.Sscratch
	case Sepc:
		return f.Sepc
	case Scause:
		return f.Scause
	case Stval:
		return f.Stval
	case Sip:
		return f.ReadSip()
	case Satp:
		return f.Satp
	case Stimecmp:
		return f.Stimecmp
	case Fflags:
		return f.FcsrValue & 0x1F
	case Frm:
		return (f.FcsrValue >> 5) & 7
	case Fcsr:
		return f.FcsrValue & 0xFF
	case Cycle, Mcycle:
		return f.CycleCount
	case Time:
		return f.TimeValue
	case Instret, Minstret:
		return f.InstretCount
	case Pmpcfg0:
		return f.Pmpcfg[0]
	case Pmpcfg2:
		return f.Pmpcfg[1]
	default:
		if addr >= Pmpaddr0 && addr < Pmpaddr0+16 {
			return f.Pmpaddr[addr-Pmpaddr0]
		}
		return 0
	}
}

// Write stores val into the CSR at addr. Writes to unrecognized
// addresses are silently discarded. Writes to mstatus, mie, sstatus, or
// sie set InterruptInhibit so the caller suppresses interrupt detection
// for the following cycle.
func (f *File) Write(addr uint32, val uint64) {
	switch addr {
	case Mstatus:
		f.Mstatus = val
		f.InterruptInhibit = true
	case Misa:
		f.Misa = val
	case Medeleg:
		f.Medeleg = val
	case Mideleg:
		f.Mideleg = val
	case Mie:
		f.Mie = val
		f.InterruptInhibit = true
	case Mtvec:
		f.Mtvec = val
	case Mscratch:
		f.Mscratch = val
	case Mepc:
		f.Mepc = val
	case Mcause:
		f.Mcause = val
	case Mtval:
		f.Mtval = val
	case Mip:
		f.Mip = val
	case Sstatus:
		f.WriteSstatus(val)
	case Sie:
		f.WriteSie(val)
	case Stvec:
		f.Stvec = val
	case Sscratch:
		f.Sscratch = val
	case Sepc:
		f.Sepc = val
	case Scause:
		f.Scause = val
	case Stval:
		f.Stval = val
	case Sip:
		f.WriteSip(val)
	case Satp:
		f.writeSatp(val)
	case Stimecmp:
		f.Stimecmp = val
		f.Mip &^= SupervisorTimerBit
	case Fflags:
		f.FcsrValue = (f.FcsrValue &^ 0x1F) | (val & 0x1F)
	case Frm:
		f.FcsrValue = (f.FcsrValue &^ uint64(7<<5)) | ((val & 7) << 5)
	case Fcsr:
		f.FcsrValue = val & 0xFF
	case Cycle, Mcycle:
		f.CycleCount = val
	case Time:
		f.TimeValue = val
	case Instret, Minstret:
		f.InstretCount = val
	case Pmpcfg0:
		f.Pmpcfg[0] = val
	case Pmpcfg2:
		f.Pmpcfg[1] = val
	default:
		if addr >= Pmpaddr0 && addr < Pmpaddr0+16 {
			f.Pmpaddr[addr-Pmpaddr0] = val
		}
	}
}

// writeSatp sanitizes the address-translation-mode field: an
// unrecognized mode clears the mode field but preserves the root page
// number
func (f *File) writeSatp(val uint64) {
	mode := (val >> SatpModeShift) & SatpModeMask
	newMode := SatpModeBare
	if mode == SatpModeSv39 {
		newMode = SatpModeSv39
	}
	mask := ^(SatpModeMask << SatpModeShift)
	f.Satp = (val & mask) | (newMode << SatpModeShift)
}

// ReadFrm returns the dynamic rounding mode field.
func (f *File) ReadFrm() uint64 { return (f.FcsrValue >> 5) & 7 }

// TranslationMode reports whether SV39 paging is currently active.
func (f *File) TranslationMode() (sv39 bool) {
	return (f.Satp>>SatpModeShift)&SatpModeMask == SatpModeSv39
}

// Root returns the physical page number of the root page table.
func (f *File) Root() uint64 {
	return f.Satp & SatpPPNMask
}
