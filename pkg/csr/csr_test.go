package csr

import "testing"

func TestSatpModeSanitized(t *testing.T) {
	f := &File{}

	// SV39 is accepted.
	f.Write(Satp, SatpModeSv39<<SatpModeShift|0x1234)
	if !f.TranslationMode() {
		t.Error("SV39 write should enable translation")
	}
	if f.Root() != 0x1234 {
		t.Errorf("root = %#x, want 0x1234", f.Root())
	}

	// An unrecognized mode clears the mode field but preserves the
	// root page number.
	f.Write(Satp, 5<<SatpModeShift|0x5678)
	if f.TranslationMode() {
		t.Error("unrecognized mode should read as bare")
	}
	if f.Root() != 0x5678 {
		t.Errorf("root after bad mode = %#x, want 0x5678", f.Root())
	}
}

func TestSstatusIsProjection(t *testing.T) {
	f := &File{}
	f.Mstatus = MstatusMIE | MstatusSIE | MstatusSUM

	s := f.Read(Sstatus)
	if s&MstatusSIE == 0 || s&MstatusSUM == 0 {
		t.Error("sstatus should expose SIE and SUM")
	}
	if s&MstatusMIE != 0 {
		t.Error("sstatus must mask machine-only bits")
	}

	// Writing sstatus touches only the supervisor-visible bits.
	f.Write(Sstatus, 0)
	if f.Mstatus&MstatusMIE == 0 {
		t.Error("sstatus write clobbered MIE")
	}
	if f.Mstatus&MstatusSIE != 0 {
		t.Error("sstatus write should clear SIE")
	}
}

func TestSieSipProjection(t *testing.T) {
	f := &File{}
	f.Mie = MachineTimerBit | SupervisorTimerBit | SupervisorExternalBit

	sie := f.Read(Sie)
	if sie&SupervisorTimerBit == 0 || sie&SupervisorExternalBit == 0 {
		t.Error("sie should expose supervisor bits")
	}
	if sie&MachineTimerBit != 0 {
		t.Error("sie must mask machine bits")
	}

	f.Mip = SupervisorSoftwareBit | MachineSoftwareBit
	if f.Read(Sip)&MachineSoftwareBit != 0 {
		t.Error("sip must mask machine bits")
	}

	// Only SSIP is software-writable through sip.
	f.Write(Sip, 0)
	if f.Mip&SupervisorSoftwareBit != 0 {
		t.Error("sip write should clear SSIP")
	}
	if f.Mip&MachineSoftwareBit == 0 {
		t.Error("sip write must not touch MSIP")
	}
}

func TestInterruptInhibitArming(t *testing.T) {
	for _, addr := range []uint32{Mstatus, Mie, Sstatus, Sie} {
		f := &File{}
		f.Write(addr, 0)
		if !f.InterruptInhibit {
			t.Errorf("write to %#x should arm the interrupt inhibit", addr)
		}
	}

	f := &File{}
	f.Write(Mscratch, 1)
	if f.InterruptInhibit {
		t.Error("mscratch write must not arm the inhibit")
	}
}

func TestStimecmpWriteClearsSTIP(t *testing.T) {
	f := &File{}
	f.Mip = SupervisorTimerBit
	f.Write(Stimecmp, 500)
	if f.Mip&SupervisorTimerBit != 0 {
		t.Error("stimecmp write should clear the pending supervisor timer bit")
	}
	if f.Stimecmp != 500 {
		t.Errorf("stimecmp = %d", f.Stimecmp)
	}
}

func TestUnknownCSR(t *testing.T) {
	f := &File{}
	f.Write(0x7C0, 99) // custom, unimplemented
	if f.Read(0x7C0) != 0 {
		t.Error("unrecognized CSR should read zero")
	}
}

func TestFcsrFields(t *testing.T) {
	f := &File{}
	f.Write(Frm, 3)
	if f.ReadFrm() != 3 {
		t.Errorf("frm = %d, want 3", f.ReadFrm())
	}
	f.Write(Fflags, 0x1F)
	if f.Read(Fcsr) != 3<<5|0x1F {
		t.Errorf("fcsr = %#x", f.Read(Fcsr))
	}
}

func TestPMPRegisterFile(t *testing.T) {
	f := &File{}
	f.Write(Pmpaddr0+3, 0xABCD)
	if f.Read(Pmpaddr0+3) != 0xABCD {
		t.Error("pmpaddr round trip failed")
	}
	f.Write(Pmpcfg0, 0x1F1F)
	if f.Read(Pmpcfg0) != 0x1F1F {
		t.Error("pmpcfg0 round trip failed")
	}
	f.Write(Pmpcfg2, 0x0707)
	if f.Read(Pmpcfg2) != 0x0707 {
		t.Error("pmpcfg2 round trip failed")
	}
	// The odd-numbered register does not exist on RV64.
	f.Write(Pmpcfg0+1, 0xFF)
	if f.Read(Pmpcfg0+1) != 0 {
		t.Error("pmpcfg1 should not be backed by storage")
	}
}
