package pipeline

import (
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
	"github.com/willmccallion/rvsim-sub001/pkg/trap"
)

// trapTarget decides which privilege mode receives t, per the
// medeleg/mideleg delegation registers. Delegation only applies when
// trapping from supervisor or user mode.
func (h *Hart) trapTarget(t trap.Trap) priv.Mode {
	if h.Mode == priv.Machine {
		return priv.Machine
	}
	deleg := h.CSRs.Medeleg
	if t.IsInterrupt {
		deleg = h.CSRs.Mideleg
	}
	if t.Cause < 64 && deleg&(1<<uint(t.Cause)) != 0 {
		return priv.Supervisor
	}
	return priv.Machine
}

// EnterTrap delivers t with epc as the interrupted PC: save
// epc/cause/tval, shift the interrupt-enable and privilege
// fields into their "previous" slots, switch to the target privilege,
// and jump to the trap vector (vectored mode offsets interrupts by
// 4*cause).
//
// In direct (bare-metal) mode the trap is fatal instead: it is
// recorded in FatalTrap and no state changes.
func (h *Hart) EnterTrap(t trap.Trap, epc uint64) {
	if h.DirectMode {
		ft := t
		h.FatalTrap = &ft
		return
	}

	h.Stats.TrapsTaken++
	target := h.trapTarget(t)

	if target == priv.Supervisor {
		h.CSRs.Sepc = epc
		h.CSRs.Scause = t.Encode()
		h.CSRs.Stval = t.Value

		status := h.CSRs.Mstatus
		if status&csr.MstatusSIE != 0 {
			status |= csr.MstatusSPIE
		} else {
			status &^= csr.MstatusSPIE
		}
		status &^= csr.MstatusSIE
		if h.Mode == priv.Supervisor {
			status |= csr.MstatusSPP
		} else {
			status &^= csr.MstatusSPP
		}
		h.CSRs.Mstatus = status

		h.Mode = priv.Supervisor
		h.PC = trapVector(h.CSRs.Stvec, t)
		return
	}

	h.CSRs.Mepc = epc
	h.CSRs.Mcause = t.Encode()
	h.CSRs.Mtval = t.Value

	status := h.CSRs.Mstatus
	if status&csr.MstatusMIE != 0 {
		status |= csr.MstatusMPIE
	} else {
		status &^= csr.MstatusMPIE
	}
	status &^= csr.MstatusMIE
	status = (status &^ csr.MstatusMPP) | (uint64(h.Mode) << csr.MstatusMPPShift)
	h.CSRs.Mstatus = status

	h.Mode = priv.Machine
	h.PC = trapVector(h.CSRs.Mtvec, t)
}

// trapVector resolves the handler address from a tvec register:
// direct mode jumps to base; vectored mode offsets interrupts by
// 4*cause.
func trapVector(tvec uint64, t trap.Trap) uint64 {
	base := tvec &^ 3
	if tvec&3 == 1 && t.IsInterrupt {
		return base + 4*uint64(t.Cause)
	}
	return base
}

// DoMRet performs the machine-mode trap return:
// restore MIE from MPIE, restore the privilege from MPP, set MPIE and
// reset MPP to the lowest mode, and jump to mepc.
func (h *Hart) DoMRet() {
	status := h.CSRs.Mstatus
	if status&csr.MstatusMPIE != 0 {
		status |= csr.MstatusMIE
	} else {
		status &^= csr.MstatusMIE
	}
	status |= csr.MstatusMPIE

	h.Mode = priv.Mode((status >> csr.MstatusMPPShift) & csr.MstatusMPPMask)
	status &^= csr.MstatusMPP
	h.CSRs.Mstatus = status

	h.PC = h.CSRs.Mepc
}

// DoSRet performs the supervisor-mode trap return.
func (h *Hart) DoSRet() {
	status := h.CSRs.Mstatus
	if status&csr.MstatusSPIE != 0 {
		status |= csr.MstatusSIE
	} else {
		status &^= csr.MstatusSIE
	}
	status |= csr.MstatusSPIE

	if status&csr.MstatusSPP != 0 {
		h.Mode = priv.Supervisor
	} else {
		h.Mode = priv.User
	}
	status &^= csr.MstatusSPP
	h.CSRs.Mstatus = status

	h.PC = h.CSRs.Sepc
}

// interruptPriority lists interrupt bits highest-priority first:
// external, then software, then timer, machine before supervisor
// within a kind.
var interruptPriority = []struct {
	bit   uint64
	cause trap.Cause
}{
	{csr.MachineExternalBit, trap.MachineExternalInterrupt},
	{csr.SupervisorExternalBit, trap.SupervisorExternalInterrupt},
	{csr.MachineSoftwareBit, trap.MachineSoftwareInterrupt},
	{csr.SupervisorSoftwareBit, trap.SupervisorSoftwareInterrupt},
	{csr.MachineTimerBit, trap.MachineTimerInterrupt},
	{csr.SupervisorTimerBit, trap.SupervisorTimerInterrupt},
}

// CheckInterrupts returns the highest-priority pending-and-enabled
// interrupt that may be taken from the current privilege: the trap's
// destination is supervisor if delegated via mideleg,
// else machine; it is taken when the current privilege is strictly
// lower than the target, or equal with the target's global-interrupt-
// enable set.
func (h *Hart) CheckInterrupts() *trap.Trap {
	mip := h.CSRs.Mip
	mie := h.CSRs.Mie
	mGlobal := h.CSRs.Mstatus&csr.MstatusMIE != 0
	sGlobal := h.CSRs.Mstatus&csr.MstatusSIE != 0

	for _, irq := range interruptPriority {
		if mip&irq.bit == 0 || mie&irq.bit == 0 {
			continue
		}

		target := priv.Machine
		if h.CSRs.Mideleg&(1<<uint(irq.cause)) != 0 {
			target = priv.Supervisor
		}

		take := false
		switch {
		case h.Mode < target:
			take = true
		case h.Mode == target && target == priv.Machine:
			take = mGlobal
		case h.Mode == target && target == priv.Supervisor:
			take = sGlobal
		}
		if take {
			t := trap.NewInterrupt(irq.cause)
			return &t
		}
	}
	return nil
}
