package devices

// PLIC register windows, per the standard platform-level-interrupt-
// controller layout: priorities at 0, pending bits at 0x1000, per-
// context enable bits at 0x2000 (0x80 bytes/context), and per-context
// threshold/claim at 0x200000 (0x1000 bytes/context).
const (
	plicPriorityBase  = 0x0
	plicPendingBase   = 0x1000
	plicEnableBase    = 0x2000
	plicEnableStride  = 0x80
	plicContextBase   = 0x200000
	plicContextStride = 0x1000

	maxSources = 64
	// Context 0 is the machine-mode context, context 1 supervisor, per
	// the default two-context layout for a single hart.
	contextMachine    = 0
	contextSupervisor = 1
	numContexts       = 2
)

// PLIC is the platform-level interrupt controller: per-source priority,
// pending bits, per-context enable bits, per-context threshold, and
// per-context claim.
type PLIC struct {
	base uint64

	priority [maxSources]uint32
	pending  uint64
	claimed  uint64 // bitmap of sources currently claimed (not yet completed)

	enable    [numContexts]uint64
	threshold [numContexts]uint32
}

// NewPLIC creates a PLIC at base.
func NewPLIC(base uint64) *PLIC {
	return &PLIC{base: base}
}

// Name implements bus.Device.
func (p *PLIC) Name() string { return "PLIC" }

// AddressRange implements bus.Device.
func (p *PLIC) AddressRange() (uint64, uint64) { return p.base, 0x400_0000 }

func (p *PLIC) ReadByte(off uint64) uint8  { return uint8(p.ReadWord(off &^ 3) >> ((off & 3) * 8)) }
func (p *PLIC) ReadHalf(off uint64) uint16 { return uint16(p.ReadWord(off &^ 3) >> ((off & 3) * 8)) }

// ReadWord implements bus.Device.
func (p *PLIC) ReadWord(off uint64) uint32 {
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+maxSources*4:
		src := (off - plicPriorityBase) / 4
		return p.priority[src]
	case off == plicPendingBase:
		return uint32(p.pending)
	case off >= plicEnableBase && off < plicEnableBase+numContexts*plicEnableStride:
		ctx := (off - plicEnableBase) / plicEnableStride
		return uint32(p.enable[ctx])
	case off >= plicContextBase:
		ctx, reg := p.contextOf(off)
		if reg == 0 {
			return p.threshold[ctx]
		}
		return p.claim(ctx)
	default:
		return 0
	}
}

func (p *PLIC) ReadDouble(off uint64) uint64 {
	return uint64(p.ReadWord(off)) | uint64(p.ReadWord(off+4))<<32
}

func (p *PLIC) WriteByte(off uint64, val uint8) { p.WriteWord(off, uint32(val)) }
func (p *PLIC) WriteHalf(off uint64, val uint16) { p.WriteWord(off, uint32(val)) }
func (p *PLIC) WriteDouble(off uint64, val uint64) {
	p.WriteWord(off, uint32(val))
	p.WriteWord(off+4, uint32(val>>32))
}

// WriteWord implements bus.Device.
func (p *PLIC) WriteWord(off uint64, val uint32) {
	switch {
	case off >= plicPriorityBase && off < plicPriorityBase+maxSources*4:
		src := (off - plicPriorityBase) / 4
		p.priority[src] = val & 0x7
	case off >= plicEnableBase && off < plicEnableBase+numContexts*plicEnableStride:
		ctx := (off - plicEnableBase) / plicEnableStride
		p.enable[ctx] = uint64(val)
	case off >= plicContextBase:
		ctx, reg := p.contextOf(off)
		if reg == 0 {
			p.threshold[ctx] = val & 0x7
		} else {
			p.complete(ctx, val)
		}
	}
}

func (p *PLIC) contextOf(off uint64) (ctx uint64, reg uint64) {
	rel := off - plicContextBase
	return rel / plicContextStride, (rel % plicContextStride) / 4
}

// claim returns the highest-priority pending source above ctx's
// threshold and clears its pending bit.
func (p *PLIC) claim(ctx uint64) uint32 {
	best, bestPrio := uint32(0), uint32(0)
	for src := uint32(1); src < maxSources; src++ {
		if p.pending&(1<<src) == 0 || p.enable[ctx]&(1<<src) == 0 {
			continue
		}
		prio := p.priority[src]
		if prio <= p.threshold[ctx] {
			continue
		}
		if prio > bestPrio {
			best, bestPrio = src, prio
		}
	}
	if best != 0 {
		p.pending &^= 1 << best
		p.claimed |= 1 << best
	}
	return best
}

// complete signals that the context has finished servicing source val.
func (p *PLIC) complete(ctx uint64, val uint32) {
	p.claimed &^= 1 << val
}

// Tick implements bus.Device; the PLIC has no autonomous behavior of
// its own — it is driven by UpdateIRQs from Bus.Tick.
func (p *PLIC) Tick() bool { return false }

// IRQID implements bus.Device; the PLIC is not itself a PLIC-routed
// interrupt source.
func (p *PLIC) IRQID() (uint32, bool) { return 0, false }

// UpdateIRQs implements bus.PLICDevice: sets the pending bit for every
// currently-asserted device IRQ line not already claimed.
func (p *PLIC) UpdateIRQs(deviceIRQs uint64) {
	p.pending |= deviceIRQs &^ p.claimed
}

// CheckInterrupts implements bus.PLICDevice: reports whether the
// machine or supervisor context has an enabled source pending above
// its threshold.
func (p *PLIC) CheckInterrupts() (mExternal, sExternal bool) {
	return p.contextHasPending(contextMachine), p.contextHasPending(contextSupervisor)
}

func (p *PLIC) contextHasPending(ctx uint64) bool {
	for src := uint32(1); src < maxSources; src++ {
		if p.pending&(1<<src) == 0 || p.enable[ctx]&(1<<src) == 0 {
			continue
		}
		if p.priority[src] > p.threshold[ctx] {
			return true
		}
	}
	return false
}
