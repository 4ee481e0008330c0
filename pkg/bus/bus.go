// Package bus implements the system interconnect that routes physical
// memory accesses to the device whose range contains the address.
package bus

import "sort"

// Device is the interface every bus-attached peripheral implements:
// RAM, UART, virtio-blk, CLINT, PLIC, syscon, and the real-time counter.
type Device interface {
	// Name identifies the device for diagnostics and bus bookkeeping
	// (e.g. "DRAM", "UART0", "CLINT", "PLIC").
	Name() string

	// AddressRange returns the device's base address and size in bytes.
	// Ranges registered on a Bus must not overlap.
	AddressRange() (base, size uint64)

	ReadByte(offset uint64) uint8
	ReadHalf(offset uint64) uint16
	ReadWord(offset uint64) uint32
	ReadDouble(offset uint64) uint64

	WriteByte(offset uint64, val uint8)
	WriteHalf(offset uint64, val uint16)
	WriteWord(offset uint64, val uint32)
	WriteDouble(offset uint64, val uint64)

	// Tick advances the device by one cycle and reports whether it is
	// now requesting an interrupt.
	Tick() bool

	// IRQID returns the interrupt source identifier this device
	// reports to the platform-level interrupt controller, if any.
	IRQID() (id uint32, ok bool)
}

// RawMemory is optionally implemented by a Device that can expose a
// direct byte-slice view of its backing store, for fast-path access.
type RawMemory interface {
	Bytes() []byte
}

// PLICDevice is optionally implemented by the platform interrupt
// controller so the bus can feed it the aggregated device IRQ bitmap.
type PLICDevice interface {
	UpdateIRQs(pending uint64)
	CheckInterrupts() (mExternal, sExternal bool)
}

// PanicDetector is optionally implemented by the UART device so the
// bus can surface the "kernel panic" harness signal.
type PanicDetector interface {
	PanicDetected() bool
}

// entry pairs a registered device with its address range, precomputed
// once at registration time for fast lookup.
type entry struct {
	dev  Device
	base uint64
	end  uint64 // exclusive
}

// Bus routes typed accesses to the device whose range contains the
// physical address.
type Bus struct {
	entries []entry

	// WidthBytes is the bus transfer width used by CalculateTransitTime.
	WidthBytes uint64
	// LatencyCycles is the base per-transaction latency.
	LatencyCycles uint64

	lastHit int
	ramIdx  int // -1 if no RAM device registered
}

// New creates an empty bus with the given transfer width and base
// latency.
func New(widthBytes, latencyCycles uint64) *Bus {
	return &Bus{WidthBytes: widthBytes, LatencyCycles: latencyCycles, ramIdx: -1}
}

// AddDevice registers dev on the bus. Devices are kept sorted by base
// address for lookup.
func (b *Bus) AddDevice(dev Device) {
	base, size := dev.AddressRange()
	b.entries = append(b.entries, entry{dev: dev, base: base, end: base + size})
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].base < b.entries[j].base })

	b.ramIdx = -1
	for i, e := range b.entries {
		if e.dev.Name() == "DRAM" {
			b.ramIdx = i
		}
	}
	b.lastHit = 0
}

// CalculateTransitTime returns the cycles needed to transfer the given
// number of bytes: base_latency + ceil(n / width_bytes).
func (b *Bus) CalculateTransitTime(n uint64) uint64 {
	if b.WidthBytes == 0 {
		return b.LatencyCycles
	}
	transfers := (n + b.WidthBytes - 1) / b.WidthBytes
	return b.LatencyCycles + transfers
}

// find returns the device claiming paddr and the offset within it, or
// ok=false if unclaimed. Tries the last-hit device, then RAM, then a
// linear scan.
func (b *Bus) find(paddr uint64) (dev Device, offset uint64, ok bool) {
	if b.lastHit < len(b.entries) {
		e := b.entries[b.lastHit]
		if paddr >= e.base && paddr < e.end {
			return e.dev, paddr - e.base, true
		}
	}
	if b.ramIdx >= 0 {
		e := b.entries[b.ramIdx]
		if paddr >= e.base && paddr < e.end {
			b.lastHit = b.ramIdx
			return e.dev, paddr - e.base, true
		}
	}
	for i, e := range b.entries {
		if paddr >= e.base && paddr < e.end {
			b.lastHit = i
			return e.dev, paddr - e.base, true
		}
	}
	return nil, 0, false
}

// IsValidAddress reports whether some registered device's range
// contains paddr.
func (b *Bus) IsValidAddress(paddr uint64) bool {
	_, _, ok := b.find(paddr)
	return ok
}

// ReadByte reads one byte at paddr, or 0 if unclaimed.
func (b *Bus) ReadByte(paddr uint64) uint8 {
	if dev, off, ok := b.find(paddr); ok {
		return dev.ReadByte(off)
	}
	return 0
}

// ReadHalf reads two little-endian bytes at paddr, or 0 if unclaimed.
func (b *Bus) ReadHalf(paddr uint64) uint16 {
	if dev, off, ok := b.find(paddr); ok {
		return dev.ReadHalf(off)
	}
	return 0
}

// ReadWord reads four little-endian bytes at paddr, or 0 if unclaimed.
func (b *Bus) ReadWord(paddr uint64) uint32 {
	if dev, off, ok := b.find(paddr); ok {
		return dev.ReadWord(off)
	}
	return 0
}

// ReadDouble reads eight little-endian bytes at paddr, or 0 if
// unclaimed.
func (b *Bus) ReadDouble(paddr uint64) uint64 {
	if dev, off, ok := b.find(paddr); ok {
		return dev.ReadDouble(off)
	}
	return 0
}

// WriteByte writes one byte at paddr; a no-op if unclaimed.
func (b *Bus) WriteByte(paddr uint64, val uint8) {
	if dev, off, ok := b.find(paddr); ok {
		dev.WriteByte(off, val)
	}
}

// WriteHalf writes two little-endian bytes at paddr; a no-op if
// unclaimed.
func (b *Bus) WriteHalf(paddr uint64, val uint16) {
	if dev, off, ok := b.find(paddr); ok {
		dev.WriteHalf(off, val)
	}
}

// WriteWord writes four little-endian bytes at paddr; a no-op if
// unclaimed.
func (b *Bus) WriteWord(paddr uint64, val uint32) {
	if dev, off, ok := b.find(paddr); ok {
		dev.WriteWord(off, val)
	}
}

// WriteDouble writes eight little-endian bytes at paddr; a no-op if
// unclaimed.
func (b *Bus) WriteDouble(paddr uint64, val uint64) {
	if dev, off, ok := b.find(paddr); ok {
		dev.WriteDouble(off, val)
	}
}

// LoadBinary writes data into memory starting at addr, preferring a
// direct device write and falling back to per-byte writes.
func (b *Bus) LoadBinary(data []byte, addr uint64) {
	if dev, off, ok := b.find(addr); ok {
		if raw, ok := dev.(RawMemory); ok {
			bytes := raw.Bytes()
			if off+uint64(len(data)) <= uint64(len(bytes)) {
				copy(bytes[off:], data)
				return
			}
		}
	}
	for i, byte := range data {
		b.WriteByte(addr+uint64(i), byte)
	}
}

// RawRAM returns a direct byte-slice view of the RAM device plus its
// base/end addresses, for fast-path instruction fetch or DMA-style
// access. ok is false if no RAM device is registered.
func (b *Bus) RawRAM() (mem []byte, base, end uint64, ok bool) {
	if b.ramIdx < 0 {
		return nil, 0, 0, false
	}
	e := b.entries[b.ramIdx]
	raw, isRaw := e.dev.(RawMemory)
	if !isRaw {
		return nil, 0, 0, false
	}
	return raw.Bytes(), e.base, e.end, true
}

// Tick advances every device by one cycle and aggregates their
// interrupt requests into the platform-level interrupt controller. It
// returns (timerIRQ, mExternal, sExternal).
func (b *Bus) Tick() (timerIRQ, mExternal, sExternal bool) {
	var pending uint64
	var plic PLICDevice

	for _, e := range b.entries {
		if e.dev.Tick() {
			if id, ok := e.dev.IRQID(); ok && id < 64 {
				pending |= 1 << id
			}
			if e.dev.Name() == "CLINT" {
				timerIRQ = true
			}
		}
		if p, ok := e.dev.(PLICDevice); ok {
			plic = p
		}
	}

	if plic != nil {
		plic.UpdateIRQs(pending)
		mExternal, sExternal = plic.CheckInterrupts()
	}
	return timerIRQ, mExternal, sExternal
}

// CheckKernelPanic reports whether the UART device (if any) detected
// the "kernel panic" harness marker in transmit traffic.
func (b *Bus) CheckKernelPanic() bool {
	for _, e := range b.entries {
		if pd, ok := e.dev.(PanicDetector); ok && pd.PanicDetected() {
			return true
		}
	}
	return false
}
