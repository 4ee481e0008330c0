// Package devices implements the standard bus-attached peripherals
// of the platform: RAM, UART, CLINT, PLIC, the system
// controller, virtio-blk, and the real-time counter.
package devices

import "encoding/binary"

// RAM is a flat byte-addressable memory device. It never requests an
// interrupt.
type RAM struct {
	base uint64
	mem  []byte
}

// NewRAM creates a RAM device of the given size at base.
func NewRAM(base uint64, size uint64) *RAM {
	return &RAM{base: base, mem: make([]byte, size)}
}

// Name implements bus.Device.
func (r *RAM) Name() string { return "DRAM" }

// AddressRange implements bus.Device.
func (r *RAM) AddressRange() (uint64, uint64) { return r.base, uint64(len(r.mem)) }

// Bytes implements bus.RawMemory.
func (r *RAM) Bytes() []byte { return r.mem }

// ReadByte implements bus.Device.
func (r *RAM) ReadByte(off uint64) uint8 {
	if off >= uint64(len(r.mem)) {
		return 0
	}
	return r.mem[off]
}

// ReadHalf implements bus.Device.
func (r *RAM) ReadHalf(off uint64) uint16 {
	if off+2 > uint64(len(r.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.mem[off:])
}

// ReadWord implements bus.Device.
func (r *RAM) ReadWord(off uint64) uint32 {
	if off+4 > uint64(len(r.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.mem[off:])
}

// ReadDouble implements bus.Device.
func (r *RAM) ReadDouble(off uint64) uint64 {
	if off+8 > uint64(len(r.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.mem[off:])
}

// WriteByte implements bus.Device.
func (r *RAM) WriteByte(off uint64, val uint8) {
	if off < uint64(len(r.mem)) {
		r.mem[off] = val
	}
}

// WriteHalf implements bus.Device.
func (r *RAM) WriteHalf(off uint64, val uint16) {
	if off+2 <= uint64(len(r.mem)) {
		binary.LittleEndian.PutUint16(r.mem[off:], val)
	}
}

// WriteWord implements bus.Device.
func (r *RAM) WriteWord(off uint64, val uint32) {
	if off+4 <= uint64(len(r.mem)) {
		binary.LittleEndian.PutUint32(r.mem[off:], val)
	}
}

// WriteDouble implements bus.Device.
func (r *RAM) WriteDouble(off uint64, val uint64) {
	if off+8 <= uint64(len(r.mem)) {
		binary.LittleEndian.PutUint64(r.mem[off:], val)
	}
}

// Tick implements bus.Device; RAM has no interrupt behavior.
func (r *RAM) Tick() bool { return false }

// IRQID implements bus.Device; RAM has no interrupt source.
func (r *RAM) IRQID() (uint32, bool) { return 0, false }
