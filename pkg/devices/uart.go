package devices

import (
	"bufio"
	"io"
	"strings"
)

// 16550 register offsets.
const (
	regRBR = 0 // Receiver Buffer Register (read) / divisor latch low
	regTHR = 0 // Transmitter Holding Register (write) / divisor latch low
	regIER = 1 // Interrupt Enable Register / divisor latch high
	regIIR = 2 // Interrupt Identification Register (read)
	regFCR = 2 // FIFO Control Register (write)
	regLCR = 3 // Line Control Register
	regMCR = 4 // Modem Control Register
	regLSR = 5 // Line Status Register
	regMSR = 6 // Modem Status Register
	regSCR = 7 // Scratch Register
)

const (
	iirNoInterrupt uint8 = 0x01
	iirTHRE        uint8 = 0x02
	iirRDA         uint8 = 0x04

	lsrDataReady uint8 = 0x01
	lsrTHRE      uint8 = 0x20
	lsrTEMT      uint8 = 0x40
	lsrDefault   uint8 = lsrTHRE | lsrTEMT

	ierRDA  uint8 = 0x01
	ierTHRE uint8 = 0x02

	txFlushThreshold = 4096
)

// panicMarker is the case-insensitive substring the UART scans
// transmit traffic for, so the harness can detect fatal guest-kernel
// output.
const panicMarker = "kernel panic"

// UART is a 16550-compatible serial console: offsets 0-7, transmit
// buffered and flushed on newline/threshold, receive fed from an
// asynchronous queue, and a panic-string scanner over transmit bytes.
type UART struct {
	base uint64

	out *bufio.Writer
	in  chan uint8 // receive queue, fed by the producer goroutine

	ier uint8
	lcr uint8
	mcr uint8
	scr uint8

	rxQueue []uint8
	txBuf   []byte

	thrEmptyPending bool

	panicState int
	panicSeen  bool
}

// NewUART creates a UART at base writing transmit bytes to out. Call
// AttachInput to wire a byte-producing goroutine for receive traffic.
func NewUART(base uint64, out io.Writer) *UART {
	return &UART{
		base:            base,
		out:             bufio.NewWriter(out),
		in:              make(chan uint8, 256),
		thrEmptyPending: true,
	}
}

// AttachConsole redirects transmit traffic to a TCP-attached console
// and feeds its bytes into the receive queue, replacing the writer the
// UART was constructed with.
func (u *UART) AttachConsole(c *Console) {
	u.out = bufio.NewWriter(c)
	u.AttachInput(c)
}

// AttachInput starts a goroutine draining r one byte at a time into the
// UART's receive queue, the only cross-thread channel in the system.
func (u *UART) AttachInput(r io.Reader) {
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n == 1 {
				select {
				case u.in <- buf[0]:
				default:
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

// Name implements bus.Device.
func (u *UART) Name() string { return "UART0" }

// AddressRange implements bus.Device. The register file is 8 bytes;
// the window is the 256-byte region the memory map reserves.
func (u *UART) AddressRange() (uint64, uint64) { return u.base, 0x100 }

// ReadByte implements bus.Device.
func (u *UART) ReadByte(off uint64) uint8 {
	switch off {
	case regRBR:
		if len(u.rxQueue) == 0 {
			return 0
		}
		b := u.rxQueue[0]
		u.rxQueue = u.rxQueue[1:]
		return b
	case regIER:
		return u.ier
	case regIIR:
		return u.interruptID()
	case regLCR:
		return u.lcr
	case regMCR:
		return u.mcr
	case regLSR:
		return u.lineStatus()
	case regMSR:
		return 0
	case regSCR:
		return u.scr
	default:
		return 0
	}
}

// ReadHalf/ReadWord/ReadDouble implement bus.Device by returning the
// single register byte at off, zero-extended (the UART is only ever
// accessed a byte at a time in practice).
func (u *UART) ReadHalf(off uint64) uint16   { return uint16(u.ReadByte(off)) }
func (u *UART) ReadWord(off uint64) uint32   { return uint32(u.ReadByte(off)) }
func (u *UART) ReadDouble(off uint64) uint64 { return uint64(u.ReadByte(off)) }

// WriteByte implements bus.Device.
func (u *UART) WriteByte(off uint64, val uint8) {
	switch off {
	case regTHR:
		u.transmit(val)
	case regIER:
		u.ier = val & (ierRDA | ierTHRE)
	case regFCR:
		// FIFO control accepted but not separately modeled.
	case regLCR:
		u.lcr = val
	case regMCR:
		u.mcr = val
	case regSCR:
		u.scr = val
	}
}

func (u *UART) WriteHalf(off uint64, val uint16) { u.WriteByte(off, uint8(val)) }
func (u *UART) WriteWord(off uint64, val uint32) { u.WriteByte(off, uint8(val)) }
func (u *UART) WriteDouble(off uint64, val uint64) { u.WriteByte(off, uint8(val)) }

func (u *UART) transmit(b uint8) {
	u.txBuf = append(u.txBuf, b)
	u.scanForPanic(b)
	if b == '\n' || len(u.txBuf) >= txFlushThreshold {
		u.out.Write(u.txBuf)
		u.out.Flush()
		u.txBuf = u.txBuf[:0]
	}
	u.thrEmptyPending = true
}

func (u *UART) scanForPanic(b uint8) {
	if u.panicSeen {
		return
	}
	c := b
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	if c == panicMarker[u.panicState] {
		u.panicState++
		if u.panicState == len(panicMarker) {
			u.panicSeen = true
		}
	} else if c == panicMarker[0] {
		u.panicState = 1
	} else {
		u.panicState = 0
	}
}

// PanicDetected implements bus.PanicDetector.
func (u *UART) PanicDetected() bool { return u.panicSeen }

func (u *UART) lineStatus() uint8 {
	s := lsrDefault
	if len(u.rxQueue) > 0 {
		s |= lsrDataReady
	}
	return s
}

// interruptID reports the highest-priority pending condition:
// receiver-data-available outranks transmitter-empty.
func (u *UART) interruptID() uint8 {
	if u.ier&ierRDA != 0 && len(u.rxQueue) > 0 {
		return iirRDA
	}
	if u.ier&ierTHRE != 0 && u.thrEmptyPending {
		u.thrEmptyPending = false
		return iirTHRE
	}
	return iirNoInterrupt
}

// Tick implements bus.Device: drains queued input bytes and reports
// whether an enabled interrupt condition is pending.
func (u *UART) Tick() bool {
	for {
		select {
		case b := <-u.in:
			u.rxQueue = append(u.rxQueue, b)
		default:
			goto drained
		}
	}
drained:
	return u.interruptID() != iirNoInterrupt
}

// IRQID implements bus.Device.
func (u *UART) IRQID() (uint32, bool) { return 10, true }

// caseInsensitiveContains reports whether s contains substr, ignoring
// case; used only by tests to cross-check the streaming scanner.
func caseInsensitiveContains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
