// Package vm wires the hart, bus, and device family into a runnable
// system and implements the invocation modes: flat
// binary execution and kernel boot.
package vm

import (
	"errors"
	"io"

	"github.com/willmccallion/rvsim-sub001/pkg/bpred"
	"github.com/willmccallion/rvsim-sub001/pkg/bus"
	"github.com/willmccallion/rvsim-sub001/pkg/cache"
	"github.com/willmccallion/rvsim-sub001/pkg/csr"
	"github.com/willmccallion/rvsim-sub001/pkg/devices"
	"github.com/willmccallion/rvsim-sub001/pkg/mmu"
	"github.com/willmccallion/rvsim-sub001/pkg/pipeline"
	"github.com/willmccallion/rvsim-sub001/pkg/priv"
)

// Default physical memory map.
const (
	SysconBase = 0x0010_0000
	CLINTBase  = 0x0200_0000
	PLICBase   = 0x0C00_0000
	UARTBase   = 0x1000_0000
	VirtioBase = 0x1000_1000
	RTCBase    = 0x1010_1000
	RAMBase    = 0x8000_0000

	// DTBOffset is where a device-tree blob lands relative to the RAM
	// base in kernel-boot mode.
	DTBOffset = 0x220_0000
)

// mretEncoding is the raw instruction written as the kernel-boot shim.
const mretEncoding = 0x3020_0073

// ErrNoRAM is returned when a load targets an address outside RAM.
var ErrNoRAM = errors.New("vm: image does not fit in RAM")

// Config parameterizes a System. Zero values select the defaults
// below.
type Config struct {
	RAMSize uint64

	Width           int
	ROBSize         int
	StoreBufferSize int

	Predictor bpred.Kind
	BTBSize   int
	RASSize   int

	L1I cache.Config
	L1D cache.Config
	L2  cache.Config
	Mem cache.MemConfig

	BusWidthBytes   uint64
	BusLatency      uint64
	CLINTDivisor    uint64
	ITLBSize        int
	DTLBSize        int

	// ConsoleOut receives UART transmit traffic; nil discards it.
	ConsoleOut io.Writer

	// Disk backs the virtio block device; nil means no disk.
	Disk []byte
}

func (c *Config) applyDefaults() {
	if c.RAMSize == 0 {
		c.RAMSize = 128 << 20
	}
	if c.Width <= 0 {
		c.Width = 2
	}
	if c.ROBSize <= 0 {
		c.ROBSize = 32
	}
	if c.StoreBufferSize <= 0 {
		c.StoreBufferSize = 16
	}
	if c.BTBSize <= 0 {
		c.BTBSize = 1024
	}
	if c.RASSize <= 0 {
		c.RASSize = 16
	}
	if c.BusWidthBytes == 0 {
		c.BusWidthBytes = 8
	}
	if c.CLINTDivisor == 0 {
		c.CLINTDivisor = 8
	}
	if c.ITLBSize <= 0 {
		c.ITLBSize = 32
	}
	if c.DTLBSize <= 0 {
		c.DTLBSize = 64
	}
}

// System owns a single hart, its pipeline, and the device complex
// behind the bus.
type System struct {
	Hart *pipeline.Hart
	Pipe *pipeline.Pipeline
	Bus  *bus.Bus

	Exit  *devices.ExitRequest
	UART  *devices.UART
	CLINT *devices.CLINT
	PLIC  *devices.PLIC

	ramBase uint64
	ramSize uint64
}

// New builds a system from cfg with the default memory map.
func New(cfg Config) *System {
	cfg.applyDefaults()

	if cfg.ConsoleOut == nil {
		cfg.ConsoleOut = io.Discard
	}

	b := bus.New(cfg.BusWidthBytes, cfg.BusLatency)
	exit := devices.NewExitRequest()

	ram := devices.NewRAM(RAMBase, cfg.RAMSize)
	uart := devices.NewUART(UARTBase, cfg.ConsoleOut)
	clint := devices.NewCLINT(CLINTBase, cfg.CLINTDivisor)
	plic := devices.NewPLIC(PLICBase)
	syscon := devices.NewSystemController(SysconBase, exit)
	rtc := devices.NewRTC(RTCBase)

	b.AddDevice(ram)
	b.AddDevice(uart)
	b.AddDevice(clint)
	b.AddDevice(plic)
	b.AddDevice(syscon)
	b.AddDevice(rtc)
	if cfg.Disk != nil {
		b.AddDevice(devices.NewVirtioBlock(VirtioBase, cfg.Disk))
	}

	var l1i, l1d, l2 *cache.Cache
	if cfg.L1I.Enabled {
		l1i = cache.New(cfg.L1I)
	}
	if cfg.L1D.Enabled {
		l1d = cache.New(cfg.L1D)
	}
	if cfg.L2.Enabled {
		l2 = cache.New(cfg.L2)
	}

	// The DRAM controller only participates when asked for (or when a
	// cache hierarchy sits in front of it); a bare bus-latency model
	// is the default.
	var memctl *cache.MemController
	if cfg.Mem != (cache.MemConfig{}) || l2 != nil {
		memctl = cache.NewMemController(cfg.Mem)
	}

	m := mmu.New(cfg.ITLBSize, cfg.DTLBSize)
	h := pipeline.NewHart(b, m, l1i, l1d, l2, memctl)
	h.Pred = bpred.New(cfg.Predictor, cfg.BTBSize, cfg.RASSize)

	fe := pipeline.NewFrontend(cfg.Width)
	pipe := pipeline.NewPipeline(pipeline.Config{
		Width:           cfg.Width,
		ROBSize:         cfg.ROBSize,
		StoreBufferSize: cfg.StoreBufferSize,
	}, fe)

	return &System{
		Hart:    h,
		Pipe:    pipe,
		Bus:     b,
		Exit:    exit,
		UART:    uart,
		CLINT:   clint,
		PLIC:    plic,
		ramBase: RAMBase,
		ramSize: cfg.RAMSize,
	}
}

// LoadFlatBinary places data at the RAM base and arranges a direct
// (bare-metal) run: machine mode, any trap is fatal.
func (s *System) LoadFlatBinary(data []byte) error {
	if uint64(len(data)) > s.ramSize {
		return ErrNoRAM
	}
	s.Bus.LoadBinary(data, s.ramBase)
	s.Hart.PC = s.ramBase
	s.Hart.Mode = priv.Machine
	s.Hart.DirectMode = true
	return nil
}

// BootKernel loads a kernel image at RAM_BASE+offset (and an optional
// device-tree blob at RAM_BASE+DTBOffset), then arranges the
// supervisor handoff: an MRET shim at the machine-mode start address
// with mepc pointing at the kernel entry, previous-privilege set to
// supervisor, a0 = hart id 0, and a1 = DTB address.
func (s *System) BootKernel(kernel []byte, kernelOffset uint64, dtb []byte) error {
	entry := s.ramBase + kernelOffset
	if kernelOffset+uint64(len(kernel)) > s.ramSize {
		return ErrNoRAM
	}
	s.Bus.LoadBinary(kernel, entry)

	var dtbAddr uint64
	if dtb != nil {
		dtbAddr = s.ramBase + DTBOffset
		if DTBOffset+uint64(len(dtb)) > s.ramSize {
			return ErrNoRAM
		}
		s.Bus.LoadBinary(dtb, dtbAddr)
	}

	h := s.Hart

	// Open all physical memory to supervisor/user before the handoff,
	// the way machine firmware does: PMP entry 0 as an all-covering
	// NAPOT region with full permissions.
	h.CSRs.Pmpaddr[0] = ^uint64(0) >> 10
	h.CSRs.Pmpcfg[0] = 0x1F // NAPOT | X | W | R
	h.MMU.SyncPMP(h.CSRs)

	s.Bus.WriteWord(s.ramBase, mretEncoding)
	h.CSRs.Mepc = entry
	h.CSRs.Mstatus = (h.CSRs.Mstatus &^ csr.MstatusMPP) |
		(uint64(priv.Supervisor) << csr.MstatusMPPShift)
	h.SetReg(10, 0)       // a0 = hart id
	h.SetReg(11, dtbAddr) // a1 = DTB
	h.PC = s.ramBase
	h.Mode = priv.Machine
	h.DirectMode = false
	return nil
}

// Step advances the system by one cycle: devices tick once, interrupt
// lines latch into mip, and the pipeline advances.
func (s *System) Step() {
	h := s.Hart
	h.Stats.Cycles++
	h.CSRs.CycleCount++
	h.CSRs.TimeValue++
	h.AccountModeCycle()

	_, mExt, sExt := s.Bus.Tick()
	h.UpdateInterruptLines(
		s.CLINT.MachineTimerPending(),
		s.CLINT.SoftwarePending(),
		mExt, sExt,
	)

	s.Pipe.Tick(h)
}

// Run advances cycles until a termination condition:
// a device-published exit value, the UART panic detector, a fatal trap
// in direct mode, or the cycle budget (0 means unbounded). It returns
// the process exit code.
func (s *System) Run(maxCycles uint64) int {
	for {
		if s.Exit.Pending() {
			return s.Exit.Code()
		}
		if s.Bus.CheckKernelPanic() {
			return 1
		}
		if s.Hart.FatalTrap != nil {
			return 1
		}
		if maxCycles > 0 && s.Hart.Stats.Cycles >= maxCycles {
			return 0
		}
		s.Step()
	}
}
