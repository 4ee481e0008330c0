// Command rvsim is the simulator entry point, exposing the three
// invocation modes as subcommands: run (flat binary),
// boot (kernel image), and script (external configuration frontend).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/willmccallion/rvsim-sub001/pkg/bpred"
	"github.com/willmccallion/rvsim-sub001/pkg/cache"
	"github.com/willmccallion/rvsim-sub001/pkg/devices"
	"github.com/willmccallion/rvsim-sub001/pkg/vm"
)

var (
	flagRAMSize   uint64
	flagCycles    uint64
	flagWidth     int
	flagPredictor string
	flagCaches    bool
	flagStats     bool
	flagConsole   bool
	flagDisk      string
	flagDTB       string
	flagKernelOff uint64
)

func main() {
	root := &cobra.Command{
		Use:   "rvsim",
		Short: "Cycle-accurate RV64GC simulator",
	}
	root.PersistentFlags().Uint64Var(&flagRAMSize, "ram-size", 128<<20, "RAM size in bytes")
	root.PersistentFlags().Uint64Var(&flagCycles, "cycles", 0, "cycle budget (0 = unbounded)")
	root.PersistentFlags().IntVar(&flagWidth, "width", 2, "pipeline width")
	root.PersistentFlags().StringVar(&flagPredictor, "predictor", "gshare",
		"branch predictor (static|gshare|tournament|tage|perceptron)")
	root.PersistentFlags().BoolVar(&flagCaches, "caches", true, "enable the cache hierarchy")
	root.PersistentFlags().BoolVar(&flagStats, "stats", false, "print statistics on exit")
	root.PersistentFlags().BoolVar(&flagConsole, "console", false,
		"wait for a TCP console to attach instead of using stdio")

	runCmd := &cobra.Command{
		Use:   "run <binary>",
		Short: "Execute a flat binary at the RAM base (bare metal)",
		Args:  cobra.ExactArgs(1),
		RunE:  runFlat,
	}

	bootCmd := &cobra.Command{
		Use:   "boot <kernel>",
		Short: "Boot a kernel image in supervisor mode",
		Args:  cobra.ExactArgs(1),
		RunE:  runBoot,
	}
	bootCmd.Flags().StringVar(&flagDisk, "disk", "", "disk image for the virtio block device")
	bootCmd.Flags().StringVar(&flagDTB, "dtb", "", "device-tree blob")
	bootCmd.Flags().Uint64Var(&flagKernelOff, "kernel-offset", 0x20_0000, "kernel load offset from the RAM base")

	scriptCmd := &cobra.Command{
		Use:   "script <file>",
		Short: "Run a configuration script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("configuration scripting is provided by the external frontend, not this binary")
		},
	}

	root.AddCommand(runCmd, bootCmd, scriptCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildConfig() vm.Config {
	cfg := vm.Config{
		RAMSize:    flagRAMSize,
		Width:      flagWidth,
		Predictor:  parsePredictor(flagPredictor),
		ConsoleOut: os.Stdout,
	}
	if flagCaches {
		cfg.L1I = cache.Config{SizeBytes: 32 << 10, LineBytes: 64, Ways: 4, Enabled: true}
		cfg.L1D = cache.Config{SizeBytes: 32 << 10, LineBytes: 64, Ways: 4, Enabled: true,
			Prefetcher: cache.PrefetchNextLine, PrefetchDegree: 1}
		cfg.L2 = cache.Config{SizeBytes: 512 << 10, LineBytes: 64, Ways: 8, Enabled: true}
	}
	return cfg
}

func parsePredictor(name string) bpred.Kind {
	switch name {
	case "static":
		return bpred.KindStatic
	case "tournament":
		return bpred.KindTournament
	case "tage":
		return bpred.KindTAGE
	case "perceptron":
		return bpred.KindPerceptron
	default:
		return bpred.KindGshare
	}
}

func runFlat(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	sys := vm.New(buildConfig())
	if err := attachIO(sys); err != nil {
		return err
	}
	if err := sys.LoadFlatBinary(data); err != nil {
		return err
	}

	code := sys.Run(flagCycles)
	if sys.Hart.FatalTrap != nil {
		sys.DumpState(os.Stderr)
	}
	finish(sys, code)
	return nil
}

func runBoot(cmd *cobra.Command, args []string) error {
	kernel, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	cfg := buildConfig()
	if flagDisk != "" {
		disk, err := os.ReadFile(flagDisk)
		if err != nil {
			return err
		}
		cfg.Disk = disk
	}
	var dtb []byte
	if flagDTB != "" {
		if dtb, err = os.ReadFile(flagDTB); err != nil {
			return err
		}
	}

	sys := vm.New(cfg)
	if err := attachIO(sys); err != nil {
		return err
	}
	if err := sys.BootKernel(kernel, flagKernelOff, dtb); err != nil {
		return err
	}

	finish(sys, sys.Run(flagCycles))
	return nil
}

// attachIO wires the UART to the host: stdio by default, or a
// TCP-attached console when --console is set.
func attachIO(sys *vm.System) error {
	if !flagConsole {
		sys.UART.AttachInput(os.Stdin)
		return nil
	}
	l, err := devices.ListenConsole()
	if err != nil {
		return err
	}
	c, err := l.Accept()
	if err != nil {
		return err
	}
	sys.UART.AttachConsole(c)
	return nil
}

func finish(sys *vm.System, code int) {
	if flagStats {
		sys.DumpStats(os.Stderr)
	}
	os.Exit(code)
}
