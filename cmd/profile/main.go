// Package main provides a profiling wrapper for mipsim to identify
// performance bottlenecks in the timing models.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/timing/core"
)

var (
	archName   = flag.String("arch", "pipelined", "Architecture: single-cycle, multi-cycle or pipelined")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxCycles  = flag.Uint64("max-cycles", 10_000_000, "max cycles to simulate (0 = unlimited)")
)

// sliceCycles is how many cycles run between wall-clock checks.
const sliceCycles = 100_000

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.elf|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	a, err := arch.ParseArchitecture(*archName)
	if err != nil {
		logrus.WithError(err).Fatal("bad -arch")
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logrus.WithError(err).Fatal("error creating CPU profile")
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			logrus.WithError(err).Fatal("error starting CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)
	prog, err := loader.LoadFile(programPath)
	if err != nil {
		logrus.WithError(err).Fatal("error loading program")
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	start := time.Now()
	stats, exitCode, err := profile(a, prog, time.Now().Add(*duration))
	elapsed := time.Since(start)
	if err != nil {
		logrus.WithError(err).Warn("simulation stopped")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			logrus.WithError(err).Fatal("error creating memory profile")
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			logrus.WithError(err).Error("error writing memory profile")
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Architecture: %s\n", a)
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Instructions executed: %d\n", stats.Instructions)
	fmt.Printf("Cycles simulated: %d\n", stats.Cycles)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(stats.Instructions)/secs)
		fmt.Printf("Cycles/second: %.0f\n", float64(stats.Cycles)/secs)
	}
}

// profile runs prog until it halts, the cycle budget runs out or the
// deadline passes.
func profile(a arch.Architecture, prog *loader.Program, deadline time.Time) (core.Stats, int32, error) {
	regs := emu.NewRegFile()
	mem := emu.NewMemory()
	prog.LoadInto(mem)
	prog.Prepare(regs)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	c := core.NewCore(a, regs, mem,
		core.WithLogger(logger),
		core.WithSyscallHandler(emu.NewDefaultSyscallHandler(io.Discard)),
	)
	c.SetEnd(prog.TextEnd())

	var ran uint64
	for !c.Halted() {
		n := uint64(sliceCycles)
		if *maxCycles > 0 {
			if ran >= *maxCycles {
				return c.Stats(), c.ExitCode(), errors.Errorf("cycle limit %d reached", *maxCycles)
			}
			n = min(n, *maxCycles-ran)
		}
		if time.Now().After(deadline) {
			return c.Stats(), c.ExitCode(), errors.Errorf("timeout after %v", *duration)
		}

		if !c.RunCycles(n) {
			break
		}
		ran += n
	}

	if intr := c.Interrupt(); intr != nil {
		return c.Stats(), c.ExitCode(), intr
	}
	return c.Stats(), c.ExitCode(), nil
}
