package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/core"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// settings are the knobs shared by every run.
type settings struct {
	timing    *latency.TimingConfig
	dcache    *cache.Config
	maxCycles uint64
	resume    bool
	logger    *logrus.Logger
}

// result is what one architecture did with the program.
type result struct {
	arch      arch.Architecture
	stats     core.Stats
	dcache    cache.Statistics
	branches  pipeline.BranchPredictorStats
	halted    bool
	exitCode  int32
	interrupt *emu.Interrupt
	state     emu.State
	stdout    string
	err       error
}

// simulate runs prog on a fresh machine under a.
func simulate(a arch.Architecture, prog *loader.Program, s settings) result {
	regs := emu.NewRegFile()
	mem := emu.NewMemory()
	prog.LoadInto(mem)
	prog.Prepare(regs)

	var stdout bytes.Buffer
	syscalls := emu.NewDefaultSyscallHandler(&stdout)
	defer func() {
		if err := syscalls.Close(); err != nil {
			s.logger.WithError(err).Warn("closing program files")
		}
	}()

	opts := []core.Option{
		core.WithLogger(s.logger),
		core.WithSyscallHandler(syscalls),
		core.WithMaxCycles(s.maxCycles),
	}
	if s.timing != nil {
		opts = append(opts, core.WithLatencyTable(latency.NewTableWithConfig(s.timing)))
	}
	if s.dcache != nil {
		opts = append(opts, core.WithDataCache(*s.dcache))
	}
	if s.resume {
		opts = append(opts, core.WithInterruptHandler(func(*emu.Interrupt) emu.Action {
			return emu.Continue
		}))
	}

	c := core.NewCore(a, regs, mem, opts...)
	c.SetEnd(prog.TextEnd())

	err := c.Run()
	if _, ok := emu.AsInterrupt(err); ok {
		err = nil
	}

	return result{
		arch:      a,
		stats:     c.Stats(),
		dcache:    c.DCacheStats(),
		branches:  c.BranchPredictorStats(),
		halted:    c.Halted(),
		exitCode:  c.ExitCode(),
		interrupt: c.Interrupt(),
		state:     regs.Snapshot(),
		stdout:    stdout.String(),
		err:       err,
	}
}

// simulateAll runs prog under every architecture concurrently. Each run has
// its own machine.
func simulateAll(ctx context.Context, archs []arch.Architecture, prog *loader.Program, s settings) ([]result, error) {
	results := make([]result, len(archs))

	g, ctx := errgroup.WithContext(ctx)
	for i, a := range archs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = simulate(a, prog, s)
			return errors.Wrapf(results[i].err, "%s", a)
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// compare lists the register differences of every result against the
// first.
func compare(results []result) []string {
	var diffs []string
	for _, r := range results[1:] {
		for _, d := range results[0].state.Diff(r.state) {
			diffs = append(diffs, fmt.Sprintf("%s vs %s: %s", results[0].arch, r.arch, d))
		}
		if results[0].exitCode != r.exitCode {
			diffs = append(diffs, fmt.Sprintf("%s vs %s: exit code %d != %d",
				results[0].arch, r.arch, results[0].exitCode, r.exitCode))
		}
	}
	return diffs
}

// report prints one run's statistics.
func report(w io.Writer, r result) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Architecture: %s\n", r.arch)
	switch {
	case r.interrupt != nil:
		fmt.Fprintf(w, "Stopped by: %v\n", r.interrupt)
	case r.halted:
		fmt.Fprintf(w, "Exit code: %d\n", r.exitCode)
	default:
		fmt.Fprintf(w, "Ran off the end at 0x%08x\n", r.state.PC)
	}
	fmt.Fprintf(w, "Total Instructions: %d\n", r.stats.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", r.stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", r.stats.CPI())
	if r.dcache.Reads+r.dcache.Writes > 0 {
		fmt.Fprintf(w, "L1D: %d hits, %d misses (%.1f%% hit rate)\n",
			r.dcache.Hits, r.dcache.Misses, 100*r.dcache.HitRate())
	}

	if r.arch != arch.Pipelined {
		return
	}

	total := r.stats.Cycles
	if total == 0 {
		total = 1
	}
	pct := func(n uint64) float64 { return 100.0 * float64(n) / float64(total) }

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Stalls:\n")
	fmt.Fprintf(w, "  RAW:        %4d cycles (%5.1f%%)\n", r.stats.RAWStalls, pct(r.stats.RAWStalls))
	fmt.Fprintf(w, "  WAW:        %4d cycles (%5.1f%%)\n", r.stats.WAWStalls, pct(r.stats.WAWStalls))
	fmt.Fprintf(w, "  Structural: %4d cycles (%5.1f%%)\n", r.stats.StructuralStalls, pct(r.stats.StructuralStalls))
	fmt.Fprintf(w, "  Memory:     %4d cycles (%5.1f%%)\n", r.stats.MemStalls, pct(r.stats.MemStalls))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Flushes:    %d\n", r.stats.Flushes)
	fmt.Fprintf(w, "  Squashed:   %d\n", r.stats.Squashed)
	fmt.Fprintf(w, "  Interrupts: %d\n", r.stats.Interrupts)
	if r.branches.Predictions > 0 {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "Branch Predictor:\n")
		fmt.Fprintf(w, "  Branches:   %d\n", r.branches.Predictions)
		fmt.Fprintf(w, "  Missed:     %d\n", r.branches.Mispredictions)
		fmt.Fprintf(w, "  Accuracy:   %.1f%%\n", r.branches.Accuracy())
		fmt.Fprintf(w, "  BTB hits:   %.1f%%\n", r.branches.BTBHitRate())
	}
}
