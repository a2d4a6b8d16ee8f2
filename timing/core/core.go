// Package core provides the CPU core model.
// It picks the timing loop for an architecture and gives every loop the
// same interface.
package core

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// RAWStalls counts cycles lost waiting for a source value.
	RAWStalls uint64
	// WAWStalls counts cycles lost waiting for a destination.
	WAWStalls uint64
	// StructuralStalls counts cycles lost waiting for a free ALU.
	StructuralStalls uint64
	// MemStalls counts extra memory stage cycles.
	MemStalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Squashed is the number of instructions discarded by flushes.
	Squashed uint64
	// Interrupts is the number of interrupts delivered.
	Interrupts uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

type config struct {
	set         *insts.Set
	latency     *latency.Table
	dcache      *cache.Config
	syscalls    emu.SyscallHandler
	onInterrupt emu.InterruptHandler
	logger      *logrus.Logger
	maxCycles   uint64
}

// Option configures a Core.
type Option func(*config)

// WithInstructionSet sets the instruction set used to decode fetched words.
func WithInstructionSet(set *insts.Set) Option {
	return func(c *config) { c.set = set }
}

// WithLatencyTable sets the ALU table. Only the pipelined loop uses it.
func WithLatencyTable(table *latency.Table) Option {
	return func(c *config) { c.latency = table }
}

// WithDataCache places an L1 data cache in front of memory.
func WithDataCache(cfg cache.Config) Option {
	return func(c *config) { c.dcache = &cfg }
}

// WithSyscallHandler sets the syscall handler.
func WithSyscallHandler(h emu.SyscallHandler) Option {
	return func(c *config) { c.syscalls = h }
}

// WithInterruptHandler sets the host's interrupt policy. The default halts.
func WithInterruptHandler(h emu.InterruptHandler) Option {
	return func(c *config) { c.onInterrupt = h }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxCycles bounds Run. Zero means no bound.
func WithMaxCycles(n uint64) Option {
	return func(c *config) { c.maxCycles = n }
}

// Core represents a CPU core model running one of the architectures.
type Core struct {
	// Pipeline is the underlying pipeline, nil unless the architecture is
	// Pipelined.
	Pipeline *pipeline.Pipeline

	// Sequential is the underlying one-at-a-time loop, nil for Pipelined.
	Sequential *Sequential

	arch    arch.Architecture
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(a arch.Architecture, regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Core {
	cfg := &config{onInterrupt: emu.HaltOnInterrupt}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.set == nil {
		cfg.set = insts.NewDefaultSet()
	}
	if cfg.syscalls == nil {
		cfg.syscalls = emu.NewDefaultSyscallHandler(os.Stdout)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.New()
		cfg.logger.SetLevel(logrus.WarnLevel)
	}

	c := &Core{arch: a, regFile: regFile, memory: memory}
	if a != arch.Pipelined {
		c.Sequential = newSequential(a, regFile, memory, cfg)
		return c
	}

	popts := []pipeline.PipelineOption{
		pipeline.WithInstructionSet(cfg.set),
		pipeline.WithSyscallHandler(cfg.syscalls),
		pipeline.WithInterruptHandler(cfg.onInterrupt),
		pipeline.WithLogger(cfg.logger),
		pipeline.WithMaxCycles(cfg.maxCycles),
	}
	if cfg.latency != nil {
		popts = append(popts, pipeline.WithLatencyTable(cfg.latency))
	}
	if cfg.dcache != nil {
		popts = append(popts, pipeline.WithDataCache(*cfg.dcache))
	}
	c.Pipeline = pipeline.NewPipeline(regFile, memory, popts...)
	return c
}

// Architecture returns the execution strategy the core runs.
func (c *Core) Architecture() arch.Architecture {
	return c.arch
}

// LoadProgram writes words at addr and points the core at them.
func (c *Core) LoadProgram(addr uint32, words []uint32) {
	c.memory.LoadWords(addr, words)
	c.SetPC(addr)
	c.SetEnd(addr + uint32(4*len(words)))
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.regFile.SetPC(pc)
}

// SetEnd sets the address at which fetch stops.
func (c *Core) SetEnd(end uint32) {
	if c.Pipeline != nil {
		c.Pipeline.SetEnd(end)
		return
	}
	c.Sequential.SetEnd(end)
}

// Tick executes one cycle.
func (c *Core) Tick() {
	if c.Pipeline != nil {
		c.Pipeline.Tick()
		return
	}
	c.Sequential.Tick()
}

// Halted returns true if the core has halted (e.g., due to exit syscall).
func (c *Core) Halted() bool {
	if c.Pipeline != nil {
		return c.Pipeline.Halted()
	}
	return c.Sequential.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int32 {
	if c.Pipeline != nil {
		return c.Pipeline.ExitCode()
	}
	return c.Sequential.ExitCode()
}

// Interrupt returns the interrupt that halted the core, if any.
func (c *Core) Interrupt() *emu.Interrupt {
	if c.Pipeline != nil {
		return c.Pipeline.Interrupt()
	}
	return c.Sequential.Interrupt()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	if c.Pipeline == nil {
		return c.Sequential.Stats()
	}

	ps := c.Pipeline.Stats()
	return Stats{
		Cycles:           ps.Cycles,
		Instructions:     ps.Instructions,
		RAWStalls:        ps.RAWStalls,
		WAWStalls:        ps.WAWStalls,
		StructuralStalls: ps.StructuralStalls,
		MemStalls:        ps.MemStalls,
		Flushes:          ps.Flushes,
		Squashed:         ps.Squashed,
		Interrupts:       ps.Interrupts,
	}
}

// DCacheStats returns data cache statistics, zero without a data cache.
func (c *Core) DCacheStats() cache.Statistics {
	if c.Pipeline != nil {
		return c.Pipeline.DCacheStats()
	}
	return c.Sequential.DCacheStats()
}

// BranchPredictorStats returns the pipeline's branch predictor
// statistics. The sequential cores do not predict.
func (c *Core) BranchPredictorStats() pipeline.BranchPredictorStats {
	if c.Pipeline == nil {
		return pipeline.BranchPredictorStats{}
	}
	return c.Pipeline.BranchPredictorStats()
}

// Run executes the core until it halts or runs past the end of the
// program. It returns the interrupt that halted it, if any.
func (c *Core) Run() error {
	if c.Pipeline != nil {
		return c.Pipeline.Run()
	}
	return c.Sequential.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	if c.Pipeline != nil {
		return c.Pipeline.RunCycles(cycles)
	}
	return c.Sequential.RunCycles(cycles)
}

// Reset clears all in-flight state and statistics.
func (c *Core) Reset() {
	if c.Pipeline != nil {
		c.Pipeline.Reset()
		return
	}
	c.Sequential.Reset()
}
