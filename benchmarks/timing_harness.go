// Package benchmarks provides timing microbenchmarks for comparing the
// mipsim timing models.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/core"
	"github.com/sarchlab/mipsim/timing/latency"
)

// BenchmarkResult holds the timing results for one benchmark on one
// architecture.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Architecture is the timing model that ran it
	Architecture string `json:"architecture"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	RAWStalls        uint64 `json:"raw_stalls"`
	WAWStalls        uint64 `json:"waw_stalls"`
	StructuralStalls uint64 `json:"structural_stalls"`

	// MemStalls is stalls due to data cache misses
	MemStalls uint64 `json:"mem_stalls"`

	// PipelineFlushes is the number of mispredicted branches
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Branch predictor stats (pipelined only)
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// ExitCode is the program's exit code
	ExitCode int32 `json:"exit_code"`

	// Error is set when the run failed or exited with the wrong code
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the machine state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is assembled and loaded at address zero
	Program []insts.Statement

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Architectures run every benchmark; empty means all of them
	Architectures []arch.Architecture

	// EnableDCache places the default L1 data cache in front of memory
	EnableDCache bool

	// Timing overrides the default latency table
	Timing *latency.TimingConfig

	// MaxCycles bounds each run (0 = no limit)
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Architectures: arch.Architectures,
		EnableDCache:  true,
		MaxCycles:     1_000_000,
		Output:        os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
	set        *insts.Set
	logger     *logrus.Logger
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if len(config.Architectures) == 0 {
		config.Architectures = arch.Architectures
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
		set:        insts.NewDefaultSet(),
		logger:     logger,
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark under every configured architecture. A
// benchmark that does not assemble stops the run.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks)*len(h.config.Architectures))

	for _, bench := range h.benchmarks {
		assembled, err := h.set.Assemble(bench.Program)
		if err != nil {
			return results, errors.Wrapf(err, "assembling %s", bench.Name)
		}
		words := insts.Words(assembled)

		for _, a := range h.config.Architectures {
			results = append(results, h.runBenchmark(bench, words, a))
		}
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh machine.
func (h *Harness) runBenchmark(bench Benchmark, words []uint32, a arch.Architecture) BenchmarkResult {
	regFile := emu.NewRegFile()
	memory := emu.NewMemory()
	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	opts := []core.Option{
		core.WithLogger(h.logger),
		core.WithSyscallHandler(emu.NewDefaultSyscallHandler(io.Discard)),
		core.WithMaxCycles(h.config.MaxCycles),
	}
	if h.config.EnableDCache {
		opts = append(opts, core.WithDataCache(cache.DefaultL1DConfig()))
	}
	if h.config.Timing != nil {
		opts = append(opts, core.WithLatencyTable(latency.NewTableWithConfig(h.config.Timing)))
	}

	c := core.NewCore(a, regFile, memory, opts...)
	c.LoadProgram(0, words)

	start := time.Now()
	err := c.Run()
	wallTime := time.Since(start)

	stats := c.Stats()
	dc := c.DCacheStats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		Architecture:        a.String(),
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		RAWStalls:           stats.RAWStalls,
		WAWStalls:           stats.WAWStalls,
		StructuralStalls:    stats.StructuralStalls,
		MemStalls:           stats.MemStalls,
		PipelineFlushes:     stats.Flushes,
		DCacheHits:          dc.Hits,
		DCacheMisses:        dc.Misses,
		ExitCode:            c.ExitCode(),
		WallTime:            wallTime,
	}

	bp := c.BranchPredictorStats()
	result.BranchPredictions = bp.Predictions
	result.BranchMispredictions = bp.Mispredictions
	result.BranchAccuracyPercent = bp.Accuracy()

	switch {
	case err != nil:
		result.Error = err.Error()
	case !c.Halted():
		result.Error = "program did not exit"
	case result.ExitCode != bench.ExpectedExit:
		result.Error = fmt.Sprintf("exit code %d, want %d", result.ExitCode, bench.ExpectedExit)
	}
	if result.Error != "" {
		h.logger.WithFields(logrus.Fields{
			"benchmark": bench.Name,
			"arch":      a,
		}).Warn(result.Error)
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== mipsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, r.Architecture)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  RAW Stalls:           %d\n", r.RAWStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  WAW Stalls:           %d\n", r.WAWStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Structural Stalls:    %d\n", r.StructuralStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Stalls:           %d\n", r.MemStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,arch,cycles,instructions,cpi,raw_stalls,waw_stalls,structural_stalls,mem_stalls,flushes,dcache_hits,dcache_misses,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Architecture,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.RAWStalls,
			r.WAWStalls,
			r.StructuralStalls,
			r.MemStalls,
			r.PipelineFlushes,
			r.DCacheHits,
			r.DCacheMisses,
			r.ExitCode,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(results), "failed to encode results")
}
