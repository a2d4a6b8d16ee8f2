// Package main provides the entry point for mipsim, a MIPS32 simulator with
// single-cycle, multi-cycle and multi-ALU pipelined timing models.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
)

var (
	archName   = flag.String("arch", "pipelined", "Architecture: single-cycle, multi-cycle, pipelined or all")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	useDCache  = flag.Bool("dcache", false, "Place a 16KB L1 data cache in front of memory")
	maxCycles  = flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 = no limit)")
	resume     = flag.Bool("continue", false, "Skip faulting instructions instead of halting")
	showStats  = flag.Bool("stats", true, "Print timing statistics")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: mipsim [options] <program.elf|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, *verbose)

	archs, err := parseArchs(*archName)
	if err != nil {
		logger.WithError(err).Fatal("bad -arch")
	}

	programPath := flag.Arg(0)
	prog, err := loader.LoadFile(programPath)
	if err != nil {
		logger.WithError(err).Fatal("error loading program")
	}
	logger.WithFields(logrus.Fields{
		"program":  programPath,
		"entry":    fmt.Sprintf("0x%08x", prog.EntryPoint),
		"segments": len(prog.Segments),
	}).Debug("loaded")

	s := settings{
		maxCycles: *maxCycles,
		resume:    *resume,
		logger:    logger,
	}
	if *configPath != "" {
		s.timing, err = latency.LoadConfig(*configPath)
		if err == nil {
			err = s.timing.Validate()
		}
		if err != nil {
			logger.WithError(err).Fatal("error loading timing config")
		}
	}
	if *useDCache {
		cfg := cache.DefaultL1DConfig()
		s.dcache = &cfg
	}

	os.Exit(run(os.Stdout, archs, prog, s))
}

// run simulates prog and returns the process exit status.
func run(w io.Writer, archs []arch.Architecture, prog *loader.Program, s settings) int {
	results, err := simulateAll(context.Background(), archs, prog, s)
	if err != nil {
		s.logger.WithError(err).Error("simulation failed")
		return 1
	}

	fmt.Fprint(w, results[0].stdout)
	if *showStats {
		for _, r := range results {
			report(w, r)
		}
	}

	if diffs := compare(results); len(diffs) > 0 {
		for _, d := range diffs {
			s.logger.Error(d)
		}
		return 2
	}

	if results[0].interrupt != nil {
		return 1
	}
	return int(results[0].exitCode)
}

func parseArchs(name string) ([]arch.Architecture, error) {
	if name == "all" {
		return arch.Architectures, nil
	}
	a, err := arch.ParseArchitecture(name)
	if err != nil {
		return nil, err
	}
	return []arch.Architecture{a}, nil
}

// newLogger logs to w, in color when w is a terminal.
func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:      tty,
		DisableColors:    !tty,
		DisableTimestamp: true,
	})
	return logger
}
