// Command benchmark runs the mipsim timing microbenchmarks under each
// architecture.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as JSON
//	-arch       Architecture to run, or "all" (default)
//	-config     Timing configuration JSON file
//	-no-dcache  Disable data cache simulation
//
// Example:
//
//	# Compare single-cycle, multi-cycle and pipelined CPI
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/benchmarks"
	"github.com/sarchlab/mipsim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	archName := flag.String("arch", "all", "Architecture: single-cycle, multi-cycle, pipelined or all")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	noDCache := flag.Bool("no-dcache", false, "Disable data cache simulation")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableDCache = !*noDCache
	config.Output = os.Stdout
	config.Verbose = *verbose

	if *archName != "all" {
		a, err := arch.ParseArchitecture(*archName)
		if err != nil {
			logrus.WithError(err).Fatal("bad -arch")
		}
		config.Architectures = []arch.Architecture{a}
	}

	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err == nil {
			err = timing.Validate()
		}
		if err != nil {
			logrus.WithError(err).Fatal("error loading timing config")
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

	if !*csvOutput && !*jsonOutput {
		fmt.Println("mipsim Timing Benchmark Harness")
		fmt.Println("===============================")
		fmt.Printf("Architectures: %v\n", config.Architectures)
		fmt.Printf("D-Cache: %v\n", config.EnableDCache)
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		logrus.WithError(err).Fatal("benchmark failed")
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			logrus.WithError(err).Fatal("output failed")
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}
