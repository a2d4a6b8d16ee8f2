// Validate decoder performance - measures allocations per decoded word
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/mipsim/insts"
)

func main() {
	set := insts.NewDefaultSet()

	words := []uint32{
		0x20080000, // addi $t0, $zero, 0
		0x01094020, // add  $t0, $t0, $t1
		0x8C0A0100, // lw   $t2, 0x100($zero)
		0x1520FFFD, // bne  $t1, $zero, -3
		0x46041003, // div.s $f0, $f2, $f4
		0x0C000004, // jal  0x10
	}

	// Every word must round-trip before timing anything.
	for _, w := range words {
		inst, err := set.Decode(w)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode 0x%08x: %v\n", w, err)
			os.Exit(1)
		}
		if inst.Word != w {
			fmt.Fprintf(os.Stderr, "decode 0x%08x: re-encoded as 0x%08x\n", w, inst.Word)
			os.Exit(1)
		}
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		_, _ = set.Decode(words[i%len(words)])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for i := 0; i < iterations; i++ {
		for _, w := range words {
			_, _ = set.Decode(w)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))
}
