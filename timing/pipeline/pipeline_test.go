package pipeline_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// Four independent single-precision divides of $f2 by $f4.
var divides = []uint32{
	0x46041003, // div.s $f0, $f2, $f4
	0x46041183, // div.s $f6, $f2, $f4
	0x46041203, // div.s $f8, $f2, $f4
	0x46041283, // div.s $f10, $f2, $f4
}

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
	})

	load := func(words []uint32, opts ...pipeline.PipelineOption) {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		opts = append([]pipeline.PipelineOption{pipeline.WithLogger(logger)}, opts...)

		memory.LoadWords(0, words)
		pipe = pipeline.NewPipeline(regFile, memory, opts...)
		pipe.SetPC(0)
		pipe.SetEnd(uint32(4 * len(words)))
	}

	Describe("SetPC / PC", func() {
		It("should update the register file PC", func() {
			load(nil)
			pipe.SetPC(0x2000)
			Expect(pipe.PC()).To(Equal(uint32(0x2000)))
			Expect(regFile.PC()).To(Equal(uint32(0x2000)))
		})
	})

	Describe("Tick", func() {
		It("should forward in execute and commit in write-back", func() {
			load([]uint32{0x2008002A}) // addi $t0, $zero, 42
			t0 := regFile.Reg(emu.GPR(8))

			pipe.Tick()
			pipe.Tick()
			Expect(t0.Locked()).To(BeTrue())
			Expect(t0.Forwarded()).To(BeFalse())

			pipe.Tick()
			Expect(t0.Forwarded()).To(BeTrue())
			Expect(t0.Read()).To(Equal(uint32(42)))
			Expect(t0.Committed()).To(BeZero())

			pipe.Tick()
			pipe.Tick()
			Expect(t0.Committed()).To(BeZero())

			pipe.Tick()
			Expect(t0.Committed()).To(Equal(uint32(42)))
			Expect(t0.Locked()).To(BeFalse())
			Expect(pipe.Drained()).To(BeTrue())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(6)))
		})

		It("should overlap independent instructions", func() {
			load([]uint32{
				0x20080001, // addi $t0, $zero, 1
				0x20090002, // addi $t1, $zero, 2
				0x200A0003, // addi $t2, $zero, 3
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadGPR(10)).To(Equal(uint32(3)))
			Expect(pipe.Stats().Instructions).To(Equal(uint64(3)))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(8)))
		})

		It("should do nothing once halted", func() {
			load([]uint32{
				0x2002000A, // addi $v0, $zero, 10
				0x0000000C, // syscall
			})
			Expect(pipe.Run()).To(Succeed())
			cycles := pipe.Stats().Cycles

			pipe.Tick()

			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Stats().Cycles).To(Equal(cycles))
		})
	})

	Describe("hazards", func() {
		It("should stall a use of a load until the memory stage", func() {
			memory.Write32(0x100, 21)
			load([]uint32{
				0x8C080100, // lw  $t0, 0x100($zero)
				0x01084820, // add $t1, $t0, $t0
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadGPR(9)).To(Equal(uint32(42)))
			Expect(pipe.Stats().RAWStalls).To(BeNumerically(">=", 1))
		})

		It("should stall a use of a long-latency result", func() {
			regFile.WriteFloat32(2, 6)
			regFile.WriteFloat32(4, 2)
			load([]uint32{
				0x46041003, // div.s $f0, $f2, $f4
				0x46000180, // add.s $f6, $f0, $f0
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadFloat32(6)).To(Equal(float32(6)))
			Expect(pipe.Stats().RAWStalls).To(BeNumerically(">", 5))
		})

		It("should let a store wait for its data without stalling decode", func() {
			regFile.WriteFloat32(2, 6)
			regFile.WriteFloat32(4, 2)
			load([]uint32{
				0x46041003, // div.s $f0, $f2, $f4
				0xE4000200, // swc1  $f0, 0x200($zero)
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(memory.Read32(0x200)).To(Equal(regFile.Reg(emu.FPR(0)).Committed()))
			Expect(regFile.ReadFloat32(0)).To(Equal(float32(3)))
			Expect(pipe.Stats().RAWStalls).To(BeZero())
		})
	})

	Describe("control flow", func() {
		It("should redirect fetch at decode for a jump", func() {
			load([]uint32{
				0x08000003, // j    0x0c
				0x20090001, // addi $t1, $zero, 1
				0x200A0002, // addi $t2, $zero, 2
				0x200B0003, // addi $t3, $zero, 3
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadGPR(9)).To(BeZero())
			Expect(regFile.ReadGPR(10)).To(BeZero())
			Expect(regFile.ReadGPR(11)).To(Equal(uint32(3)))
			Expect(pipe.Stats().Flushes).To(BeZero())
			Expect(pipe.Stats().Instructions).To(Equal(uint64(2)))
		})

		It("should flush younger instructions when a branch is taken", func() {
			load([]uint32{
				0x10000002, // beq  $zero, $zero, 2
				0x20090001, // addi $t1, $zero, 1
				0x200A0002, // addi $t2, $zero, 2
				0x200B0003, // addi $t3, $zero, 3
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadGPR(9)).To(BeZero())
			Expect(regFile.ReadGPR(10)).To(BeZero())
			Expect(regFile.ReadGPR(11)).To(Equal(uint32(3)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(1)))
			Expect(pipe.Stats().Squashed).To(BeNumerically(">=", 1))
			Expect(regFile.Locked()).To(BeEmpty())
		})

		It("should fall through a branch that is not taken", func() {
			load([]uint32{
				0x14000002, // bne  $zero, $zero, 2
				0x20090001, // addi $t1, $zero, 1
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadGPR(9)).To(Equal(uint32(1)))
			Expect(pipe.Stats().Flushes).To(BeZero())
		})
	})

	Describe("execution units", func() {
		runDivides := func(count int) pipeline.Statistics {
			regFile = emu.NewRegFile()
			memory = emu.NewMemory()
			regFile.WriteFloat32(2, 6)
			regFile.WriteFloat32(4, 2)

			config := latency.DefaultTimingConfig()
			config.FloatDivision.Count = count
			load(divides, pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))

			Expect(pipe.Run()).To(Succeed())
			for _, f := range []int{0, 6, 8, 10} {
				Expect(regFile.ReadFloat32(f)).To(Equal(float32(3)))
			}
			return pipe.Stats()
		}

		It("should run independent instructions side by side on replicated units", func() {
			one := runDivides(1)
			four := runDivides(4)

			Expect(one.StructuralStalls).To(BeNumerically(">", 0))
			Expect(four.StructuralStalls).To(BeZero())
			Expect(four.Cycles).To(BeNumerically("<", one.Cycles))
		})

		It("should report its latency table", func() {
			table := latency.NewTable()
			load(nil, pipeline.WithLatencyTable(table))
			Expect(pipe.LatencyTable()).To(BeIdenticalTo(table))
		})
	})

	Describe("data cache", func() {
		It("should add the miss penalty to the memory stage", func() {
			load([]uint32{
				0xAC080100, // sw $t0, 0x100($zero)
				0x8C0A0100, // lw $t2, 0x100($zero)
			}, pipeline.WithDataCache(cache.Config{Size: 1024, Associativity: 2, BlockSize: 16}))

			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.DCacheStats().Misses).To(Equal(uint64(1)))
			Expect(pipe.DCacheStats().Hits).To(Equal(uint64(1)))
			Expect(pipe.Stats().MemStalls).To(Equal(latency.DefaultTimingConfig().MissPenalty))
		})

		It("should not stall the memory stage without a cache", func() {
			load([]uint32{0x8C0A0100}) // lw $t2, 0x100($zero)

			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.Stats().MemStalls).To(BeZero())
			Expect(pipe.DCacheStats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("interrupts", func() {
		overflow := []uint32{
			0x3C087FFF, // lui  $t0, 0x7fff
			0x3508FFFF, // ori  $t0, $t0, 0xffff
			0x21080001, // addi $t0, $t0, 1
			0xAC090100, // sw   $t1, 0x100($zero)
			0x20090003, // addi $t1, $zero, 3
		}

		It("should not let younger stores reach memory", func() {
			memory.Write32(0x100, 0xDEAD)
			regFile.WriteGPR(9, 7)
			load(overflow)

			err := pipe.Run()

			intr, ok := emu.AsInterrupt(err)
			Expect(ok).To(BeTrue())
			Expect(intr.Cause).To(Equal(emu.CauseArithmeticOverflow))
			Expect(memory.Read32(0x100)).To(Equal(uint32(0xDEAD)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(7)))
			Expect(pipe.PC()).To(Equal(uint32(0x0C)))
			Expect(regFile.Locked()).To(BeEmpty())
		})

		It("should resume after the faulting instruction when asked", func() {
			regFile.WriteGPR(9, 7)
			load(overflow, pipeline.WithInterruptHandler(func(*emu.Interrupt) emu.Action {
				return emu.Continue
			}))

			Expect(pipe.Run()).To(Succeed())

			Expect(memory.Read32(0x100)).To(Equal(uint32(7)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(3)))
			Expect(pipe.Stats().Interrupts).To(Equal(uint64(1)))
			Expect(pipe.Interrupt()).To(BeNil())
		})

		It("should raise a reserved instruction interrupt for an unknown word", func() {
			load([]uint32{0xFC000000})

			intr, ok := emu.AsInterrupt(pipe.Run())

			Expect(ok).To(BeTrue())
			Expect(intr.Cause).To(Equal(emu.CauseReservedInstruction))
			Expect(intr.Addr).To(BeZero())
		})
	})

	Describe("Run", func() {
		It("should stop at the cycle limit", func() {
			load([]uint32{0x1000FFFF}, pipeline.WithMaxCycles(40)) // beq $zero, $zero, -1

			Expect(pipe.Run()).To(MatchError(ContainSubstring("cycle limit 40")))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(40)))
		})

		It("should report the exit code", func() {
			load([]uint32{
				0x20020011, // addi $v0, $zero, 17
				0x20040005, // addi $a0, $zero, 5
				0x0000000C, // syscall
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.ExitCode()).To(Equal(int32(5)))
			Expect(pipe.PC()).To(Equal(uint32(0x0C)))
		})
	})

	Describe("RunCycles", func() {
		It("should report whether work remains", func() {
			load([]uint32{0x2008002A}) // addi $t0, $zero, 42

			Expect(pipe.RunCycles(3)).To(BeTrue())
			Expect(pipe.RunCycles(10)).To(BeFalse())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(6)))
		})
	})

	Describe("Reset", func() {
		It("should drop in-flight work and statistics", func() {
			load([]uint32{0x2008002A}) // addi $t0, $zero, 42
			pipe.Tick()
			pipe.Tick()
			Expect(regFile.Locked()).NotTo(BeEmpty())

			pipe.Reset()

			Expect(regFile.Locked()).To(BeEmpty())
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(regFile.ReadGPR(8)).To(BeZero())
		})
	})
})
