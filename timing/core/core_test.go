package core_test

import (
	"bytes"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/core"
)

// sumLoop adds 5+4+3+2+1 into $t0, stores it and reloads it doubled.
var sumLoop = []uint32{
	0x20080000, // addi $t0, $zero, 0
	0x20090005, // addi $t1, $zero, 5
	0x01094020, // add  $t0, $t0, $t1
	0x2129FFFF, // addi $t1, $t1, -1
	0x1520FFFD, // bne  $t1, $zero, -3
	0xAC080100, // sw   $t0, 0x100($zero)
	0x8C0A0100, // lw   $t2, 0x100($zero)
	0x014A5820, // add  $t3, $t2, $t2
}

// callReturn calls a leaf routine and jumps past it on return.
var callReturn = []uint32{
	0x0C000004, // jal  0x10
	0x20090009, // addi $t1, $zero, 9
	0x08000006, // j    0x18
	0x20090055, // addi $t1, $zero, 0x55
	0x20080003, // addi $t0, $zero, 3
	0x03E00008, // jr   $ra
}

// overflow traps on its third instruction.
var overflow = []uint32{
	0x3C087FFF, // lui  $t0, 0x7fff
	0x3508FFFF, // ori  $t0, $t0, 0xffff
	0x21080001, // addi $t0, $t0, 1
	0x20090003, // addi $t1, $zero, 3
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
		stdout = &bytes.Buffer{}
	})

	newCore := func(a arch.Architecture, opts ...core.Option) *core.Core {
		opts = append([]core.Option{
			core.WithLogger(quietLogger()),
			core.WithSyscallHandler(emu.NewDefaultSyscallHandler(stdout)),
		}, opts...)
		return core.NewCore(a, regFile, memory, opts...)
	}

	It("should wrap a pipeline only for the pipelined architecture", func() {
		c := newCore(arch.Pipelined)
		Expect(c.Pipeline).NotTo(BeNil())
		Expect(c.Sequential).To(BeNil())

		c = newCore(arch.MultiCycle)
		Expect(c.Pipeline).To(BeNil())
		Expect(c.Sequential).NotTo(BeNil())
		Expect(c.Architecture()).To(Equal(arch.MultiCycle))
	})

	It("should not be halted initially", func() {
		Expect(newCore(arch.SingleCycle).Halted()).To(BeFalse())
	})

	It("should point the core at a loaded program", func() {
		c := newCore(arch.SingleCycle)
		c.LoadProgram(0x400, sumLoop)

		Expect(regFile.PC()).To(Equal(uint32(0x400)))
		Expect(memory.Read32(0x404)).To(Equal(uint32(0x20090005)))
	})

	DescribeTable("running a loop",
		func(a arch.Architecture) {
			c := newCore(a)
			c.LoadProgram(0, sumLoop)

			Expect(c.Run()).To(Succeed())

			Expect(regFile.ReadGPR(8)).To(Equal(uint32(15)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(0)))
			Expect(regFile.ReadGPR(11)).To(Equal(uint32(30)))
			Expect(memory.Read32(0x100)).To(Equal(uint32(15)))
			Expect(regFile.Locked()).To(BeEmpty())
			Expect(c.Stats().Instructions).To(Equal(uint64(20)))
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	DescribeTable("calling and returning",
		func(a arch.Architecture) {
			c := newCore(a)
			c.LoadProgram(0, callReturn)

			Expect(c.Run()).To(Succeed())

			Expect(regFile.ReadGPR(8)).To(Equal(uint32(3)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(9)))
			Expect(regFile.ReadGPR(31)).To(Equal(uint32(4)))
			Expect(regFile.PC()).To(Equal(uint32(0x18)))
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	It("should charge one cycle per instruction on the single-cycle core", func() {
		c := newCore(arch.SingleCycle)
		c.LoadProgram(0, sumLoop)

		Expect(c.Run()).To(Succeed())
		Expect(c.Stats().Cycles).To(Equal(uint64(20)))
		Expect(c.Stats().CPI()).To(Equal(1.0))
	})

	It("should charge four cycles per instruction on the multi-cycle core", func() {
		c := newCore(arch.MultiCycle)
		c.LoadProgram(0, sumLoop)

		Expect(c.Run()).To(Succeed())
		Expect(c.Stats().Cycles).To(Equal(uint64(80)))
	})

	It("should finish the loop in fewer cycles when pipelined", func() {
		c := newCore(arch.Pipelined)
		c.LoadProgram(0, sumLoop)

		Expect(c.Run()).To(Succeed())
		Expect(c.Stats().Cycles).To(BeNumerically("<", 80))
		// The bne misses on its first trip, with no target buffered yet, and
		// on the fall-through; the three taken trips between are fetched
		// down the right path.
		Expect(c.Stats().Flushes).To(Equal(uint64(2)))
		Expect(c.BranchPredictorStats().Predictions).To(Equal(uint64(5)))
		Expect(c.BranchPredictorStats().Mispredictions).To(Equal(uint64(2)))
	})

	It("should leave identical state under every architecture", func() {
		var states []emu.State
		for _, a := range arch.Architectures {
			regFile = emu.NewRegFile()
			memory = emu.NewMemory()
			c := newCore(a)
			c.LoadProgram(0, sumLoop)
			Expect(c.Run()).To(Succeed())
			Expect(regFile.Locked()).To(BeEmpty())
			states = append(states, regFile.Snapshot())
		}

		Expect(states[0].Diff(states[1])).To(BeEmpty())
		Expect(states[0].Diff(states[2])).To(BeEmpty())
	})

	DescribeTable("exiting through a syscall",
		func(a arch.Architecture) {
			c := newCore(a)
			c.LoadProgram(0, []uint32{
				0x20020001, // addi $v0, $zero, 1
				0x2004002A, // addi $a0, $zero, 42
				0x0000000C, // syscall
				0x20020011, // addi $v0, $zero, 17
				0x20040007, // addi $a0, $zero, 7
				0x0000000C, // syscall
				0x20090001, // addi $t1, $zero, 1
			})

			Expect(c.Run()).To(Succeed())

			Expect(c.Halted()).To(BeTrue())
			Expect(c.ExitCode()).To(Equal(int32(7)))
			Expect(stdout.String()).To(Equal("42"))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(0)))
			Expect(regFile.PC()).To(Equal(uint32(0x18)))
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	DescribeTable("returning a value from a syscall",
		func(a arch.Architecture) {
			c := newCore(a)
			c.LoadProgram(0, []uint32{
				0x20020009, // addi $v0, $zero, 9
				0x20040006, // addi $a0, $zero, 6
				0x0000000C, // syscall
				0x00404020, // add  $t0, $v0, $zero
				0x20020009, // addi $v0, $zero, 9
				0x0000000C, // syscall
				0x00404820, // add  $t1, $v0, $zero
			})

			Expect(c.Run()).To(Succeed())

			Expect(regFile.ReadGPR(8)).To(Equal(emu.DefaultHeapBase))
			Expect(regFile.ReadGPR(9)).To(Equal(emu.DefaultHeapBase + 8))
			Expect(regFile.Locked()).To(BeEmpty())
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	DescribeTable("halting on an interrupt",
		func(a arch.Architecture) {
			c := newCore(a)
			c.LoadProgram(0, overflow)

			err := c.Run()

			intr, ok := emu.AsInterrupt(err)
			Expect(ok).To(BeTrue())
			Expect(intr.Cause).To(Equal(emu.CauseArithmeticOverflow))
			Expect(intr.Addr).To(Equal(uint32(8)))
			Expect(c.Interrupt()).To(BeIdenticalTo(intr))
			Expect(c.Halted()).To(BeTrue())
			Expect(regFile.ReadGPR(8)).To(Equal(uint32(0x7FFFFFFF)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(0)))
			Expect(regFile.PC()).To(Equal(uint32(0x0C)))
			Expect(regFile.Locked()).To(BeEmpty())
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	DescribeTable("continuing after an interrupt",
		func(a arch.Architecture) {
			var seen []emu.Cause
			c := newCore(a, core.WithInterruptHandler(func(intr *emu.Interrupt) emu.Action {
				seen = append(seen, intr.Cause)
				return emu.Continue
			}))
			c.LoadProgram(0, overflow)

			Expect(c.Run()).To(Succeed())

			Expect(seen).To(Equal([]emu.Cause{emu.CauseArithmeticOverflow}))
			Expect(c.Stats().Interrupts).To(Equal(uint64(1)))
			Expect(regFile.ReadGPR(8)).To(Equal(uint32(0x7FFFFFFF)))
			Expect(regFile.ReadGPR(9)).To(Equal(uint32(3)))
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("multi-cycle", arch.MultiCycle),
		Entry("pipelined", arch.Pipelined),
	)

	It("should raise a reserved instruction interrupt for an unknown word", func() {
		c := newCore(arch.MultiCycle)
		c.LoadProgram(0, []uint32{0xFC000000})

		intr, ok := emu.AsInterrupt(c.Run())
		Expect(ok).To(BeTrue())
		Expect(intr.Cause).To(Equal(emu.CauseReservedInstruction))
	})

	It("should stop at the cycle limit", func() {
		c := newCore(arch.SingleCycle, core.WithMaxCycles(50))
		c.LoadProgram(0, []uint32{0x1000FFFF}) // beq $zero, $zero, -1

		err := c.Run()

		Expect(err).To(HaveOccurred())
		_, isInterrupt := emu.AsInterrupt(err)
		Expect(isInterrupt).To(BeFalse())
		Expect(c.Stats().Cycles).To(Equal(uint64(50)))
	})

	It("should run a bounded number of cycles", func() {
		c := newCore(arch.MultiCycle)
		c.LoadProgram(0, sumLoop)

		Expect(c.RunCycles(8)).To(BeTrue())
		Expect(c.Stats().Instructions).To(Equal(uint64(2)))
		Expect(regFile.ReadGPR(9)).To(Equal(uint32(5)))
	})

	DescribeTable("going through a data cache",
		func(a arch.Architecture) {
			c := newCore(a, core.WithDataCache(cache.Config{
				Size: 1024, Associativity: 2, BlockSize: 16,
			}))
			c.LoadProgram(0, sumLoop)

			Expect(c.Run()).To(Succeed())

			stats := c.DCacheStats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(memory.Read32(0x100)).To(Equal(uint32(15)))
		},
		Entry("single-cycle", arch.SingleCycle),
		Entry("pipelined", arch.Pipelined),
	)

	It("should clear statistics on reset", func() {
		c := newCore(arch.SingleCycle)
		c.LoadProgram(0, sumLoop)
		Expect(c.Run()).To(Succeed())

		c.Reset()

		Expect(c.Stats()).To(Equal(core.Stats{}))
		Expect(c.Halted()).To(BeFalse())
	})
})
