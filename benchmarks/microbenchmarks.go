package benchmarks

import "github.com/sarchlab/mipsim/insts"

// Register numbers used by the programs below.
const (
	v0 = insts.RegV0
	a0 = insts.RegA0
	t0 = 8
	t1 = 9
	t2 = 10
	s0 = 16
	ra = insts.RegRA
)

// dataBase is where the memory benchmarks keep their array. Programs are
// loaded at address zero, well below it.
const dataBase = 0x1000

func stmt(mnemonic string, ops ...insts.Operand) insts.Statement {
	return insts.Statement{Mnemonic: mnemonic, Operands: ops}
}

func r(i int) insts.Operand { return insts.Reg(i) }

func f(i int) insts.Operand { return insts.FReg(i) }

func imm(v int64) insts.Operand { return insts.Imm(insts.ParamSigned16, v) }

func word(v int64) insts.Operand { return insts.Imm(insts.ParamSigned32, v) }

// target is the jump field for an absolute address.
func target(addr uint32) insts.Operand {
	return insts.Imm(insts.ParamTarget26, int64(addr>>2))
}

// exitWith ends a program with the value of reg as its exit code. It
// assembles to four words.
func exitWith(reg int) []insts.Statement {
	return []insts.Statement{
		stmt("li", r(v0), word(17)),
		stmt("move", r(a0), r(reg)),
		stmt("syscall"),
	}
}

// GetMicrobenchmarks returns the standard set of timing microbenchmarks.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		multiplyChain(),
		floatDivide(),
		loopAccumulate(),
	}
}

// arithmeticSequential: independent writes to eight registers in turn.
func arithmeticSequential() Benchmark {
	var prog []insts.Statement
	for i := 0; i < 24; i++ {
		reg := t0 + i%8
		prog = append(prog, stmt("addi", r(reg), r(insts.RegZero), imm(int64(i%8+1))))
	}
	prog = append(prog, exitWith(t0+7)...)

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "24 independent addi, no data hazards",
		Program:      prog,
		ExpectedExit: 8,
	}
}

// dependencyChain: every instruction reads the one before it.
func dependencyChain() Benchmark {
	prog := []insts.Statement{stmt("addi", r(t0), r(insts.RegZero), imm(0))}
	for i := 0; i < 20; i++ {
		prog = append(prog, stmt("addi", r(t0), r(t0), imm(1)))
	}
	prog = append(prog, exitWith(t0)...)

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent addi, forwarding on every instruction",
		Program:      prog,
		ExpectedExit: 20,
	}
}

// memorySequential: fill eight words, then sum them back.
func memorySequential() Benchmark {
	var prog []insts.Statement
	for i := 0; i < 8; i++ {
		prog = append(prog,
			stmt("addi", r(t0), r(insts.RegZero), imm(int64(i+1))),
			stmt("sw", r(t0), imm(int64(dataBase+4*i)), r(insts.RegZero)),
		)
	}
	prog = append(prog, stmt("move", r(t1), r(insts.RegZero)))
	for i := 0; i < 8; i++ {
		prog = append(prog,
			stmt("lw", r(t2), imm(int64(dataBase+4*i)), r(insts.RegZero)),
			stmt("add", r(t1), r(t1), r(t2)),
		)
	}
	prog = append(prog, exitWith(t1)...)

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "8 stores then 8 load-use pairs over one array",
		Program:      prog,
		ExpectedExit: 36,
	}
}

// functionCalls: five calls to a leaf that adds three.
func functionCalls() Benchmark {
	const calls = 5
	// init + calls + exit sequence, then the leaf.
	leaf := uint32(4 * (1 + calls + 4))

	prog := []insts.Statement{stmt("addi", r(s0), r(insts.RegZero), imm(0))}
	for i := 0; i < calls; i++ {
		prog = append(prog, stmt("jal", target(leaf)))
	}
	prog = append(prog, exitWith(s0)...)
	prog = append(prog,
		stmt("addi", r(s0), r(s0), imm(3)),
		stmt("jr", r(ra)),
	)

	return Benchmark{
		Name:         "function_calls",
		Description:  "5 jal/jr pairs into a leaf routine",
		Program:      prog,
		ExpectedExit: 15,
	}
}

// branchTaken: a ten-trip counted loop closed by blt.
func branchTaken() Benchmark {
	prog := []insts.Statement{
		stmt("addi", r(t0), r(insts.RegZero), imm(0)),
		stmt("addi", r(t1), r(insts.RegZero), imm(10)),
		stmt("addi", r(t0), r(t0), imm(1)),
		// slt at word 3, bne at word 4 back to word 2.
		stmt("blt", r(t0), r(t1), imm(-3)),
	}
	prog = append(prog, exitWith(t0)...)

	return Benchmark{
		Name:         "branch_taken",
		Description:  "10-iteration loop, branch resolved in memory",
		Program:      prog,
		ExpectedExit: 10,
	}
}

// multiplyChain: dependent multiplies through the integer multiplier.
func multiplyChain() Benchmark {
	prog := []insts.Statement{
		stmt("addi", r(t0), r(insts.RegZero), imm(1)),
		stmt("addi", r(t1), r(insts.RegZero), imm(3)),
	}
	for i := 0; i < 5; i++ {
		prog = append(prog, stmt("mul", r(t0), r(t0), r(t1)))
	}
	prog = append(prog,
		stmt("mult", r(t0), r(t1)),
		stmt("mflo", r(t2)),
	)
	prog = append(prog, exitWith(t2)...)

	return Benchmark{
		Name:         "multiply_chain",
		Description:  "5 dependent mul then mult/mflo, 3^6",
		Program:      prog,
		ExpectedExit: 729,
	}
}

// floatDivide: two dependent single-precision divides, 4/2/2 = 1.0.
func floatDivide() Benchmark {
	prog := []insts.Statement{
		stmt("li", r(t0), word(0x40800000)),
		stmt("mtc1", r(t0), f(2)),
		stmt("li", r(t1), word(0x40000000)),
		stmt("mtc1", r(t1), f(4)),
		stmt("div.s", f(0), f(2), f(4)),
		stmt("div.s", f(6), f(0), f(4)),
		stmt("mfc1", r(t2), f(6)),
	}
	prog = append(prog, exitWith(t2)...)

	return Benchmark{
		Name:         "float_divide",
		Description:  "2 dependent div.s, long-latency FP unit",
		Program:      prog,
		ExpectedExit: 0x3F800000,
	}
}

// loopAccumulate: sums 5..1, stores the total and reloads it doubled.
func loopAccumulate() Benchmark {
	prog := []insts.Statement{
		stmt("addi", r(t0), r(insts.RegZero), imm(0)),
		stmt("addi", r(t1), r(insts.RegZero), imm(5)),
		stmt("add", r(t0), r(t0), r(t1)),
		stmt("addi", r(t1), r(t1), imm(-1)),
		stmt("bne", r(t1), r(insts.RegZero), imm(-3)),
		stmt("sw", r(t0), imm(dataBase), r(insts.RegZero)),
		stmt("lw", r(t2), imm(dataBase), r(insts.RegZero)),
		stmt("add", r(t2), r(t2), r(t2)),
	}
	prog = append(prog, exitWith(t2)...)

	return Benchmark{
		Name:         "loop_accumulate",
		Description:  "bne loop with a store/load round trip",
		Program:      prog,
		ExpectedExit: 30,
	}
}
