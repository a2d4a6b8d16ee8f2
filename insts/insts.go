// Package insts provides MIPS32 instruction definitions, encoding and decoding.
//
// This package turns 32-bit instruction words into structured instruction
// representations and back. It supports:
//   - Format families: R, I16, I26, REGIMM, COP1 arithmetic, COP1 branch,
//     COP1 moves and COP1X multiply-add
//   - Immutable instruction definitions with a mask/match identifying pattern
//   - An instruction set registry resolving words and mnemonics to definitions
//   - Pseudo-instructions expanded into fixed sequences of real instructions
//
// Usage:
//
//	set := insts.NewDefaultSet()
//	inst, err := set.Decode(0x2128002A) // addi $t0, $t1, 42
//	fmt.Printf("%s rt=%d rs=%d imm=%d\n", inst.Def.Mnemonic, inst.Rt(), inst.Rs(), inst.SImm())
package insts
