package insts

import (
	"fmt"
	"strings"
)

// Origin locates the source line an instruction was assembled from.
type Origin struct {
	File string
	Line int
	Text string
}

// IsZero reports whether the origin is unknown, as for decoded words.
func (o Origin) IsZero() bool {
	return o == Origin{}
}

func (o Origin) String() string {
	switch {
	case o.IsZero():
		return "<binary>"
	case o.File == "":
		return fmt.Sprintf("line %d", o.Line)
	default:
		return fmt.Sprintf("%s:%d", o.File, o.Line)
	}
}

// Instruction is a decoded instruction word bound to its definition. Field
// accessors read straight from the word.
type Instruction struct {
	Word   uint32
	Def    *Definition
	Origin Origin
}

// Fields returns the typed field set of the instruction's format.
func (i *Instruction) Fields() Fields {
	return Decode(i.Def.Format, i.Word)
}

// Opcode returns bits [31:26].
func (i *Instruction) Opcode() uint8 { return uint8(SlotOpcode.Extract(i.Word)) }

// Rs returns bits [25:21].
func (i *Instruction) Rs() int { return int(SlotRs.Extract(i.Word)) }

// Rt returns bits [20:16].
func (i *Instruction) Rt() int { return int(SlotRt.Extract(i.Word)) }

// Rd returns bits [15:11].
func (i *Instruction) Rd() int { return int(SlotRd.Extract(i.Word)) }

// Shamt returns bits [10:6].
func (i *Instruction) Shamt() uint32 { return SlotShamt.Extract(i.Word) }

// Funct returns bits [5:0].
func (i *Instruction) Funct() uint8 { return uint8(SlotFunct.Extract(i.Word)) }

// Fr returns the COP1X fr field.
func (i *Instruction) Fr() int { return i.Rs() }

// Ft returns the COP1 ft field.
func (i *Instruction) Ft() int { return i.Rt() }

// Fs returns the COP1 fs field.
func (i *Instruction) Fs() int { return i.Rd() }

// Fd returns the COP1 fd field.
func (i *Instruction) Fd() int { return int(i.Shamt()) }

// Imm returns the raw 16-bit immediate.
func (i *Instruction) Imm() uint16 { return uint16(SlotImm16.Extract(i.Word)) }

// SImm returns the sign-extended immediate.
func (i *Instruction) SImm() int32 { return SignExtend16(i.Imm()) }

// ZImm returns the zero-extended immediate.
func (i *Instruction) ZImm() uint32 { return uint32(i.Imm()) }

// Target returns the 26-bit jump target.
func (i *Instruction) Target() uint32 { return SlotTarget.Extract(i.Word) }

// CC returns the floating-point condition code selected by a compare or a
// COP1 branch.
func (i *Instruction) CC() int {
	if i.Def != nil && i.Def.Format == FormatIFPU {
		return int(SlotCCBranch.Extract(i.Word))
	}
	return int(SlotCCCompare.Extract(i.Word))
}

// BranchTarget returns the target of a PC-relative branch at addr.
func (i *Instruction) BranchTarget(addr uint32) uint32 {
	return addr + 4 + uint32(i.SImm())<<2
}

// JumpTarget returns the target of a region jump at addr.
func (i *Instruction) JumpTarget(addr uint32) uint32 {
	return (addr+4)&0xF0000000 | i.Target()<<2
}

// Operands recovers the operand list in declared order.
func (i *Instruction) Operands() []Operand {
	out := make([]Operand, len(i.Def.Params))
	for n := range i.Def.Params {
		out[n] = i.Def.operand(i.Word, n)
	}
	return out
}

// String disassembles the instruction.
func (i *Instruction) String() string {
	if i.Def == nil {
		return fmt.Sprintf(".word 0x%08x", i.Word)
	}

	ops := i.Operands()
	parts := make([]string, len(ops))
	for n, o := range ops {
		parts[n] = o.String()
	}

	// Loads and stores print as rt, offset(base).
	if i.Def.Access != MemNone && len(parts) == 3 {
		return fmt.Sprintf("%s %s, %s(%s)", i.Def.Mnemonic, parts[0], parts[1], parts[2])
	}
	if len(parts) == 0 {
		return i.Def.Mnemonic
	}
	return i.Def.Mnemonic + " " + strings.Join(parts, ", ")
}
