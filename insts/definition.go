package insts

import "strings"

// Op identifies the semantics of an instruction definition.
type Op uint16

// Operations.
const (
	OpUnknown Op = iota

	// Integer R-type
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpJR
	OpJALR
	OpSYSCALL
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU

	// SPECIAL2
	OpMADD
	OpMADDU
	OpMUL

	// REGIMM
	OpBLTZ
	OpBGEZ
	OpBLTZAL
	OpBGEZAL

	// I-type
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpLB
	OpLBU
	OpLH
	OpLHU
	OpLW
	OpSB
	OpSH
	OpSW
	OpLWC1
	OpSWC1

	// J-type
	OpJ
	OpJAL

	// COP1
	OpADDS
	OpADDD
	OpSUBS
	OpSUBD
	OpMULS
	OpMULD
	OpDIVS
	OpDIVD
	OpMOVS
	OpMOVD
	OpNEGS
	OpNEGD
	OpCCONDS
	OpCCONDD
	OpBC1F
	OpBC1T
	OpMFC1
	OpMTC1

	// COP1X
	OpMADDS
	OpMADDD

	opCount
)

var opNames = [opCount]string{
	OpUnknown: "unknown",
	OpADD:     "add", OpADDU: "addu", OpSUB: "sub", OpSUBU: "subu",
	OpAND: "and", OpOR: "or", OpXOR: "xor", OpNOR: "nor",
	OpSLT: "slt", OpSLTU: "sltu",
	OpSLL: "sll", OpSRL: "srl", OpSRA: "sra",
	OpSLLV: "sllv", OpSRLV: "srlv", OpSRAV: "srav",
	OpJR: "jr", OpJALR: "jalr", OpSYSCALL: "syscall",
	OpMFHI: "mfhi", OpMTHI: "mthi", OpMFLO: "mflo", OpMTLO: "mtlo",
	OpMULT: "mult", OpMULTU: "multu", OpDIV: "div", OpDIVU: "divu",
	OpMADD: "madd", OpMADDU: "maddu", OpMUL: "mul",
	OpBLTZ: "bltz", OpBGEZ: "bgez", OpBLTZAL: "bltzal", OpBGEZAL: "bgezal",
	OpBEQ: "beq", OpBNE: "bne", OpBLEZ: "blez", OpBGTZ: "bgtz",
	OpADDI: "addi", OpADDIU: "addiu", OpSLTI: "slti", OpSLTIU: "sltiu",
	OpANDI: "andi", OpORI: "ori", OpXORI: "xori", OpLUI: "lui",
	OpLB: "lb", OpLBU: "lbu", OpLH: "lh", OpLHU: "lhu", OpLW: "lw",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpLWC1: "lwc1", OpSWC1: "swc1",
	OpJ: "j", OpJAL: "jal",
	OpADDS: "add.s", OpADDD: "add.d", OpSUBS: "sub.s", OpSUBD: "sub.d",
	OpMULS: "mul.s", OpMULD: "mul.d", OpDIVS: "div.s", OpDIVD: "div.d",
	OpMOVS: "mov.s", OpMOVD: "mov.d", OpNEGS: "neg.s", OpNEGD: "neg.d",
	OpCCONDS: "c.cond.s", OpCCONDD: "c.cond.d",
	OpBC1F: "bc1f", OpBC1T: "bc1t", OpMFC1: "mfc1", OpMTC1: "mtc1",
	OpMADDS: "madd.s", OpMADDD: "madd.d",
}

func (o Op) String() string {
	if o < opCount && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown"
}

// ALUType is the functional unit class an instruction occupies in execute.
type ALUType uint8

// ALU categories.
const (
	ALUInteger ALUType = iota
	ALUFloatAddition
	ALUFloatMultiplication
	ALUFloatDivision
)

// ALUTypes lists every ALU category.
var ALUTypes = []ALUType{ALUInteger, ALUFloatAddition, ALUFloatMultiplication, ALUFloatDivision}

func (a ALUType) String() string {
	switch a {
	case ALUInteger:
		return "integer"
	case ALUFloatAddition:
		return "float_addition"
	case ALUFloatMultiplication:
		return "float_multiplication"
	case ALUFloatDivision:
		return "float_division"
	}
	return "unknown"
}

// MemAccess is the kind of data memory access an instruction performs.
type MemAccess uint8

// Memory access kinds.
const (
	MemNone MemAccess = iota
	MemLoad
	MemStore
)

// Control describes a control-transfer instruction.
type Control struct {
	// SolveOnDecode is set when the branch outcome depends on no register
	// value, so a pipeline may resolve it while decoding.
	SolveOnDecode bool
}

// Definition is the immutable description of one machine instruction.
type Definition struct {
	Op       Op
	Mnemonic string
	Format   Format
	Params   []ParamType
	// Slots gives the bit range each operand is packed into, parallel to
	// Params.
	Slots []Slot

	// The word is claimed when word&Mask == Match.
	Mask  uint32
	Match uint32

	ALU       ALUType
	Access    MemAccess
	Control   *Control
	Condition FPCondition
}

// Matches reports whether word carries this definition's identifying bits.
func (d *Definition) Matches(word uint32) bool {
	return word&d.Mask == d.Match
}

// IsBranch reports whether the definition transfers control.
func (d *Definition) IsBranch() bool {
	return d.Control != nil
}

// AssembleFromCode wraps a word. The caller guarantees Matches(word).
func (d *Definition) AssembleFromCode(word uint32) *Instruction {
	return &Instruction{Word: word, Def: d}
}

// AssembleFromOperands packs operands into a word. Operands are given in the
// definition's declared order.
func (d *Definition) AssembleFromOperands(operands []Operand, origin Origin) (*Instruction, error) {
	if idx := checkShape(d.Params, operands, false); idx >= 0 {
		return nil, &OperandShapeError{
			Mnemonic: d.Mnemonic,
			Expected: d.Params,
			Got:      operands,
			Index:    idx,
		}
	}

	word := d.Match
	for i, o := range operands {
		word = d.Slots[i].Insert(word, uint32(o.Value))
	}

	return &Instruction{Word: word, Def: d, Origin: origin}, nil
}

// operand recovers operand i from word.
func (d *Definition) operand(word uint32, i int) Operand {
	p := d.Params[i]
	raw := d.Slots[i].Extract(word)

	var v int64
	switch p {
	case ParamSigned16:
		v = int64(SignExtend16(uint16(raw)))
	default:
		v = int64(raw)
	}
	return Operand{Type: p, Value: v}
}

func (d *Definition) String() string {
	var sb strings.Builder
	sb.WriteString(d.Mnemonic)
	for i, p := range d.Params {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}
