package insts

import "fmt"

// ParamType is the kind of an assembler operand slot.
type ParamType uint8

// Parameter types.
const (
	ParamUnknown ParamType = iota
	ParamRegister
	ParamFloatRegister
	ParamEvenFloatRegister
	ParamSigned16
	ParamUnsigned16
	ParamSigned32
	ParamUnsigned32
	ParamUnsigned3
	ParamUnsigned5
	ParamTarget26
)

var paramNames = [...]string{
	ParamUnknown:           "unknown",
	ParamRegister:          "register",
	ParamFloatRegister:     "float register",
	ParamEvenFloatRegister: "even float register",
	ParamSigned16:          "signed 16-bit immediate",
	ParamUnsigned16:        "unsigned 16-bit immediate",
	ParamSigned32:          "signed 32-bit immediate",
	ParamUnsigned32:        "unsigned 32-bit immediate",
	ParamUnsigned3:         "unsigned 3-bit immediate",
	ParamUnsigned5:         "unsigned 5-bit immediate",
	ParamTarget26:          "26-bit jump target",
}

func (p ParamType) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return "unknown"
}

// IsRegister reports whether p names a register slot.
func (p ParamType) IsRegister() bool {
	switch p {
	case ParamRegister, ParamFloatRegister, ParamEvenFloatRegister:
		return true
	}
	return false
}

// IsFloat reports whether p names a floating-point register slot.
func (p ParamType) IsFloat() bool {
	return p == ParamFloatRegister || p == ParamEvenFloatRegister
}

// Range returns the inclusive value range of p.
func (p ParamType) Range() (lo, hi int64) {
	switch p {
	case ParamRegister, ParamFloatRegister, ParamEvenFloatRegister:
		return 0, 31
	case ParamSigned16:
		return -1 << 15, 1<<15 - 1
	case ParamUnsigned16:
		return 0, 1<<16 - 1
	case ParamSigned32:
		return -1 << 31, 1<<31 - 1
	case ParamUnsigned32:
		return 0, 1<<32 - 1
	case ParamUnsigned3:
		return 0, 7
	case ParamUnsigned5:
		return 0, 31
	case ParamTarget26:
		return 0, 1<<26 - 1
	}
	return 0, -1
}

// Accepts reports whether operand o may fill a slot of type p. The operand
// must carry the slot's type and a value in its range. Register kinds are
// the one relaxation: any float register fills a float slot, and an even one
// fills an even float slot.
func (p ParamType) Accepts(o Operand) bool {
	lo, hi := p.Range()
	if o.Value < lo || o.Value > hi {
		return false
	}

	switch p {
	case ParamUnknown:
		return false
	case ParamFloatRegister:
		return o.Type.IsFloat()
	case ParamEvenFloatRegister:
		return o.Type.IsFloat() && o.Value%2 == 0
	}
	return o.Type == p
}

// Widens reports whether o may fill a slot of type p in a pseudo-instruction.
// Besides what Accepts takes, an immediate of another type fits when its
// value is in range. Registers never widen into immediates or the reverse.
func (p ParamType) Widens(o Operand) bool {
	if p.Accepts(o) {
		return true
	}
	if p == ParamUnknown || p.IsRegister() || o.Type == ParamUnknown || o.Type.IsRegister() {
		return false
	}
	lo, hi := p.Range()
	return o.Value >= lo && o.Value <= hi
}

// Operand is a typed assembler operand as produced by a parser.
type Operand struct {
	Type  ParamType
	Value int64
}

func (o Operand) String() string {
	switch o.Type {
	case ParamRegister:
		return GPRName(int(o.Value))
	case ParamFloatRegister, ParamEvenFloatRegister:
		return fmt.Sprintf("$f%d", o.Value)
	case ParamUnsigned16, ParamUnsigned32, ParamTarget26:
		return fmt.Sprintf("0x%x", o.Value)
	default:
		return fmt.Sprintf("%d", o.Value)
	}
}

// Reg returns a general-purpose register operand.
func Reg(index int) Operand { return Operand{Type: ParamRegister, Value: int64(index)} }

// FReg returns a floating-point register operand.
func FReg(index int) Operand { return Operand{Type: ParamFloatRegister, Value: int64(index)} }

// Imm returns an immediate operand of the given type.
func Imm(t ParamType, value int64) Operand { return Operand{Type: t, Value: value} }

// checkShape validates operands against params and returns the index of the
// first offending operand, or -1. With widen set, immediates are matched by
// Widens instead of Accepts.
func checkShape(params []ParamType, operands []Operand, widen bool) int {
	if len(params) != len(operands) {
		return min(len(params), len(operands))
	}
	for i, p := range params {
		ok := p.Accepts(operands[i])
		if widen {
			ok = p.Widens(operands[i])
		}
		if !ok {
			return i
		}
	}
	return -1
}

// retype gives each immediate operand the type of its slot. Registers keep
// their own kind.
func retype(params []ParamType, operands []Operand) []Operand {
	out := make([]Operand, len(operands))
	for i, o := range operands {
		if !o.Type.IsRegister() {
			o.Type = params[i]
		}
		out[i] = o
	}
	return out
}

// Shape returns the parameter types of operands.
func Shape(operands []Operand) []ParamType {
	shape := make([]ParamType, len(operands))
	for i, o := range operands {
		shape[i] = o.Type
	}
	return shape
}

var gprNames = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

// General-purpose register indices with a fixed role.
const (
	RegZero = 0
	RegAT   = 1
	RegV0   = 2
	RegA0   = 4
	RegA1   = 5
	RegA2   = 6
	RegSP   = 29
	RegRA   = 31
)

// GPRName returns the conventional name of a general-purpose register.
func GPRName(index int) string {
	if index < 0 || index >= len(gprNames) {
		return fmt.Sprintf("$%d", index)
	}
	return gprNames[index]
}
