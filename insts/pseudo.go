package insts

import (
	"github.com/pkg/errors"
)

// Pseudo is an assembler macro that expands into a fixed number of real
// instructions.
type Pseudo struct {
	Mnemonic string
	Params   []ParamType
	Length   int
	expand   func(b *Builder, operands []Operand)
}

// NewPseudo declares a pseudo-instruction. The expand function emits exactly
// length instructions through the builder.
func NewPseudo(
	mnemonic string,
	params []ParamType,
	length int,
	expand func(b *Builder, operands []Operand),
) *Pseudo {
	return &Pseudo{Mnemonic: mnemonic, Params: params, Length: length, expand: expand}
}

// Expand checks operands against the declared shape, gives immediates their
// declared types and synthesises the instruction sequence. Every step is
// resolved through s by Op.
func (p *Pseudo) Expand(s *Set, operands []Operand, origin Origin) ([]*Instruction, error) {
	if idx := checkShape(p.Params, operands, true); idx >= 0 {
		return nil, &OperandShapeError{
			Mnemonic: p.Mnemonic,
			Expected: p.Params,
			Got:      operands,
			Index:    idx,
		}
	}

	b := &Builder{set: s, pseudo: p.Mnemonic, origin: origin}
	p.expand(b, retype(p.Params, operands))
	if b.err != nil {
		return nil, b.err
	}
	if len(b.out) != p.Length {
		return nil, errors.Errorf("pseudo-instruction %s emitted %d instructions, declared %d",
			p.Mnemonic, len(b.out), p.Length)
	}
	return b.out, nil
}

// Builder collects the steps of one expansion. The first failure sticks.
type Builder struct {
	set    *Set
	pseudo string
	origin Origin
	out    []*Instruction
	err    error
}

// Emit appends the real instruction op with the given operands.
func (b *Builder) Emit(op Op, operands ...Operand) {
	if b.err != nil {
		return
	}

	d, ok := b.set.Lookup(op)
	if !ok {
		b.err = &MissingDependencyError{Pseudo: b.pseudo, Op: op}
		return
	}

	inst, err := d.AssembleFromOperands(operands, b.origin)
	if err != nil {
		b.err = errors.Wrapf(err, "expanding %s", b.pseudo)
		return
	}
	b.out = append(b.out, inst)
}

// SplitImmediate returns the upper and lower halves of a 32-bit value.
func SplitImmediate(v int64) (hi, lo int64) {
	u := uint32(v)
	return int64(u >> 16), int64(u & 0xFFFF)
}

func u16(v int64) Operand { return Imm(ParamUnsigned16, v) }

func loadImmediate(b *Builder, ops []Operand) {
	hi, lo := SplitImmediate(ops[1].Value)
	b.Emit(OpLUI, Reg(RegAT), u16(hi))
	b.Emit(OpORI, ops[0], Reg(RegAT), u16(lo))
}

// DefaultPseudos returns the standard assembler macros. Branch offsets are
// relative to the expanded branch instruction.
func DefaultPseudos() []*Pseudo {
	rr := []ParamType{ParamRegister, ParamRegister}
	return []*Pseudo{
		NewPseudo("li", []ParamType{ParamRegister, ParamSigned32}, 2, loadImmediate),
		NewPseudo("li", []ParamType{ParamRegister, ParamUnsigned32}, 2, loadImmediate),
		NewPseudo("la", []ParamType{ParamRegister, ParamUnsigned32}, 2, loadImmediate),
		NewPseudo("move", rr, 1, func(b *Builder, ops []Operand) {
			b.Emit(OpADDU, ops[0], ops[1], Reg(RegZero))
		}),
		NewPseudo("neg", rr, 1, func(b *Builder, ops []Operand) {
			b.Emit(OpSUB, ops[0], Reg(RegZero), ops[1])
		}),
		NewPseudo("b", []ParamType{ParamSigned16}, 1, func(b *Builder, ops []Operand) {
			b.Emit(OpBEQ, Reg(RegZero), Reg(RegZero), ops[0])
		}),
		NewPseudo("blt", []ParamType{ParamRegister, ParamRegister, ParamSigned16}, 2,
			func(b *Builder, ops []Operand) {
				b.Emit(OpSLT, Reg(RegAT), ops[0], ops[1])
				b.Emit(OpBNE, Reg(RegAT), Reg(RegZero), ops[2])
			}),
		NewPseudo("bge", []ParamType{ParamRegister, ParamRegister, ParamSigned16}, 2,
			func(b *Builder, ops []Operand) {
				b.Emit(OpSLT, Reg(RegAT), ops[0], ops[1])
				b.Emit(OpBEQ, Reg(RegAT), Reg(RegZero), ops[2])
			}),
		NewPseudo("addi", []ParamType{ParamRegister, ParamRegister, ParamSigned32}, 3,
			func(b *Builder, ops []Operand) {
				hi, lo := SplitImmediate(ops[2].Value)
				b.Emit(OpLUI, Reg(RegAT), u16(hi))
				b.Emit(OpORI, Reg(RegAT), Reg(RegAT), u16(lo))
				b.Emit(OpADD, ops[0], ops[1], Reg(RegAT))
			}),
		NewPseudo("nop", nil, 1, func(b *Builder, _ []Operand) {
			b.Emit(OpSLL, Reg(RegZero), Reg(RegZero), Imm(ParamUnsigned5, 0))
		}),
	}
}
