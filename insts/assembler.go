package insts

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Statement is one parsed source line: a mnemonic and typed operands.
type Statement struct {
	Mnemonic string
	Operands []Operand
	Origin   Origin
}

// Assemble turns statements into instructions. Real definitions are tried
// before pseudo-instructions. A bad statement does not stop the pass; every
// failure is collected into the returned ErrorSet together with its origin.
func (s *Set) Assemble(stmts []Statement) ([]*Instruction, error) {
	var (
		out      []*Instruction
		errorset ErrorSet
	)

	for _, st := range stmts {
		insts, err := s.assembleStatement(st)
		if err != nil {
			errorset.Append(pkgerrors.Wrapf(err, "%s", st.Origin))
			continue
		}
		out = append(out, insts...)
	}

	if errorset.Len() > 0 {
		return out, errorset
	}
	return out, nil
}

func (s *Set) assembleStatement(st Statement) ([]*Instruction, error) {
	d, defErr := s.Find(st.Mnemonic, st.Operands)
	if defErr == nil {
		inst, err := d.AssembleFromOperands(st.Operands, st.Origin)
		if err != nil {
			return nil, err
		}
		return []*Instruction{inst}, nil
	}

	insts, err := s.Expand(st.Mnemonic, st.Operands, st.Origin)
	if err == nil {
		return insts, nil
	}

	// Prefer the real definition's complaint when the pseudo table has
	// nothing under this mnemonic.
	var unknown *UnknownMnemonicError
	if errors.As(err, &unknown) {
		return nil, defErr
	}
	return nil, err
}

// Words returns the encoded words of insts.
func Words(insts []*Instruction) []uint32 {
	words := make([]uint32, len(insts))
	for i, inst := range insts {
		words[i] = inst.Word
	}
	return words
}
