package insts

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Set is an instruction set registry. It is built once and then only read.
type Set struct {
	defs       []*Definition
	byOpcode   map[uint8][]*Definition
	byMnemonic map[string][]*Definition
	byOp       map[Op]*Definition
	pseudos    map[string][]*Pseudo
}

// NewSet creates an empty registry.
func NewSet() *Set {
	return &Set{
		byOpcode:   make(map[uint8][]*Definition),
		byMnemonic: make(map[string][]*Definition),
		byOp:       make(map[Op]*Definition),
		pseudos:    make(map[string][]*Pseudo),
	}
}

// Register adds a definition. It fails if the definition's identifying
// pattern overlaps one already registered, since a word would then be
// claimed twice.
func (s *Set) Register(d *Definition) error {
	opcodeMask := SlotOpcode.Mask() << SlotOpcode.Shift
	switch {
	case len(d.Params) != len(d.Slots):
		return errors.Errorf("%s: %d params but %d slots", d.Mnemonic, len(d.Params), len(d.Slots))
	case d.Match&^d.Mask != 0:
		return errors.Errorf("%s: match bits 0x%08x outside mask 0x%08x", d.Mnemonic, d.Match, d.Mask)
	case d.Mask&opcodeMask != opcodeMask:
		return errors.Errorf("%s: pattern does not fix the opcode", d.Mnemonic)
	}

	opcode := Opcode(d.Match)
	for _, other := range s.byOpcode[opcode] {
		if overlaps(d, other) {
			return &DuplicatePatternError{Existing: other, Added: d}
		}
	}

	s.defs = append(s.defs, d)
	s.byOpcode[opcode] = append(s.byOpcode[opcode], d)
	key := strings.ToLower(d.Mnemonic)
	s.byMnemonic[key] = append(s.byMnemonic[key], d)
	if _, ok := s.byOp[d.Op]; !ok {
		s.byOp[d.Op] = d
	}
	return nil
}

// Two patterns overlap when some word satisfies both, which is the case
// exactly when they agree on every bit both of them fix.
func overlaps(a, b *Definition) bool {
	common := a.Mask & b.Mask
	return (a.Match^b.Match)&common == 0
}

// MustRegister registers definitions and panics on the first failure. It is
// meant for building fixed catalogs.
func (s *Set) MustRegister(defs ...*Definition) {
	for _, d := range defs {
		if err := s.Register(d); err != nil {
			panic(err)
		}
	}
}

// Definitions returns the registered definitions in registration order.
func (s *Set) Definitions() []*Definition {
	return slices.Clone(s.defs)
}

// Len returns the number of registered definitions.
func (s *Set) Len() int {
	return len(s.defs)
}

// Lookup returns the definition registered for op. Families sharing an Op,
// such as the compare predicates, return the first one registered.
func (s *Set) Lookup(op Op) (*Definition, bool) {
	d, ok := s.byOp[op]
	return d, ok
}

// ResolveByWord returns the unique definition claiming word.
func (s *Set) ResolveByWord(word uint32) (*Definition, error) {
	for _, d := range s.byOpcode[Opcode(word)] {
		if d.Matches(word) {
			return d, nil
		}
	}
	return nil, &UnknownInstructionError{Word: word}
}

// Decode resolves word and wraps it as an instruction.
func (s *Set) Decode(word uint32) (*Instruction, error) {
	d, err := s.ResolveByWord(word)
	if err != nil {
		return nil, err
	}
	return d.AssembleFromCode(word), nil
}

// ResolveByMnemonic returns the definition with the given mnemonic whose
// declared shape equals shape.
func (s *Set) ResolveByMnemonic(mnemonic string, shape []ParamType) (*Definition, error) {
	candidates := s.byMnemonic[strings.ToLower(mnemonic)]
	if len(candidates) == 0 {
		return nil, &UnknownMnemonicError{Mnemonic: mnemonic}
	}
	for _, d := range candidates {
		if slices.Equal(d.Params, shape) {
			return d, nil
		}
	}

	got := make([]Operand, len(shape))
	for i, p := range shape {
		got[i] = Operand{Type: p}
	}
	return nil, &OperandShapeError{
		Mnemonic: mnemonic,
		Expected: candidates[0].Params,
		Got:      got,
		Index:    firstShapeMismatch(candidates[0].Params, shape),
	}
}

func firstShapeMismatch(want, got []ParamType) int {
	if len(want) != len(got) {
		return min(len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return i
		}
	}
	return -1
}

// Find returns the first definition with the given mnemonic that accepts
// operands. Immediates must carry the slot's exact type.
func (s *Set) Find(mnemonic string, operands []Operand) (*Definition, error) {
	candidates := s.byMnemonic[strings.ToLower(mnemonic)]
	if len(candidates) == 0 {
		return nil, &UnknownMnemonicError{Mnemonic: mnemonic}
	}
	for _, d := range candidates {
		if checkShape(d.Params, operands, false) < 0 {
			return d, nil
		}
	}
	return nil, &OperandShapeError{
		Mnemonic: mnemonic,
		Expected: candidates[0].Params,
		Got:      operands,
		Index:    checkShape(candidates[0].Params, operands, false),
	}
}

// RegisterPseudo adds a pseudo-instruction.
func (s *Set) RegisterPseudo(p *Pseudo) error {
	if p.Length <= 0 {
		return errors.Errorf("pseudo-instruction %s: non-positive length %d", p.Mnemonic, p.Length)
	}
	key := strings.ToLower(p.Mnemonic)
	for _, other := range s.pseudos[key] {
		if slices.Equal(other.Params, p.Params) {
			return errors.Errorf("pseudo-instruction %s already registered for this shape", p.Mnemonic)
		}
	}
	s.pseudos[key] = append(s.pseudos[key], p)
	return nil
}

// FindPseudo returns the pseudo-instruction with the given mnemonic that
// accepts operands. Unlike Find, an immediate may fill a slot of another
// immediate type when its value fits.
func (s *Set) FindPseudo(mnemonic string, operands []Operand) (*Pseudo, error) {
	candidates := s.pseudos[strings.ToLower(mnemonic)]
	if len(candidates) == 0 {
		return nil, &UnknownMnemonicError{Mnemonic: mnemonic}
	}
	for _, p := range candidates {
		if checkShape(p.Params, operands, true) < 0 {
			return p, nil
		}
	}
	return nil, &OperandShapeError{
		Mnemonic: mnemonic,
		Expected: candidates[0].Params,
		Got:      operands,
		Index:    checkShape(candidates[0].Params, operands, true),
	}
}

// Expand expands a pseudo-instruction into real instructions.
func (s *Set) Expand(mnemonic string, operands []Operand, origin Origin) ([]*Instruction, error) {
	p, err := s.FindPseudo(mnemonic, operands)
	if err != nil {
		return nil, err
	}
	return p.Expand(s, operands, origin)
}
