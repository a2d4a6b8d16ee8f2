package insts

import (
	"fmt"
	"strings"
)

// UnknownInstructionError reports a word no registered definition claims.
type UnknownInstructionError struct {
	Word uint32
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unknown instruction 0x%08x", e.Word)
}

// UnknownMnemonicError reports a mnemonic with no definition and no
// pseudo-instruction.
type UnknownMnemonicError struct {
	Mnemonic string
}

func (e *UnknownMnemonicError) Error() string {
	return fmt.Sprintf("unknown mnemonic %q", e.Mnemonic)
}

// OperandShapeError reports operands that disagree with a declared shape.
type OperandShapeError struct {
	Mnemonic string
	Expected []ParamType
	Got      []Operand
	// Index is the first offending operand, or the shorter length on a
	// count mismatch.
	Index int
}

func (e *OperandShapeError) Error() string {
	if len(e.Expected) != len(e.Got) {
		return fmt.Sprintf("%s: expected %d operands, got %d", e.Mnemonic, len(e.Expected), len(e.Got))
	}
	return fmt.Sprintf("%s: operand %d: %s does not fit %s",
		e.Mnemonic, e.Index+1, e.Got[e.Index], e.Expected[e.Index])
}

// MissingDependencyError reports a pseudo-instruction whose expansion needs
// a definition the active set lacks.
type MissingDependencyError struct {
	Pseudo string
	Op     Op
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("pseudo-instruction %s requires %s, which is not in the instruction set", e.Pseudo, e.Op)
}

// DuplicatePatternError reports a registration whose identifying bits
// overlap an existing definition.
type DuplicatePatternError struct {
	Existing *Definition
	Added    *Definition
}

func (e *DuplicatePatternError) Error() string {
	return fmt.Sprintf("%s (mask 0x%08x match 0x%08x) overlaps %s (mask 0x%08x match 0x%08x)",
		e.Added.Mnemonic, e.Added.Mask, e.Added.Match,
		e.Existing.Mnemonic, e.Existing.Mask, e.Existing.Match)
}

// ErrorSet defines a list of one or more errors and is itself an error.
type ErrorSet []error

// Len returns the number of errors.
func (e ErrorSet) Len() int {
	return len(e)
}

// Append adds errors to the set.
func (e *ErrorSet) Append(args ...error) {
	*e = append(*e, args...)
}

// Unwrap exposes the members to errors.Is and errors.As.
func (e ErrorSet) Unwrap() []error {
	return e
}

func (e ErrorSet) Error() string {
	var sb strings.Builder
	for _, err := range e {
		sb.WriteString(err.Error() + "\n")
	}
	return sb.String()
}
