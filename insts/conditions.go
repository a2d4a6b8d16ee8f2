package insts

// FPCondition is one of the sixteen c.cond.fmt predicates.
type FPCondition uint8

// Floating-point compare predicates.
const (
	CondF FPCondition = iota
	CondUN
	CondEQ
	CondUEQ
	CondOLT
	CondULT
	CondOLE
	CondULE
	CondSF
	CondNGLE
	CondSEQ
	CondNGL
	CondLT
	CondNGE
	CondLE
	CondNGT
)

type conditionInfo struct {
	mnemonic  string
	code      uint8
	unordered bool
	equal     bool
	less      bool
	signaling bool
}

// Each predicate carries its own encoding and flags. Nothing is derived from
// the constant's position.
var conditionTable = [...]conditionInfo{
	CondF:    {mnemonic: "f", code: 0x0},
	CondUN:   {mnemonic: "un", code: 0x1, unordered: true},
	CondEQ:   {mnemonic: "eq", code: 0x2, equal: true},
	CondUEQ:  {mnemonic: "ueq", code: 0x3, unordered: true, equal: true},
	CondOLT:  {mnemonic: "olt", code: 0x4, less: true},
	CondULT:  {mnemonic: "ult", code: 0x5, unordered: true, less: true},
	CondOLE:  {mnemonic: "ole", code: 0x6, equal: true, less: true},
	CondULE:  {mnemonic: "ule", code: 0x7, unordered: true, equal: true, less: true},
	CondSF:   {mnemonic: "sf", code: 0x8, signaling: true},
	CondNGLE: {mnemonic: "ngle", code: 0x9, unordered: true, signaling: true},
	CondSEQ:  {mnemonic: "seq", code: 0xA, equal: true, signaling: true},
	CondNGL:  {mnemonic: "ngl", code: 0xB, unordered: true, equal: true, signaling: true},
	CondLT:   {mnemonic: "lt", code: 0xC, less: true, signaling: true},
	CondNGE:  {mnemonic: "nge", code: 0xD, unordered: true, less: true, signaling: true},
	CondLE:   {mnemonic: "le", code: 0xE, equal: true, less: true, signaling: true},
	CondNGT:  {mnemonic: "ngt", code: 0xF, unordered: true, equal: true, less: true, signaling: true},
}

// Conditions lists every predicate.
func Conditions() []FPCondition {
	out := make([]FPCondition, len(conditionTable))
	for i := range conditionTable {
		out[i] = FPCondition(i)
	}
	return out
}

// ConditionByCode returns the predicate whose encoding is code.
func ConditionByCode(code uint8) (FPCondition, bool) {
	for i, c := range conditionTable {
		if c.code == code {
			return FPCondition(i), true
		}
	}
	return 0, false
}

func (c FPCondition) info() conditionInfo {
	if int(c) < len(conditionTable) {
		return conditionTable[c]
	}
	return conditionInfo{mnemonic: "?"}
}

// Mnemonic returns the predicate suffix, e.g. "olt".
func (c FPCondition) Mnemonic() string { return c.info().mnemonic }

// Code returns the 4-bit cond encoding.
func (c FPCondition) Code() uint8 { return c.info().code }

// Unordered reports whether the predicate holds for unordered operands.
func (c FPCondition) Unordered() bool { return c.info().unordered }

// Equal reports whether the predicate holds for equal operands.
func (c FPCondition) Equal() bool { return c.info().equal }

// Less reports whether the predicate holds when fs < ft.
func (c FPCondition) Less() bool { return c.info().less }

// Signaling reports whether an unordered comparison raises an invalid
// operation exception.
func (c FPCondition) Signaling() bool { return c.info().signaling }

// Evaluate applies the predicate to a comparison outcome.
func (c FPCondition) Evaluate(less, equal, unordered bool) bool {
	i := c.info()
	return (i.less && less) || (i.equal && equal) || (i.unordered && unordered)
}

func (c FPCondition) String() string { return c.Mnemonic() }
