package emu

import "math"

// AddSigned returns x+y and whether the signed sum overflowed. Overflow
// happened when the result's sign differs from both inputs' signs.
func AddSigned(x, y int32) (int32, bool) {
	r := x + y
	return r, (x^r)&(y^r) < 0
}

// SubSigned returns x-y and whether the signed difference overflowed.
func SubSigned(x, y int32) (int32, bool) {
	r := x - y
	return r, (x^y)&(x^r) < 0
}

// JoinHiLo combines HI and LO into one 64-bit value.
func JoinHiLo(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

// SplitHiLo splits a 64-bit value into HI and LO.
func SplitHiLo(v uint64) (hi, lo uint32) {
	return uint32(v >> 32), uint32(v)
}

// Multiply returns the signed 64-bit product as HI and LO.
func Multiply(x, y int32) (hi, lo uint32) {
	return SplitHiLo(uint64(int64(x) * int64(y)))
}

// MultiplyUnsigned returns the unsigned 64-bit product as HI and LO.
func MultiplyUnsigned(x, y uint32) (hi, lo uint32) {
	return SplitHiLo(uint64(x) * uint64(y))
}

// MultiplyAdd adds the signed product x*y to HI:LO.
func MultiplyAdd(hi, lo uint32, x, y int32) (uint32, uint32) {
	acc := int64(JoinHiLo(hi, lo)) + int64(x)*int64(y)
	return SplitHiLo(uint64(acc))
}

// MultiplyAddUnsigned adds the unsigned product x*y to HI:LO.
func MultiplyAddUnsigned(hi, lo uint32, x, y uint32) (uint32, uint32) {
	return SplitHiLo(JoinHiLo(hi, lo) + uint64(x)*uint64(y))
}

// Divide returns the signed remainder (HI) and quotient (LO). Division by
// zero yields zero for both; the architecture leaves the result
// unpredictable.
func Divide(x, y int32) (hi, lo uint32) {
	if y == 0 {
		return 0, 0
	}
	return uint32(x % y), uint32(x / y)
}

// DivideUnsigned returns the unsigned remainder (HI) and quotient (LO).
// Division by zero yields zero for both.
func DivideUnsigned(x, y uint32) (hi, lo uint32) {
	if y == 0 {
		return 0, 0
	}
	return x % y, x / y
}

// SplitFloat64 returns the low and high words of a double.
func SplitFloat64(v float64) (lo, hi uint32) {
	bits := math.Float64bits(v)
	return uint32(bits), uint32(bits >> 32)
}

// JoinFloat64 assembles a double from its low and high words.
func JoinFloat64(lo, hi uint32) float64 {
	return math.Float64frombits(uint64(hi)<<32 | uint64(lo))
}

// CompareFloat classifies a against b. A NaN on either side is unordered and
// neither less nor equal.
func CompareFloat(a, b float64) (less, equal, unordered bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false, false, true
	}
	return a < b, a == b, false
}
