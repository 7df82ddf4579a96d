// Package math provides checked unsigned 64-bit arithmetic.
// Every ledger-affecting value in the system flows through these four
// functions; no raw arithmetic operator is applied to balances, interest,
// or counters anywhere else. Failures surface as explicit error codes
// instead of wrapping or panicking.
package math

import (
	"math/bits"

	"CertLedger/internal/errcode"
)

// MaxU64 is the largest representable ledger magnitude.
const MaxU64 = ^uint64(0)

// Add returns a+b or errcode.Overflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errcode.Overflow
	}
	return sum, nil
}

// Sub returns a-b or errcode.Underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errcode.Underflow
	}
	return diff, nil
}

// Mul returns a*b or errcode.Overflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errcode.Overflow
	}
	return lo, nil
}

// Div returns floor(a/b) or errcode.DivisionByZero. Truncation toward
// zero is the documented precision loss; Div never rounds up.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, errcode.DivisionByZero
	}
	return a / b, nil
}
