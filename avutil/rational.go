//go:build !ios && !android && (amd64 || arm64)

package avutil

import "unsafe"

// Rational mirrors AVRational.
type Rational struct {
	Num int32
	Den int32
}

// Float64 returns 0 for a zero denominator.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports a zero numerator or denominator.
func (r Rational) IsZero() bool { return r.Num == 0 || r.Den == 0 }

// ReadRational reads an AVRational stored at ptr.
func ReadRational(ptr unsafe.Pointer) Rational {
	if ptr == nil {
		return Rational{}
	}
	return *(*Rational)(ptr)
}
