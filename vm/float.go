package vm

import (
	"fmt"
	"math"
)

const (
	mantissaSize    = 52
	mantissaMask    = (uint64(1) << mantissaSize) - 1
	exponentMask    = 0x7FF
	exponentBias    = 1023
	dynamicExpBits  = 4
	staticExpBits   = 4
	staticExponent  = 0x300
	maskEntropyBits = (uint64(1) << 22) - 1

	// FScalMask flips the sign and scrambles the exponent of both lanes.
	FScalMask = 0x80F0000000000000
	// eRegisterMask keeps the mantissa and the low exponent bits of an E register.
	eRegisterMask = (uint64(1) << (mantissaSize + dynamicExpBits)) - 1
)

// FloatReg is a pair of double lanes operated on together.
type FloatReg struct {
	Lo float64
	Hi float64
}

func (f FloatReg) Bits() (lo, hi uint64) {
	return math.Float64bits(f.Lo), math.Float64bits(f.Hi)
}

func floatRegFromBits(lo, hi uint64) FloatReg {
	return FloatReg{Lo: math.Float64frombits(lo), Hi: math.Float64frombits(hi)}
}

func (f FloatReg) xorBits(lo, hi uint64) FloatReg {
	l, h := f.Bits()
	return floatRegFromBits(l^lo, h^hi)
}

func (f FloatReg) String() string {
	lo, hi := f.Bits()
	return fmt.Sprintf("{lo: %016x, hi: %016x}", lo, hi)
}

// FloatFromSeedWord builds a finite normal double: the top 5 bits of v select
// an exponent near the bias, the low 52 bits are the mantissa.
func FloatFromSeedWord(v uint64) float64 {
	return math.Float64frombits(smallPositiveFloatBits(v))
}

func smallPositiveFloatBits(v uint64) uint64 {
	exponent := (v >> 59) + exponentBias
	exponent &= exponentMask
	return exponent<<mantissaSize | v&mantissaMask
}

// MaskedFloatBits returns the E register mask derived from v: 22 bits of
// mantissa entropy and an exponent with a fixed high part and a 4-bit
// dynamic window.
func MaskedFloatBits(v uint64) uint64 {
	exponent := uint64(staticExponent)
	exponent |= (v >> (64 - staticExpBits)) << dynamicExpBits
	return v&maskEntropyBits | exponent<<mantissaSize
}

func MaskedFloat(v uint64) float64 {
	return math.Float64frombits(MaskedFloatBits(v))
}

// ConvertInt32Pair converts the two signed 32-bit halves of v to doubles.
func ConvertInt32Pair(v uint64) FloatReg {
	return FloatReg{Lo: float64(int32(v)), Hi: float64(int32(v >> 32))}
}

// MaskE forces a converted value into the positive E register domain.
func MaskE(f FloatReg, emask [2]uint64) FloatReg {
	lo, hi := f.Bits()
	return floatRegFromBits(lo&eRegisterMask|emask[0], hi&eRegisterMask|emask[1])
}
