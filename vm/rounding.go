package vm

import (
	"math"
	"math/big"
)

// RoundingMode is the 2-bit float rounding control set by CFROUND.
type RoundingMode uint8

const (
	RoundNearest RoundingMode = iota
	RoundDown
	RoundUp
	RoundToZero
)

func (m RoundingMode) String() string {
	switch m {
	case RoundNearest:
		return "nearest"
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundToZero:
		return "zero"
	}
	return "invalid"
}

// defaultNaN is the quiet NaN an x86 FPU returns for invalid operations.
const defaultNaN = 0xFFF8000000000000

const quietBit = 1 << 51

var (
	// below these magnitudes the FMA residual may underflow and lose its sign
	mulExactBound = math.Ldexp(1, -969)
	divExactBound = math.Ldexp(1, -960)
	sqrtScaleIn   = math.Ldexp(1, 108)
	sqrtScaleOut  = math.Ldexp(1, -54)
	sqrtLowBound  = math.Ldexp(1, -968)
)

func nanResult(r, a, b float64) float64 {
	if !math.IsNaN(r) {
		return r
	}
	if math.IsNaN(a) {
		return math.Float64frombits(math.Float64bits(a) | quietBit)
	}
	if math.IsNaN(b) {
		return math.Float64frombits(math.Float64bits(b) | quietBit)
	}
	return math.Float64frombits(defaultNaN)
}

func nextUp(f float64) float64   { return math.Nextafter(f, math.Inf(1)) }
func nextDown(f float64) float64 { return math.Nextafter(f, math.Inf(-1)) }

// adjust moves the round-to-nearest result f to its directed neighbour. c is
// the sign of (exact - f).
func adjust(f float64, c int, mode RoundingMode) float64 {
	switch mode {
	case RoundDown:
		if c < 0 {
			return nextDown(f)
		}
	case RoundUp:
		if c > 0 {
			return nextUp(f)
		}
	case RoundToZero:
		if c > 0 && f < 0 {
			return nextUp(f)
		}
		if c < 0 && f > 0 {
			return nextDown(f)
		}
	}
	return f
}

// overflow is the result of a finite operation whose exact value exceeds the
// largest double.
func overflow(mode RoundingMode, positive bool) float64 {
	switch {
	case mode == RoundToZero, mode == RoundDown && positive, mode == RoundUp && !positive:
		if positive {
			return math.MaxFloat64
		}
		return -math.MaxFloat64
	}
	if positive {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func isFinite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

func Add(mode RoundingMode, a, b float64) float64 {
	s := a + b
	if !isFinite(s) {
		if isFinite(a) && isFinite(b) {
			return overflow(mode, s > 0)
		}
		return nanResult(s, a, b)
	}
	if mode == RoundNearest {
		return s
	}
	if s == 0 {
		// sums that cancel exactly are -0 when rounding down
		if mode == RoundDown && !(a == 0 && b == 0 && !math.Signbit(a) && !math.Signbit(b)) {
			return math.Copysign(0, -1)
		}
		return s
	}
	bb := s - a
	err := (a - (s - bb)) + (b - bb)
	return adjust(s, sign(err), mode)
}

func Sub(mode RoundingMode, a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult(a-b, a, b)
	}
	return Add(mode, a, -b)
}

func Mul(mode RoundingMode, a, b float64) float64 {
	p := float64(a * b)
	if !isFinite(p) {
		if isFinite(a) && isFinite(b) {
			return overflow(mode, math.Signbit(a) == math.Signbit(b))
		}
		return nanResult(p, a, b)
	}
	if mode == RoundNearest || a == 0 || b == 0 {
		return p
	}
	if math.Abs(p) < mulExactBound {
		x := new(big.Rat).SetFloat64(a)
		return roundRat(x.Mul(x, new(big.Rat).SetFloat64(b)), mode)
	}
	return adjust(p, sign(math.FMA(a, b, -p)), mode)
}

func Div(mode RoundingMode, a, b float64) float64 {
	q := a / b
	if !isFinite(a) || !isFinite(b) || a == 0 || b == 0 {
		return nanResult(q, a, b)
	}
	if math.IsInf(q, 0) {
		return overflow(mode, q > 0)
	}
	if mode == RoundNearest {
		return q
	}
	if math.Abs(a) < divExactBound || math.Abs(b) < divExactBound || math.Abs(q) < divExactBound {
		x := new(big.Rat).SetFloat64(a)
		return roundRat(x.Quo(x, new(big.Rat).SetFloat64(b)), mode)
	}
	rem := math.FMA(-q, b, a)
	return adjust(q, sign(rem)*sign(b), mode)
}

func Sqrt(mode RoundingMode, a float64) float64 {
	switch {
	case math.IsNaN(a):
		return nanResult(a, a, 0)
	case a == 0 || math.IsInf(a, 1):
		return a
	case a < 0:
		return math.Float64frombits(defaultNaN)
	}
	if mode == RoundNearest {
		return math.Sqrt(a)
	}
	if a < sqrtLowBound {
		return Sqrt(mode, a*sqrtScaleIn) * sqrtScaleOut
	}
	s := math.Sqrt(a)
	err := math.FMA(-s, s, a)
	switch {
	case err > 0 && mode == RoundUp:
		return nextUp(s)
	case err < 0 && mode != RoundUp:
		return nextDown(s)
	}
	return s
}

// roundRat rounds an exact nonzero rational to a double in mode.
func roundRat(x *big.Rat, mode RoundingMode) float64 {
	f, _ := x.Float64()
	if f == 0 && x.Sign() < 0 {
		f = math.Copysign(0, -1)
	}
	if math.IsInf(f, 0) {
		return overflow(mode, f > 0)
	}
	c := x.Cmp(new(big.Rat).SetFloat64(f))
	return adjust(f, c, mode)
}
