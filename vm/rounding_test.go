package vm

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

var bigModes = map[RoundingMode]big.RoundingMode{
	RoundNearest: big.ToNearestEven,
	RoundDown:    big.ToNegativeInf,
	RoundUp:      big.ToPositiveInf,
	RoundToZero:  big.ToZero,
}

func newBig(mode RoundingMode) *big.Float {
	return new(big.Float).SetPrec(53).SetMode(bigModes[mode])
}

func bigOp(mode RoundingMode, op string, a, b float64) float64 {
	x, y := big.NewFloat(a), big.NewFloat(b)
	z := newBig(mode)
	switch op {
	case "add":
		z.Add(x, y)
	case "sub":
		z.Sub(x, y)
	case "mul":
		z.Mul(x, y)
	case "div":
		z.Quo(x, y)
	}
	f, _ := z.Float64()
	return f
}

// randomOperand returns a normal double with a moderate exponent, like the
// values the machine feeds its float units.
func randomOperand(rng *rand.Rand) float64 {
	f := FloatFromSeedWord(rng.Uint64())
	if rng.Intn(2) == 0 {
		f = -f
	}
	return math.Ldexp(f, rng.Intn(80)-40)
}

func TestDirectedRoundingAgainstBigFloat(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ops := map[string]func(RoundingMode, float64, float64) float64{
		"add": Add, "sub": Sub, "mul": Mul, "div": Div,
	}
	for i := 0; i < 5000; i++ {
		a, b := randomOperand(rng), randomOperand(rng)
		for name, op := range ops {
			for mode := range bigModes {
				got := op(mode, a, b)
				want := bigOp(mode, name, a, b)
				require.Equal(t, math.Float64bits(want), math.Float64bits(got),
					"%s %s(%v, %v)", mode, name, a, b)
			}
		}
	}
}

func TestAddCancellationSign(t *testing.T) {
	assert.True(t, math.Signbit(Add(RoundDown, 1.5, -1.5)))
	assert.False(t, math.Signbit(Add(RoundUp, 1.5, -1.5)))
	assert.False(t, math.Signbit(Add(RoundNearest, 1.5, -1.5)))
	assert.False(t, math.Signbit(Add(RoundDown, 0, 0)))
	assert.True(t, math.Signbit(Sub(RoundDown, 0, 0)))
	assert.True(t, math.Signbit(Add(RoundToZero, math.Copysign(0, -1), math.Copysign(0, -1))))
}

func TestOverflow(t *testing.T) {
	maxF := math.MaxFloat64
	assert.Equal(t, maxF, Add(RoundDown, maxF, maxF))
	assert.Equal(t, maxF, Add(RoundToZero, maxF, maxF))
	assert.True(t, math.IsInf(Add(RoundUp, maxF, maxF), 1))
	assert.True(t, math.IsInf(Add(RoundNearest, maxF, maxF), 1))
	assert.Equal(t, -maxF, Mul(RoundUp, -maxF, 2))
	assert.True(t, math.IsInf(Mul(RoundDown, -maxF, 2), -1))
	assert.Equal(t, maxF, Div(RoundToZero, maxF, 0.5))
	assert.True(t, math.IsInf(Div(RoundNearest, 1, 0), 1))
	assert.True(t, math.IsInf(Add(RoundToZero, math.Inf(1), 1), 1))
}

func TestSubnormalResults(t *testing.T) {
	tiny := math.Ldexp(1, -600)
	smallest := math.SmallestNonzeroFloat64
	assert.Equal(t, 0.0, Mul(RoundNearest, tiny, tiny))
	assert.Equal(t, smallest, Mul(RoundUp, tiny, tiny))
	assert.Equal(t, 0.0, Mul(RoundDown, tiny, tiny))
	assert.Equal(t, -smallest, Mul(RoundDown, -tiny, tiny))
	assert.True(t, math.Signbit(Mul(RoundUp, -tiny, tiny)))
	assert.Equal(t, smallest, Div(RoundUp, math.Ldexp(1, -1000), math.Ldexp(1, 100)))
	assert.Equal(t, 0.0, Div(RoundToZero, math.Ldexp(1, -1000), math.Ldexp(1, 100)))
}

func TestDivisionNeighbours(t *testing.T) {
	lo := Div(RoundDown, 1, 3)
	hi := Div(RoundUp, 1, 3)
	assert.Equal(t, hi, math.Nextafter(lo, 1))
	assert.Equal(t, lo, Div(RoundToZero, 1, 3))
	assert.Equal(t, -hi, Div(RoundDown, -1, 3))
}

// checkSqrt verifies s is the directed rounding of sqrt(a) using exact squares.
func checkSqrt(t *testing.T, mode RoundingMode, a, s float64) {
	t.Helper()
	exact := new(big.Float).SetPrec(2200).SetFloat64(a)
	sq := func(f float64) *big.Float {
		x := new(big.Float).SetPrec(2200).SetFloat64(f)
		return x.Mul(x, x)
	}
	below, above := math.Nextafter(s, 0), math.Nextafter(s, math.Inf(1))
	switch mode {
	case RoundDown, RoundToZero:
		require.LessOrEqual(t, sq(s).Cmp(exact), 0, "sqrt(%v) %s", a, mode)
		require.Greater(t, sq(above).Cmp(exact), 0, "sqrt(%v) %s", a, mode)
	case RoundUp:
		require.GreaterOrEqual(t, sq(s).Cmp(exact), 0, "sqrt(%v) %s", a, mode)
		require.Less(t, sq(below).Cmp(exact), 0, "sqrt(%v) %s", a, mode)
	case RoundNearest:
		require.Equal(t, math.Sqrt(a), s)
	}
}

func TestSqrtDirected(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	inputs := []float64{2, 3, 0.5, 1e300, math.Ldexp(1, -1060), math.SmallestNonzeroFloat64, math.Ldexp(3, -1000)}
	for i := 0; i < 2000; i++ {
		inputs = append(inputs, math.Abs(randomOperand(rng)))
	}
	for _, a := range inputs {
		for mode := range bigModes {
			checkSqrt(t, mode, a, Sqrt(mode, a))
		}
	}
	assert.Equal(t, 2.0, Sqrt(RoundUp, 4))
	assert.Equal(t, 2.0, Sqrt(RoundDown, 4))
}

func TestNaNResults(t *testing.T) {
	assert.Equal(t, uint64(defaultNaN), math.Float64bits(Sqrt(RoundNearest, -1)))
	assert.Equal(t, uint64(defaultNaN), math.Float64bits(Sqrt(RoundUp, -4)))
	assert.True(t, math.Signbit(Sqrt(RoundNearest, math.Copysign(0, -1))))
	assert.Equal(t, uint64(defaultNaN), math.Float64bits(Add(RoundDown, math.Inf(1), math.Inf(-1))))
	assert.Equal(t, uint64(defaultNaN), math.Float64bits(Div(RoundNearest, 0, 0)))
	assert.Equal(t, uint64(defaultNaN), math.Float64bits(Mul(RoundUp, 0, math.Inf(1))))

	payload := math.Float64frombits(0x7FF0000000000001)
	assert.Equal(t, uint64(0x7FF8000000000001), math.Float64bits(Add(RoundNearest, payload, 1)))
	assert.Equal(t, uint64(0x7FF8000000000001), math.Float64bits(Sub(RoundDown, 1, payload)))
}

func TestRoundingModeString(t *testing.T) {
	assert.Equal(t, "nearest", RoundNearest.String())
	assert.Equal(t, "zero", RoundToZero.String())
	assert.Equal(t, "invalid", RoundingMode(7).String())
}
