package vm

import (
	"math"
	"testing"

	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configWords = []uint64{
	14955972954624606980, 1160178653978888361, 7804042326029050762, 18106730710792880309,
	13963013834657230551, 14182137327961841000, 12343878495449872070, 7430133026238860952,
	7984991304302844783, 9016528251757111484, 4740653391750521392, 12036502532476750352,
	7396202974033214510, 5473894568723909973, 13992127780735554655, 11551971154970399794,
}

func TestFloatFromSeedWord(t *testing.T) {
	f := FloatFromSeedWord(14955972954624606980)
	require.Equal(t, uint64(0x418e4a297ebfc304), math.Float64bits(f))
	require.Equal(t, f, FloatFromSeedWord(14955972954624606980))
}

func TestFloatFromSeedWordIsNormal(t *testing.T) {
	for sel := uint64(0); sel < 32; sel++ {
		for _, low := range []uint64{0, 1, 0x000FFFFFFFFFFFFF, 0x0123456789ABCDEF} {
			f := FloatFromSeedWord(sel<<59 | low)
			assert.False(t, math.IsNaN(f) || math.IsInf(f, 0))
			assert.Greater(t, f, 0.0)
			exp := (math.Float64bits(f) >> 52) & 0x7FF
			assert.NotZero(t, exp)
		}
	}
}

func TestConfigurationVector(t *testing.T) {
	cfg, err := NewConfiguration(configWords)
	require.NoError(t, err)

	want := [4][2]uint64{
		{0x418e4a297ebfc304, 0x4019c856c26708a9},
		{0x40cd8725df13238a, 0x41e807a5dc7740b5},
		{0x4176971a789beed7, 0x417112c274f91d68},
		{0x414e441747df76c6, 0x40bd229eeedd8e98},
	}
	for i, w := range want {
		lo, hi := cfg.A[i].Bits()
		assert.Equal(t, w[0], lo, "A%d lo", i)
		assert.Equal(t, w[1], hi, "A%d hi", i)
	}
	assert.Equal(t, [2]uint64{0x3c000000001e145f, 0x3a0000000011d432}, cfg.EMask)
	assert.Equal(t, uint32(0x738ddb40), cfg.Ma)
	assert.Equal(t, uint32(0x8a8a6230), cfg.Mx)
	assert.Equal(t, [4]int{0, 3, 5, 7}, cfg.ReadReg)
	assert.Equal(t, uint64(10704192), cfg.DatasetOffset)
}

func TestConfigurationWordCount(t *testing.T) {
	_, err := NewConfiguration(configWords[:15])
	require.ErrorIs(t, err, rxerrors.ErrCConfigWordCount)
	_, err = NewConfiguration(append(append([]uint64{}, configWords...), 1))
	require.ErrorIs(t, err, rxerrors.ErrCConfigWordCount)
}

func TestReadRegPairs(t *testing.T) {
	words := make([]uint64, 16)
	for bitsSet := uint64(0); bitsSet < 16; bitsSet++ {
		words[12] = bitsSet
		cfg, err := NewConfiguration(words)
		require.NoError(t, err)
		for k, r := range cfg.ReadReg {
			assert.Equal(t, 2*k, r&^1)
		}
	}
}

func TestMaskE(t *testing.T) {
	emask := [2]uint64{0x3c000000001e145f, 0x3a0000000011d432}
	f := MaskE(ConvertInt32Pair(0xFFFFFFFF_80000000), emask)
	assert.Greater(t, f.Lo, 0.0)
	assert.Greater(t, f.Hi, 0.0)
	lo, hi := f.Bits()
	assert.Equal(t, emask[0], lo&emask[0])
	assert.Equal(t, emask[1], hi&emask[1])
	assert.Zero(t, lo>>60&0x8)
}

func TestConvertInt32Pair(t *testing.T) {
	f := ConvertInt32Pair(uint64(0xFFFFFFFE)<<32 | 7)
	assert.Equal(t, 7.0, f.Lo)
	assert.Equal(t, -2.0, f.Hi)
}
