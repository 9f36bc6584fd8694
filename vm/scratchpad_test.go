package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestTierMasksContainAddresses(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, tier := range []Tier{L1, L2, L3} {
		for i := 0; i < 10000; i++ {
			addr := uint32(rng.Uint64()) & tier.Mask()
			assert.Less(t, addr+8, tier.Size()+1)
			assert.Zero(t, addr%8)
		}
	}
	for i := 0; i < 10000; i++ {
		addr := uint32(rng.Uint64()) & ScratchpadL3Mask64
		assert.LessOrEqual(t, addr+64, uint32(ScratchpadL3Size))
		assert.Zero(t, addr%64)
	}
}

func TestScratchpadReadWrite(t *testing.T) {
	sp := new(Scratchpad)
	sp.Write64(ScratchpadL3Size-8, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), sp.Read64(ScratchpadL3Size-8))
	require.Equal(t, byte(0x08), sp[ScratchpadL3Size-8])

	sp.Write(L1, 0x40, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.Equal(t, []byte{1, 2, 3, 4}, sp.Read(L1, 0x40, 4))
	require.Equal(t, uint64(0x0807060504030201), sp.Read64(0x40))
}

func TestScratchpadUnmaskedAddressPanics(t *testing.T) {
	sp := new(Scratchpad)
	require.Panics(t, func() { sp.Read64(ScratchpadL3Size - 4) })
	require.Panics(t, func() { sp.Write64(ScratchpadL3Size, 1) })
	require.Panics(t, func() { sp.Read(L1, ScratchpadL1Size, 8) })
	require.Panics(t, func() { sp.Read(L2, 3, 8) })
	require.Panics(t, func() { sp.Write(L1, ScratchpadL1Size-8, make([]byte, 16)) })
	require.NotPanics(t, func() { sp.Read(L3, ScratchpadL3Mask64, 64) })
}

func TestTierCheckedWords(t *testing.T) {
	sp := new(Scratchpad)
	sp.Store64(L1, ScratchpadL1Mask, 7)
	require.Equal(t, uint64(7), sp.Load64(L1, ScratchpadL1Mask))
	require.Equal(t, uint64(7), sp.Read64(ScratchpadL1Mask))
	sp.Store64(L3, ScratchpadL3Mask, 9)
	require.Equal(t, uint64(9), sp.Load64(L3, ScratchpadL3Mask))

	// in range for L3 but never masked into the smaller tiers
	require.Panics(t, func() { sp.Load64(L1, ScratchpadL1Size) })
	require.Panics(t, func() { sp.Load64(L2, ScratchpadL2Size+8) })
	require.Panics(t, func() { sp.Store64(L1, 0x44, 1) })
	require.Panics(t, func() { sp.Store64(L2, ScratchpadL2Size, 1) })
	require.NotPanics(t, func() { sp.Read64(ScratchpadL2Size) })
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "L2", L2.String())
	assert.Equal(t, uint32(0x3FF8), L1.Mask())
	assert.Equal(t, uint32(0x3FFF8), L2.Mask())
	assert.Equal(t, uint32(0x1FFFF8), L3.Mask())
}
