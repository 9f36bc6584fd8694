package program

import (
	"encoding/binary"
	"testing"

	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestDecodeCoversOpcodeSpace(t *testing.T) {
	counts := make(map[Kind]int)
	for op := 0; op < 256; op++ {
		d := Decode(uint64(op))
		counts[d.Kind]++
	}
	total := 0
	for k := 0; k < KindCount; k++ {
		assert.Equal(t, Frequency(Kind(k)), counts[Kind(k)], Kind(k).String())
		total += counts[Kind(k)]
	}
	assert.Equal(t, 256, total)
	assert.Equal(t, 25, counts[CBRANCH])
	assert.Equal(t, 16, counts[ISTORE])
	assert.Zero(t, counts[NOP])
}

func TestOpcodeRanges(t *testing.T) {
	first, last, ok := OpcodeRange(CBRANCH)
	require.True(t, ok)
	assert.Equal(t, byte(214), first)
	assert.Equal(t, byte(238), last)

	first, last, ok = OpcodeRange(ISTORE)
	require.True(t, ok)
	assert.Equal(t, byte(240), first)
	assert.Equal(t, byte(255), last)

	first, _, _ = OpcodeRange(CFROUND)
	assert.Equal(t, byte(239), first)

	_, _, ok = OpcodeRange(NOP)
	assert.False(t, ok)
}

func TestInstructionFields(t *testing.T) {
	ins := NewInstruction(0xd6, 3, 7, 0b1011_0110, 0xdeadbeef)
	d := Decode(uint64(ins))
	assert.Equal(t, CBRANCH, d.Kind)
	assert.Equal(t, byte(3), d.Dst)
	assert.Equal(t, byte(7), d.Src)
	assert.Equal(t, uint32(0xdeadbeef), d.Imm32)
	assert.Equal(t, byte(2), ins.ModMem())
	assert.Equal(t, byte(1), ins.ModShift())
	assert.Equal(t, byte(0b1011), ins.ModCond())
}

func TestDecodeTotality(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		w := r.Uint64()
		d := Decode(w)
		assert.Less(t, int(d.Kind), KindCount)
		assert.NotEqual(t, NOP, d.Kind)
		assert.Equal(t, byte(w), d.Opcode)
	}
}

func TestGroups(t *testing.T) {
	assert.Equal(t, GroupInteger, ISWAP_R.Group())
	assert.Equal(t, GroupFloat, FSWAP_R.Group())
	assert.Equal(t, GroupFloat, FSQRT_R.Group())
	assert.Equal(t, GroupControl, CBRANCH.Group())
	assert.Equal(t, GroupControl, CFROUND.Group())
	assert.Equal(t, GroupStore, ISTORE.Group())
}

func TestParseProgram(t *testing.T) {
	buf := make([]byte, BufferSize)
	binary.LittleEndian.PutUint64(buf[0:], 14955972954624606980)
	binary.LittleEndian.PutUint64(buf[EntropyWords*8:], uint64(NewInstruction(240, 1, 2, 0xf0, 5)))
	p, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(14955972954624606980), p.Entropy(0))
	assert.Equal(t, ISTORE, p.At(0).Kind())
	assert.Equal(t, IADD_RS, p.At(1).Kind())
	assert.Len(t, p.EntropyWords(), EntropyWords)

	stats := p.Analyze()
	assert.Equal(t, 1, stats.Kinds[ISTORE])
	assert.Equal(t, Size-1, stats.Kinds[IADD_RS])
	assert.Equal(t, 1, stats.Groups[GroupStore])
	assert.Contains(t, p.String(), "ISTORE")

	_, err = Parse(buf[:100])
	assert.ErrorIs(t, err, rxerrors.ErrCProgramSize)
}
