package vm

import (
	"fmt"

	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/rxerrors"
)

const (
	DatasetExtraItems = 524287
	ProgramIterations = 2048
	ProgramCount      = 8
)

// Configuration is derived from the 16 entropy words of a program and is
// fixed for the lifetime of that program.
type Configuration struct {
	A             [RegisterCountFlt]FloatReg
	Ma            uint32
	Mx            uint32
	ReadReg       [4]int
	DatasetOffset uint64
	EMask         [2]uint64
}

func NewConfiguration(words []uint64) (Configuration, error) {
	var c Configuration
	if len(words) != program.EntropyWords {
		return c, fmt.Errorf("%w: got %d", rxerrors.ErrCConfigWordCount, len(words))
	}
	for i := range c.A {
		c.A[i] = FloatReg{
			Lo: FloatFromSeedWord(words[2*i]),
			Hi: FloatFromSeedWord(words[2*i+1]),
		}
	}
	c.Ma = uint32(words[8] & CacheLineAlignMask)
	c.Mx = uint32(words[10])
	for k := range c.ReadReg {
		c.ReadReg[k] = 2*k + int((words[12]>>k)&1)
	}
	c.DatasetOffset = (words[13] % (DatasetExtraItems + 1)) * CacheLineSize
	c.EMask[0] = MaskedFloatBits(words[14])
	c.EMask[1] = MaskedFloatBits(words[15])
	return c, nil
}
