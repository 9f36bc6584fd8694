package vm

import (
	"encoding/binary"
	"math"
)

const (
	RegistersCount    = 8
	RegisterCountFlt  = 4
	RegisterFileBytes = RegistersCount*8 + 3*RegisterCountFlt*16
)

// RegisterFile is the architectural state of one machine.
type RegisterFile struct {
	R    [RegistersCount]uint64
	F    [RegisterCountFlt]FloatReg
	E    [RegisterCountFlt]FloatReg
	A    [RegisterCountFlt]FloatReg
	FPRC RoundingMode
}

// Reset clears the working registers. A registers are configuration and are
// left untouched. FPRC persists across programs of one hash.
func (rf *RegisterFile) Reset() {
	rf.R = [RegistersCount]uint64{}
	rf.F = [RegisterCountFlt]FloatReg{}
	rf.E = [RegisterCountFlt]FloatReg{}
}

// Bytes serializes r, f, e and a in that order, little-endian.
func (rf *RegisterFile) Bytes() []byte {
	out := make([]byte, RegisterFileBytes)
	off := 0
	for _, v := range rf.R {
		binary.LittleEndian.PutUint64(out[off:], v)
		off += 8
	}
	for _, group := range [][RegisterCountFlt]FloatReg{rf.F, rf.E, rf.A} {
		for _, f := range group {
			binary.LittleEndian.PutUint64(out[off:], math.Float64bits(f.Lo))
			binary.LittleEndian.PutUint64(out[off+8:], math.Float64bits(f.Hi))
			off += 16
		}
	}
	return out
}

// SetABytes overwrites the A register group with 64 raw bytes. The final
// mixing step stores the scratchpad hash there.
func (rf *RegisterFile) SetABytes(b []byte) {
	for i := range rf.A {
		rf.A[i] = floatRegFromBits(binary.LittleEndian.Uint64(b[16*i:]), binary.LittleEndian.Uint64(b[16*i+8:]))
	}
}
