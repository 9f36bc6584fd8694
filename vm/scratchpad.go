package vm

import (
	"encoding/binary"

	"github.com/colorfulnotion/randomx/rxerrors"
)

const (
	ScratchpadL1Size = 16384
	ScratchpadL2Size = 262144
	ScratchpadL3Size = 2097152

	ScratchpadL1Mask   = (ScratchpadL1Size - 1) &^ 7
	ScratchpadL2Mask   = (ScratchpadL2Size - 1) &^ 7
	ScratchpadL3Mask   = (ScratchpadL3Size - 1) &^ 7
	ScratchpadL3Mask64 = (ScratchpadL3Size - 1) &^ 63

	CacheLineSize      = 64
	CacheLineAlignMask = (2147483648 - 1) &^ (CacheLineSize - 1)
)

// Tier is one of the three address windows of the scratchpad.
type Tier uint8

const (
	L1 Tier = iota + 1
	L2
	L3
)

func (t Tier) Size() uint32 {
	switch t {
	case L1:
		return ScratchpadL1Size
	case L2:
		return ScratchpadL2Size
	}
	return ScratchpadL3Size
}

// Mask aligns an address to 8 bytes inside the tier.
func (t Tier) Mask() uint32 {
	switch t {
	case L1:
		return ScratchpadL1Mask
	case L2:
		return ScratchpadL2Mask
	}
	return ScratchpadL3Mask
}

func (t Tier) String() string {
	switch t {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	}
	return "invalid"
}

// Scratchpad is the private working memory of one machine.
type Scratchpad [ScratchpadL3Size]byte

// Read64 and Write64 address the whole L3 window. The iteration loop uses them
// for register lines at 64-byte aligned L3 addresses; instruction operands go
// through Load64 and Store64, which check the tier.
func (sp *Scratchpad) Read64(addr uint32) uint64 {
	if addr > ScratchpadL3Size-8 {
		rxerrors.Invariant("scratchpad read", "address %#x outside scratchpad", addr)
	}
	return binary.LittleEndian.Uint64(sp[addr:])
}

func (sp *Scratchpad) Write64(addr uint32, v uint64) {
	if addr > ScratchpadL3Size-8 {
		rxerrors.Invariant("scratchpad write", "address %#x outside scratchpad", addr)
	}
	binary.LittleEndian.PutUint64(sp[addr:], v)
}

func checkTier(op string, t Tier, addr uint32, n int) {
	if addr&^t.Mask() != 0 || uint64(addr)+uint64(n) > uint64(t.Size()) {
		rxerrors.Invariant(op, "address %#x len %d not masked into %s", addr, n, t)
	}
}

// Load64 reads the word at addr, which must already be masked into t.
func (sp *Scratchpad) Load64(t Tier, addr uint32) uint64 {
	checkTier("scratchpad load", t, addr, 8)
	return binary.LittleEndian.Uint64(sp[addr:])
}

// Store64 writes v at addr, which must already be masked into t.
func (sp *Scratchpad) Store64(t Tier, addr uint32, v uint64) {
	checkTier("scratchpad store", t, addr, 8)
	binary.LittleEndian.PutUint64(sp[addr:], v)
}

// Read returns a view of n bytes at addr. addr must already be masked into t.
func (sp *Scratchpad) Read(t Tier, addr uint32, n int) []byte {
	checkTier("scratchpad read", t, addr, n)
	return sp[addr : int(addr)+n]
}

// Write copies b to addr. addr must already be masked into t.
func (sp *Scratchpad) Write(t Tier, addr uint32, b []byte) {
	checkTier("scratchpad write", t, addr, len(b))
	copy(sp[addr:], b)
}

func (sp *Scratchpad) Bytes() []byte { return sp[:] }
