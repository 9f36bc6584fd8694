package generator

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/randomx/rxerrors"
	"golang.org/x/crypto/blake2b"
)

const (
	blakeStateSize = 64
	MaxSeedSize    = 60
)

// Blake2Generator is a reseedable byte cursor over a 64-byte Blake2b-512 state.
type Blake2Generator struct {
	data  [blakeStateSize]byte
	index int
}

// NewBlake2Generator seeds the state with seed and a little-endian nonce at offset 60.
func NewBlake2Generator(seed []byte, nonce uint32) (*Blake2Generator, error) {
	if len(seed) > MaxSeedSize {
		return nil, fmt.Errorf("blake2 generator seed of %d bytes: %w", len(seed), rxerrors.ErrCSeedTooLong)
	}
	g := &Blake2Generator{index: blakeStateSize}
	copy(g.data[:], seed)
	binary.LittleEndian.PutUint32(g.data[MaxSeedSize:], nonce)
	return g, nil
}

func (g *Blake2Generator) checkData(n int) {
	if g.index+n > blakeStateSize {
		g.data = blake2b.Sum512(g.data[:])
		g.index = 0
	}
}

func (g *Blake2Generator) GetByte() byte {
	g.checkData(1)
	b := g.data[g.index]
	g.index++
	return b
}

// GetUint32 reads the next four bytes as a little-endian word.
func (g *Blake2Generator) GetUint32() uint32 {
	g.checkData(4)
	v := binary.LittleEndian.Uint32(g.data[g.index:])
	g.index += 4
	return v
}
