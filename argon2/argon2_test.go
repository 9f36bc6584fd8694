package argon2

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Argon2d test vector of RFC 9106 section 5.1.
func TestArgon2dReferenceVector(t *testing.T) {
	tag := Key(Params{
		Password: bytes.Repeat([]byte{0x01}, 32),
		Salt:     bytes.Repeat([]byte{0x02}, 16),
		Secret:   bytes.Repeat([]byte{0x03}, 8),
		Data:     bytes.Repeat([]byte{0x04}, 12),
		Time:     3,
		Memory:   32,
		Lanes:    4,
		KeyLen:   32,
	})
	assert.Equal(t, "512b391b6f1162975371d30919734294f868e3be3984f3c1a13a4db9fabe4acb", hex.EncodeToString(tag))
}

func TestFillSmallCache(t *testing.T) {
	mem := make([]uint64, 64*BlockWords)
	p := Params{Password: []byte("test key 000"), Salt: []byte("RandomX\x03"), Time: 3, Memory: 64, Lanes: 1}
	Fill(mem, p)
	assert.Equal(t, uint64(0xdb374b3dda343308), mem[0])
	assert.Equal(t, uint64(0x31b73358ce6c5a2b), mem[63*BlockWords])

	// stale contents must not leak into the first pass
	again := make([]uint64, len(mem))
	for i := range again {
		again[i] = ^uint64(i)
	}
	Fill(again, p)
	assert.Equal(t, mem, again)
}

func TestFillRejectsWrongSize(t *testing.T) {
	require.Panics(t, func() {
		Fill(make([]uint64, 10), Params{Time: 1, Memory: 8, Lanes: 1})
	})
}

func TestBlake2bHashLengths(t *testing.T) {
	in := []byte("argon2")
	for _, n := range []int{4, 32, 64, 65, 100, 1024} {
		out := make([]byte, n)
		blake2bHash(out, in)
		assert.NotEqual(t, make([]byte, n), out, "length %d", n)
	}
}
