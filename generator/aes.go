package generator

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/colorfulnotion/randomx/common"
)

// AesStateSize is the size of the generator state and of one output block.
const AesStateSize = 64

var (
	keys1R      [4]aesBlock
	keys4R      [8]aesBlock
	hashState1R [4]aesBlock
	hashXKey0   = mustBlock("8983faf69f94248bbf56dc9001028906")
	hashXKey1   = mustBlock("d163b2613ce0f451c64310ee9bf918ed")
)

func init() {
	k := common.Blake2b512([]byte("RandomX AesGenerator1R keys"))
	keys1R = blocksOf(k[:])
	k03 := common.Blake2b512([]byte("RandomX AesGenerator4R keys 0-3"))
	k47 := common.Blake2b512([]byte("RandomX AesGenerator4R keys 4-7"))
	lo, hi := blocksOf(k03[:]), blocksOf(k47[:])
	copy(keys4R[:4], lo[:])
	copy(keys4R[4:], hi[:])
	st := common.Blake2b512([]byte("RandomX AesHash1R state"))
	hashState1R = blocksOf(st[:])
}

func mustBlock(s string) aesBlock {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		panic("generator: bad aes constant " + s)
	}
	return loadBlock(b)
}

func loadBlock(b []byte) aesBlock {
	return aesBlock{
		binary.LittleEndian.Uint32(b[0:]),
		binary.LittleEndian.Uint32(b[4:]),
		binary.LittleEndian.Uint32(b[8:]),
		binary.LittleEndian.Uint32(b[12:]),
	}
}

func storeBlock(b []byte, s aesBlock) {
	binary.LittleEndian.PutUint32(b[0:], s[0])
	binary.LittleEndian.PutUint32(b[4:], s[1])
	binary.LittleEndian.PutUint32(b[8:], s[2])
	binary.LittleEndian.PutUint32(b[12:], s[3])
}

func blocksOf(b []byte) [4]aesBlock {
	return [4]aesBlock{loadBlock(b[0:]), loadBlock(b[16:]), loadBlock(b[32:]), loadBlock(b[48:])}
}

func storeBlocks(b []byte, s [4]aesBlock) {
	for i := range s {
		storeBlock(b[16*i:], s[i])
	}
}

// Fill1R is AesGenerator1R: it fills out, whose length must be a multiple of 64,
// and writes the advanced state back to state.
func Fill1R(state *[AesStateSize]byte, out []byte) {
	if len(out)%AesStateSize != 0 {
		panic("generator: Fill1R output not a multiple of 64")
	}
	s := blocksOf(state[:])
	for off := 0; off < len(out); off += AesStateSize {
		s[0] = aesDec(s[0], keys1R[0])
		s[1] = aesEnc(s[1], keys1R[1])
		s[2] = aesDec(s[2], keys1R[2])
		s[3] = aesEnc(s[3], keys1R[3])
		storeBlocks(out[off:], s)
	}
	storeBlocks(state[:], s)
}

// Fill4R is AesGenerator4R, used to produce program buffers. The state is not advanced.
func Fill4R(state *[AesStateSize]byte, out []byte) {
	if len(out)%AesStateSize != 0 {
		panic("generator: Fill4R output not a multiple of 64")
	}
	s := blocksOf(state[:])
	for off := 0; off < len(out); off += AesStateSize {
		for r := 0; r < 4; r++ {
			s[0] = aesDec(s[0], keys4R[r])
			s[1] = aesEnc(s[1], keys4R[r])
			s[2] = aesDec(s[2], keys4R[4+r])
			s[3] = aesEnc(s[3], keys4R[4+r])
		}
		storeBlocks(out[off:], s)
	}
}

// Hash1R is AesHash1R: a 64-byte fingerprint of input, whose length must be a multiple of 64.
func Hash1R(input []byte) [AesStateSize]byte {
	if len(input)%AesStateSize != 0 {
		panic("generator: Hash1R input not a multiple of 64")
	}
	s := hashState1R
	for off := 0; off < len(input); off += AesStateSize {
		in := blocksOf(input[off:])
		s[0] = aesEnc(s[0], in[0])
		s[1] = aesDec(s[1], in[1])
		s[2] = aesEnc(s[2], in[2])
		s[3] = aesDec(s[3], in[3])
	}
	for _, x := range [2]aesBlock{hashXKey0, hashXKey1} {
		s[0] = aesEnc(s[0], x)
		s[1] = aesDec(s[1], x)
		s[2] = aesEnc(s[2], x)
		s[3] = aesDec(s[3], x)
	}
	var out [AesStateSize]byte
	storeBlocks(out[:], s)
	return out
}
