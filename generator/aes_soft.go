package generator

import "math/bits"

// Single-round AES in the x86 AESENC/AESDEC form, on a 16-byte state held as
// four little-endian columns.
type aesBlock [4]uint32

var (
	sbox    [256]byte
	invSbox [256]byte
	encT    [4][256]uint32
	decT    [4][256]uint32
)

func init() {
	// p walks the powers of 3 in GF(2^8), q the matching powers of 1/3.
	p, q := byte(1), byte(1)
	for {
		carry := p & 0x80
		p ^= p << 1
		if carry != 0 {
			p ^= 0x1b
		}
		q ^= q << 1
		q ^= q << 2
		q ^= q << 4
		if q&0x80 != 0 {
			q ^= 0x09
		}
		x := q ^ bits.RotateLeft8(q, 1) ^ bits.RotateLeft8(q, 2) ^ bits.RotateLeft8(q, 3) ^ bits.RotateLeft8(q, 4)
		sbox[p] = x ^ 0x63
		if p == 1 {
			break
		}
	}
	sbox[0] = 0x63
	for i := 0; i < 256; i++ {
		invSbox[sbox[i]] = byte(i)
	}
	for i := 0; i < 256; i++ {
		s := sbox[i]
		e := uint32(gfMul(s, 2)) | uint32(s)<<8 | uint32(s)<<16 | uint32(gfMul(s, 3))<<24
		d := invSbox[i]
		dd := uint32(gfMul(d, 14)) | uint32(gfMul(d, 9))<<8 | uint32(gfMul(d, 13))<<16 | uint32(gfMul(d, 11))<<24
		for t := 0; t < 4; t++ {
			encT[t][i] = bits.RotateLeft32(e, 8*t)
			decT[t][i] = bits.RotateLeft32(dd, 8*t)
		}
	}
}

func gfMul(a, b byte) byte {
	var r byte
	for b != 0 {
		if b&1 != 0 {
			r ^= a
		}
		carry := a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return r
}

// aesEnc performs ShiftRows, SubBytes, MixColumns and the round-key xor.
func aesEnc(s, key aesBlock) aesBlock {
	return aesBlock{
		encT[0][byte(s[0])] ^ encT[1][byte(s[1]>>8)] ^ encT[2][byte(s[2]>>16)] ^ encT[3][s[3]>>24] ^ key[0],
		encT[0][byte(s[1])] ^ encT[1][byte(s[2]>>8)] ^ encT[2][byte(s[3]>>16)] ^ encT[3][s[0]>>24] ^ key[1],
		encT[0][byte(s[2])] ^ encT[1][byte(s[3]>>8)] ^ encT[2][byte(s[0]>>16)] ^ encT[3][s[1]>>24] ^ key[2],
		encT[0][byte(s[3])] ^ encT[1][byte(s[0]>>8)] ^ encT[2][byte(s[1]>>16)] ^ encT[3][s[2]>>24] ^ key[3],
	}
}

// aesDec performs InvShiftRows, InvSubBytes, InvMixColumns and the round-key xor.
func aesDec(s, key aesBlock) aesBlock {
	return aesBlock{
		decT[0][byte(s[0])] ^ decT[1][byte(s[3]>>8)] ^ decT[2][byte(s[2]>>16)] ^ decT[3][s[1]>>24] ^ key[0],
		decT[0][byte(s[1])] ^ decT[1][byte(s[0]>>8)] ^ decT[2][byte(s[3]>>16)] ^ decT[3][s[2]>>24] ^ key[1],
		decT[0][byte(s[2])] ^ decT[1][byte(s[1]>>8)] ^ decT[2][byte(s[0]>>16)] ^ decT[3][s[3]>>24] ^ key[2],
		decT[0][byte(s[3])] ^ decT[1][byte(s[2]>>8)] ^ decT[2][byte(s[1]>>16)] ^ decT[3][s[0]>>24] ^ key[3],
	}
}
