package argon2

import "math/bits"

var (
	rowIndex    [8][16]int
	columnIndex [8][16]int
)

func init() {
	for r := 0; r < 8; r++ {
		for k := 0; k < 16; k++ {
			rowIndex[r][k] = 16*r + k
			// columns interleave word pairs of every row
			columnIndex[r][k] = 16*(k/2) + 2*r + k%2
		}
	}
}

// processBlock computes G(in1, in2) into out; with xor set the result is folded into out.
func processBlock(out, in1, in2 *block, xor bool) {
	var t block
	for i := range t {
		t[i] = in1[i] ^ in2[i]
	}
	var v [16]uint64
	for _, idx := range [2]*[8][16]int{&rowIndex, &columnIndex} {
		for r := range idx {
			for k, j := range idx[r] {
				v[k] = t[j]
			}
			blamkaRound(&v)
			for k, j := range idx[r] {
				t[j] = v[k]
			}
		}
	}
	if xor {
		for i := range t {
			out[i] ^= in1[i] ^ in2[i] ^ t[i]
		}
	} else {
		for i := range t {
			out[i] = in1[i] ^ in2[i] ^ t[i]
		}
	}
}

func blamkaRound(v *[16]uint64) {
	gb(v, 0, 4, 8, 12)
	gb(v, 1, 5, 9, 13)
	gb(v, 2, 6, 10, 14)
	gb(v, 3, 7, 11, 15)
	gb(v, 0, 5, 10, 15)
	gb(v, 1, 6, 11, 12)
	gb(v, 2, 7, 8, 13)
	gb(v, 3, 4, 9, 14)
}

func fBlaMka(x, y uint64) uint64 {
	return x + y + 2*uint64(uint32(x))*uint64(uint32(y))
}

func gb(v *[16]uint64, a, b, c, d int) {
	v[a] = fBlaMka(v[a], v[b])
	v[d] = bits.RotateLeft64(v[d]^v[a], -32)
	v[c] = fBlaMka(v[c], v[d])
	v[b] = bits.RotateLeft64(v[b]^v[c], -24)
	v[a] = fBlaMka(v[a], v[b])
	v[d] = bits.RotateLeft64(v[d]^v[a], -16)
	v[c] = fBlaMka(v[c], v[d])
	v[b] = bits.RotateLeft64(v[b]^v[c], -63)
}
