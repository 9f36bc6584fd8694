// Package argon2 implements the Argon2d memory fill (version 0x13) over caller
// provided memory. The hashing tag of Argon2 is not computed; callers consume
// the filled blocks directly.
package argon2

import (
	"encoding/binary"
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"
)

const (
	Version    = 0x13
	BlockWords = 128
	BlockSize  = BlockWords * 8

	argon2d    = 0
	syncPoints = 4
)

type block [BlockWords]uint64

// Params describes one Argon2d fill. Memory is counted in 1 KiB blocks.
type Params struct {
	Password []byte
	Salt     []byte
	Secret   []byte
	Data     []byte
	Time     uint32
	Memory   uint32
	Lanes    uint32
	KeyLen   uint32
}

// Fill runs Argon2d over mem, which must hold exactly Memory blocks of 128 words.
func Fill(mem []uint64, p Params) {
	if p.Lanes == 0 || p.Time == 0 {
		panic("argon2: zero lanes or passes")
	}
	memory := p.Memory / (syncPoints * p.Lanes) * (syncPoints * p.Lanes)
	if uint64(len(mem)) != uint64(memory)*BlockWords {
		panic("argon2: memory size does not match parameters")
	}
	h0 := initHash(p)
	initBlocks(mem, &h0, memory, p.Lanes)
	processBlocks(mem, p.Time, memory, p.Lanes)
}

// Key runs a full Argon2d derivation and returns the KeyLen byte tag.
func Key(p Params) []byte {
	memory := p.Memory / (syncPoints * p.Lanes) * (syncPoints * p.Lanes)
	mem := make([]uint64, uint64(memory)*BlockWords)
	Fill(mem, p)

	laneLen := memory / p.Lanes
	var final block
	for lane := uint32(0); lane < p.Lanes; lane++ {
		last := blockAt(mem, lane*laneLen+laneLen-1)
		for i := range final {
			final[i] ^= last[i]
		}
	}
	var buf [BlockSize]byte
	for i, v := range final {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	tag := make([]byte, p.KeyLen)
	blake2bHash(tag, buf[:])
	return tag
}

func blockAt(mem []uint64, i uint32) *block {
	off := uint64(i) * BlockWords
	return (*block)(mem[off : off+BlockWords])
}

func initHash(p Params) [blake2b.Size + 8]byte {
	var (
		h0     [blake2b.Size + 8]byte
		params [24]byte
		tmp    [4]byte
	)

	b2, _ := blake2b.New512(nil)
	binary.LittleEndian.PutUint32(params[0:4], p.Lanes)
	binary.LittleEndian.PutUint32(params[4:8], p.KeyLen)
	binary.LittleEndian.PutUint32(params[8:12], p.Memory)
	binary.LittleEndian.PutUint32(params[12:16], p.Time)
	binary.LittleEndian.PutUint32(params[16:20], Version)
	binary.LittleEndian.PutUint32(params[20:24], argon2d)
	b2.Write(params[:])
	for _, field := range [][]byte{p.Password, p.Salt, p.Secret, p.Data} {
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(field)))
		b2.Write(tmp[:])
		b2.Write(field)
	}
	b2.Sum(h0[:0])
	return h0
}

func initBlocks(mem []uint64, h0 *[blake2b.Size + 8]byte, memory, lanes uint32) {
	var block0 [BlockSize]byte
	for lane := uint32(0); lane < lanes; lane++ {
		j := lane * (memory / lanes)
		binary.LittleEndian.PutUint32(h0[blake2b.Size+4:], lane)

		for k := uint32(0); k < 2; k++ {
			binary.LittleEndian.PutUint32(h0[blake2b.Size:], k)
			blake2bHash(block0[:], h0[:])
			b := blockAt(mem, j+k)
			for i := range b {
				b[i] = binary.LittleEndian.Uint64(block0[i*8:])
			}
		}
	}
}

func processBlocks(mem []uint64, time, memory, lanes uint32) {
	laneLen := memory / lanes
	segments := laneLen / syncPoints

	processSegment := func(n, slice, lane uint32, wg *sync.WaitGroup) {
		defer wg.Done()
		index := uint32(0)
		if n == 0 && slice == 0 {
			index = 2
		}
		offset := lane*laneLen + slice*segments + index
		for index < segments {
			prev := offset - 1
			if index == 0 && slice == 0 {
				prev += laneLen
			}
			random := blockAt(mem, prev)[0]
			ref := indexAlpha(random, laneLen, segments, lanes, n, slice, lane, index)
			processBlock(blockAt(mem, offset), blockAt(mem, prev), blockAt(mem, ref), n > 0)
			index, offset = index+1, offset+1
		}
	}

	for n := uint32(0); n < time; n++ {
		for slice := uint32(0); slice < syncPoints; slice++ {
			var wg sync.WaitGroup
			for lane := uint32(0); lane < lanes; lane++ {
				wg.Add(1)
				go processSegment(n, slice, lane, &wg)
			}
			wg.Wait()
		}
	}
}

func indexAlpha(rand uint64, laneLen, segments, lanes, n, slice, lane, index uint32) uint32 {
	refLane := uint32(rand>>32) % lanes
	if n == 0 && slice == 0 {
		refLane = lane
	}
	m, s := 3*segments, ((slice+1)%syncPoints)*segments
	if lane == refLane {
		m += index
	}
	if n == 0 {
		m, s = slice*segments, 0
		if slice == 0 || lane == refLane {
			m += index
		}
	}
	if index == 0 || lane == refLane {
		m--
	}
	return phi(rand, uint64(m), uint64(s), refLane, laneLen)
}

func phi(rand, m, s uint64, lane, laneLen uint32) uint32 {
	p := rand & 0xFFFFFFFF
	p = (p * p) >> 32
	p = (p * m) >> 32
	return lane*laneLen + uint32((s+m-(p+1))%uint64(laneLen))
}

// blake2bHash is the variable-length hash H' of the Argon2 paper.
func blake2bHash(out []byte, in []byte) {
	var b2 hash.Hash
	if n := len(out); n < blake2b.Size {
		b2, _ = blake2b.New(n, nil)
	} else {
		b2, _ = blake2b.New512(nil)
	}

	var buffer [blake2b.Size]byte
	binary.LittleEndian.PutUint32(buffer[:4], uint32(len(out)))
	b2.Write(buffer[:4])
	b2.Write(in)

	if len(out) <= blake2b.Size {
		b2.Sum(out[:0])
		return
	}

	outLen := len(out)
	b2.Sum(buffer[:0])
	b2.Reset()
	copy(out, buffer[:32])
	out = out[32:]
	for len(out) > blake2b.Size {
		b2.Write(buffer[:])
		b2.Sum(buffer[:0])
		copy(out, buffer[:32])
		out = out[32:]
		b2.Reset()
	}

	if outLen%blake2b.Size > 0 {
		r := ((outLen + 31) / 32) - 2
		b2, _ = blake2b.New(outLen-32*r, nil)
	}
	b2.Write(buffer[:])
	b2.Sum(out[:0])
}
