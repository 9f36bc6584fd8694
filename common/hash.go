package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Blake2b512 is the 64-byte digest used to chain program seeds.
func Blake2b512(data ...[]byte) [64]byte {
	h, _ := blake2b.New512(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out [64]byte
	h.Sum(out[:0])
	return out
}

func Blake2b256(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// KeyID derives the storage identifier of a cache key.
func KeyID(key []byte) Hash {
	return Blake2b256(key)
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, val)
	return bytes
}

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, val)
	return bytes
}

func BytesToUint64(data []byte) uint64 {
	if len(data) < 8 {
		panic("BytesToUint64: byte slice too short")
	}
	return binary.LittleEndian.Uint64(data)
}
