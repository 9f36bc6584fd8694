package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/randomx/common"
	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/rxerrors"
)

const (
	CacheChunkSize = 1 << 20
	chunksPerBatch = 16
)

var sizeSuffix = []byte("size")

// CacheStore keeps Argon2 cache memory under cache/<key id>/ in fixed-size
// chunks. The size record is written last and marks a complete entry.
type CacheStore struct {
	ps *PersistenceStore
}

func NewCacheStore(ps *PersistenceStore) *CacheStore {
	return &CacheStore{ps: ps}
}

func cachePrefix(key []byte) []byte {
	return []byte("cache/" + common.KeyID(key).Hex() + "/")
}

func chunkKey(prefix []byte, i uint32) []byte {
	k := append([]byte(nil), prefix...)
	k = append(k, 'c')
	return binary.BigEndian.AppendUint32(k, i)
}

func sizeKey(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), sizeSuffix...)
}

// SaveCache replaces any stored entry for key with mem.
func (cs *CacheStore) SaveCache(key []byte, mem []byte) error {
	prefix := cachePrefix(key)
	if err := cs.ps.DeletePrefix(prefix); err != nil {
		return err
	}
	var puts [][2][]byte
	for off, i := 0, uint32(0); off < len(mem); off, i = off+CacheChunkSize, i+1 {
		end := min(off+CacheChunkSize, len(mem))
		puts = append(puts, [2][]byte{chunkKey(prefix, i), mem[off:end]})
		if len(puts) == chunksPerBatch {
			if err := cs.ps.WriteBatch(puts); err != nil {
				return fmt.Errorf("save cache chunk %d: %w", i, err)
			}
			puts = puts[:0]
		}
	}
	if len(puts) > 0 {
		if err := cs.ps.WriteBatch(puts); err != nil {
			return fmt.Errorf("save cache chunks: %w", err)
		}
	}
	if err := cs.ps.Put(sizeKey(prefix), common.Uint64ToBytes(uint64(len(mem)))); err != nil {
		return err
	}
	log.Debug(log.StorageMonitoring, "cache saved", "key", common.KeyID(key).Short(), "bytes", len(mem))
	return nil
}

// LoadCache fills mem from the stored entry for key. It reports false when no
// complete entry exists.
func (cs *CacheStore) LoadCache(key []byte, mem []byte) (bool, error) {
	prefix := cachePrefix(key)
	raw, found, err := cs.ps.Get(sizeKey(prefix))
	if err != nil || !found {
		return false, err
	}
	if len(raw) != 8 || common.BytesToUint64(raw) != uint64(len(mem)) {
		return false, fmt.Errorf("%w: stored %x, want %d bytes", rxerrors.ErrRCacheMismatch, raw, len(mem))
	}
	for off, i := 0, uint32(0); off < len(mem); off, i = off+CacheChunkSize, i+1 {
		end := min(off+CacheChunkSize, len(mem))
		chunk, found, err := cs.ps.Get(chunkKey(prefix, i))
		if err != nil {
			return false, err
		}
		if !found || len(chunk) != end-off {
			return false, fmt.Errorf("%w: chunk %d", rxerrors.ErrRCacheMismatch, i)
		}
		copy(mem[off:end], chunk)
	}
	log.Debug(log.StorageMonitoring, "cache loaded", "key", common.KeyID(key).Short(), "bytes", len(mem))
	return true, nil
}

// DeleteCache drops the stored entry for key.
func (cs *CacheStore) DeleteCache(key []byte) error {
	return cs.ps.DeletePrefix(cachePrefix(key))
}
