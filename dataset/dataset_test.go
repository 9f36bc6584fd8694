package dataset

import (
	"context"
	"testing"

	"github.com/colorfulnotion/randomx/generator"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/stretchr/testify/require"
)

// patternCache skips the Argon2 fill and uses a cheap deterministic pattern.
func patternCache(t *testing.T, key string) *Cache {
	t.Helper()
	mem, err := Allocate(CacheSize)
	require.NoError(t, err)
	words := mem.Words()
	for i := range words {
		words[i] = uint64(i) * 0x9E3779B97F4A7C15
	}
	c := &Cache{key: []byte(key), mem: mem, words: words}
	gen, err := generator.NewBlake2Generator(c.key, 0)
	require.NoError(t, err)
	c.generatePrograms(gen)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAllocate(t *testing.T) {
	mem, err := Allocate(1 << 20)
	require.NoError(t, err)
	require.Len(t, mem.Bytes(), 1<<20)
	words := mem.Words()
	require.Len(t, words, 1<<17)
	words[1] = 0x0102030405060708
	require.Equal(t, byte(0x08), mem.Bytes()[8])
	require.NoError(t, mem.Close())
	require.NoError(t, mem.Close())
}

func TestInitItemReplay(t *testing.T) {
	c := patternCache(t, "test key 000")
	for _, item := range []uint64{0, 1, 12345, ItemCount - 1} {
		require.Equal(t, c.InitItem(item), c.InitItem(item))
	}
	require.NotEqual(t, c.InitItem(0), c.InitItem(1))
}

func TestLightDatasetReadLine(t *testing.T) {
	c := patternCache(t, "test key 000")
	d := NewLightDataset(c)
	require.Equal(t, c.InitItem(77), d.ReadLine(77*ItemSize))
	require.Equal(t, c.InitItem(77), d.ReadLine(77*ItemSize+63))
}

func TestBuildItemsMatchesLight(t *testing.T) {
	c := patternCache(t, "test key 001")
	const first, count = 1000, 301
	words := make([]uint64, count*8)
	require.NoError(t, buildItems(context.Background(), c, words, first, count, 4))

	full := &FullDataset{words: words}
	for i := uint64(0); i < count; i++ {
		require.Equal(t, c.InitItem(first+i), full.Item(i), "item %d", first+i)
	}
}

func TestBuildItemsCancelled(t *testing.T) {
	c := patternCache(t, "test key 000")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	words := make([]uint64, 16*8)
	require.ErrorIs(t, buildItems(ctx, c, words, 0, 16, 2), context.Canceled)
}

func TestConfigurationErrors(t *testing.T) {
	_, err := NewCache(context.Background(), nil, nil)
	require.ErrorIs(t, err, rxerrors.ErrCEmptyKey)

	c := patternCache(t, "k")
	_, err = NewFullDataset(context.Background(), c, 0)
	require.ErrorIs(t, err, rxerrors.ErrCWorkerCount)

	_, err = NewCache(context.Background(), make([]byte, 61), nil)
	require.ErrorIs(t, err, rxerrors.ErrCSeedTooLong)
}

func TestCloseTwice(t *testing.T) {
	mem, err := Allocate(CacheSize)
	require.NoError(t, err)
	c := &Cache{mem: mem, words: mem.Words()}
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Close(), rxerrors.ErrRClosed)
}

func TestCacheVectors(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 fill of 256 MiB")
	}
	c, err := NewCache(context.Background(), []byte("test key 000"), nil)
	require.NoError(t, err)
	defer c.Close()

	words := c.Words()
	require.Equal(t, uint64(0x191e0e1d23c02186), words[0])
	require.Equal(t, uint64(0xf1b62fe6210bf8b1), words[1568413])
	require.Equal(t, uint64(0x1f47f056d05cd99b), words[33554431])

	require.Equal(t, uint64(0x680588a85ae222db), c.InitItem(0)[0])
	require.Equal(t, uint64(0x7943a1f6186ffb72), c.InitItem(10000000)[0])
	require.Equal(t, uint64(0x9035244d718095e1), c.InitItem(20000000)[0])
	require.Equal(t, uint64(0x145a5091f7853099), c.InitItem(30000000)[0])
}
