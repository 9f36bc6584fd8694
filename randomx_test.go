package randomx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/colorfulnotion/randomx/common"
	"github.com/colorfulnotion/randomx/dataset"
	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hashVectors = []struct {
	key, input, want string
}{
	{"test key 000", "This is a test", "639183aae1bf4c9a35884cb46b09cad9175f04efd7684e7262a0ac1c2f0b4e3f"},
	{"test key 000", "Lorem ipsum dolor sit amet", "300a0adb47603dedb42228ccb2b211104f4da45af709cd7547cd049e9489c969"},
	{"test key 000", "sed do eiusmod tempor incididunt ut labore et dolore magna aliqua", "c36d4ed4191e617309867ed66a443be4075014e2b061bcdaf9ce7b721d2b77a8"},
	{"test key 001", "sed do eiusmod tempor incididunt ut labore et dolore magna aliqua", "e9ff4503201c0c2cca26d285c93ae883f9b1d30c9eb240b820756f2d5a7905fc"},
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHashVectors(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	h := newTestHasher(t, DefaultConfig())
	for _, v := range hashVectors {
		got, err := h.Hash(context.Background(), []byte(v.key), []byte(v.input))
		require.NoError(t, err)
		assert.Equal(t, v.want, got.Plain(), "%s / %s", v.key, v.input)
	}
}

func TestVerifyHash(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	h := newTestHasher(t, DefaultConfig())
	v := hashVectors[0]
	ctx := context.Background()

	require.NoError(t, h.VerifyHash(ctx, []byte(v.key), []byte(v.input), common.HexToHash(v.want)))

	err := h.VerifyHash(ctx, []byte(v.key), []byte(v.input+"!"), common.HexToHash(v.want))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rxerrors.ErrHMismatch))
	assert.Equal(t, "Mismatch", rxerrors.GetErrorName(err))
}

func TestHashConcurrentAndEviction(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	cfg := DefaultConfig()
	cfg.CacheSize = 1
	h := newTestHasher(t, cfg)

	var wg sync.WaitGroup
	errs := make([]error, len(hashVectors))
	got := make([]common.Hash, len(hashVectors))
	for i, v := range hashVectors {
		wg.Add(1)
		go func(i int, key, input string) {
			defer wg.Done()
			got[i], errs[i] = h.Hash(context.Background(), []byte(key), []byte(input))
		}(i, v.key, v.input)
	}
	wg.Wait()
	for i, v := range hashVectors {
		require.NoError(t, errs[i])
		assert.Equal(t, v.want, got[i].Plain())
	}
	assert.Equal(t, 1, h.entries.Len())
}

func TestCachedKeyNotBlockedByBuild(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	h := newTestHasher(t, DefaultConfig())
	ctx := context.Background()
	cached := hashVectors[0]

	errBuild := errors.New("build aborted")
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var builds atomic.Int32
	h.newCache = func(ctx context.Context, key []byte, store dataset.Store) (*dataset.Cache, error) {
		if string(key) != "slow key" {
			return dataset.NewCache(ctx, key, store)
		}
		builds.Add(1)
		close(entered)
		<-unblock
		return nil, errBuild
	}

	_, err := h.Hash(ctx, []byte(cached.key), []byte(cached.input))
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := h.Hash(ctx, []byte("slow key"), []byte("x"))
		slowDone <- err
	}()
	<-entered

	done := make(chan common.Hash, 1)
	go func() {
		out, err := h.Hash(ctx, []byte(cached.key), []byte(cached.input))
		assert.NoError(t, err)
		done <- out
	}()
	select {
	case out := <-done:
		assert.Equal(t, cached.want, out.Plain())
	case <-time.After(time.Minute):
		t.Fatal("hash of a cached key waited for another key's build")
	}

	close(unblock)
	assert.True(t, errors.Is(<-slowDone, errBuild))
	assert.Equal(t, int32(1), builds.Load())
	assert.Empty(t, h.building)
}

func TestWaiterHonoursContext(t *testing.T) {
	h := newTestHasher(t, DefaultConfig())
	entered := make(chan struct{})
	unblock := make(chan struct{})
	h.newCache = func(ctx context.Context, key []byte, store dataset.Store) (*dataset.Cache, error) {
		close(entered)
		<-unblock
		return nil, rxerrors.ErrRCacheAlloc
	}

	first := make(chan error, 1)
	go func() {
		_, err := h.Hash(context.Background(), []byte("k"), []byte("x"))
		first <- err
	}()
	<-entered

	// a second caller for the same key waits on the running build
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.Hash(ctx, []byte("k"), []byte("x"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(unblock)
	assert.True(t, errors.Is(<-first, rxerrors.ErrRCacheAlloc))
}

func TestHashPersistedCache(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	v := hashVectors[0]

	h, err := NewHasher(cfg)
	require.NoError(t, err)
	first, err := h.Hash(context.Background(), []byte(v.key), []byte(v.input))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	// second hasher loads the Argon2 fill from disk
	h = newTestHasher(t, cfg)
	second, err := h.Hash(context.Background(), []byte(v.key), []byte(v.input))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, v.want, second.Plain())
}

func TestHashErrors(t *testing.T) {
	h := newTestHasher(t, DefaultConfig())
	ctx := context.Background()

	_, err := h.Hash(ctx, nil, []byte("x"))
	assert.True(t, errors.Is(err, rxerrors.ErrCEmptyKey))

	_, err = h.Hash(ctx, make([]byte, 61), []byte("x"))
	assert.True(t, errors.Is(err, rxerrors.ErrCSeedTooLong))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Hash(cctx, []byte("k"), []byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))

	require.NoError(t, h.Close())
	_, err = h.Hash(ctx, []byte("k"), []byte("x"))
	assert.True(t, errors.Is(err, rxerrors.ErrRClosed))
	assert.True(t, errors.Is(h.Close(), rxerrors.ErrRClosed))
}

func TestNewHasherWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FullMem = true
	cfg.Workers = 0
	_, err := NewHasher(cfg)
	assert.True(t, errors.Is(err, rxerrors.ErrCWorkerCount))
}

func TestFirstProgram(t *testing.T) {
	a := FirstProgram([]byte("This is a test"))
	b := FirstProgram([]byte("This is a test"))
	c := FirstProgram([]byte("This is a tesu"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for i := 0; i < program.Size; i++ {
		assert.NotEmpty(t, program.Decode(uint64(a.At(i))).String())
	}
}

func TestSuperscalarPrograms(t *testing.T) {
	progs, err := SuperscalarPrograms([]byte("test key 000"))
	require.NoError(t, err)
	require.Len(t, progs, 8)
	again, err := SuperscalarPrograms([]byte("test key 000"))
	require.NoError(t, err)
	for i := range progs {
		assert.Equal(t, progs[i].String(), again[i].String())
		assert.NotZero(t, progs[i].Size())
	}

	_, err = SuperscalarPrograms(nil)
	assert.True(t, errors.Is(err, rxerrors.ErrCEmptyKey))
}
