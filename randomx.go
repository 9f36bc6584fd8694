package randomx

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/colorfulnotion/randomx/common"
	"github.com/colorfulnotion/randomx/dataset"
	"github.com/colorfulnotion/randomx/generator"
	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/colorfulnotion/randomx/storage"
	"github.com/colorfulnotion/randomx/superscalar"
	"github.com/colorfulnotion/randomx/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/colorfulnotion/randomx")

// Config selects how a Hasher materialises datasets.
type Config struct {
	FullMem   bool   // build the full dataset instead of computing items on demand
	Workers   int    // goroutines used for a full dataset build
	CacheDir  string // leveldb directory for Argon2 caches; "" disables persistence
	CacheSize int    // number of keys kept in memory
}

func DefaultConfig() Config {
	return Config{
		Workers:   runtime.NumCPU(),
		CacheSize: 2,
	}
}

// entry is one key's cache and dataset. It is closed once it has been evicted
// and the last Hash using it has returned.
type entry struct {
	id      common.Hash
	cache   *dataset.Cache
	full    *dataset.FullDataset
	ds      vm.Dataset
	refs    int
	evicted bool
}

func (e *entry) close() {
	if e.full != nil {
		if err := e.full.Close(); err != nil {
			log.Warn(log.HasherMonitoring, "dataset close", "key", e.id.Short(), "err", err)
		}
	}
	if err := e.cache.Close(); err != nil {
		log.Warn(log.HasherMonitoring, "cache close", "key", e.id.Short(), "err", err)
	}
	log.Debug(log.HasherMonitoring, "key released", "key", e.id.Short())
}

// Hasher computes hashes for any number of keys. It is safe for concurrent use;
// each call runs on its own machine.
type Hasher struct {
	cfg Config

	mu       sync.Mutex
	entries  *lru.Cache[common.Hash, *entry]
	building map[common.Hash]*pendingBuild
	closed   bool

	newCache func(ctx context.Context, key []byte, store dataset.Store) (*dataset.Cache, error)

	ps    *storage.PersistenceStore
	store *storage.CacheStore

	machines sync.Pool
}

func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 1
	}
	if cfg.FullMem && cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: %d", rxerrors.ErrCWorkerCount, cfg.Workers)
	}
	h := &Hasher{
		cfg:      cfg,
		building: make(map[common.Hash]*pendingBuild),
		newCache: dataset.NewCache,
	}
	h.machines.New = func() any { return vm.NewMachine(nil) }

	entries, err := lru.NewWithEvict[common.Hash, *entry](cfg.CacheSize, h.onEvict)
	if err != nil {
		return nil, err
	}
	h.entries = entries

	if cfg.CacheDir != "" {
		ps, err := storage.NewPersistenceStore(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache dir %s: %w", cfg.CacheDir, err)
		}
		h.ps = ps
		h.store = storage.NewCacheStore(ps)
	}
	return h, nil
}

// onEvict runs with h.mu held.
func (h *Hasher) onEvict(_ common.Hash, e *entry) {
	e.evicted = true
	if e.refs == 0 {
		e.close()
	}
}

// pendingBuild marks a key whose cache is being built. err is set before
// done is closed.
type pendingBuild struct {
	done chan struct{}
	err  error
}

// acquire returns the entry for key with a reference held. h.mu guards only
// the bookkeeping; the Argon2 fill and dataset build run outside it, and
// callers asking for a key that is being built wait for that build.
func (h *Hasher) acquire(ctx context.Context, key []byte) (*entry, error) {
	id := common.KeyID(key)
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, rxerrors.ErrRClosed
		}
		if e, ok := h.entries.Get(id); ok {
			e.refs++
			h.mu.Unlock()
			return e, nil
		}
		pb, building := h.building[id]
		if !building {
			pb = &pendingBuild{done: make(chan struct{})}
			h.building[id] = pb
			h.mu.Unlock()
			return h.buildEntry(ctx, id, key, pb)
		}
		h.mu.Unlock()

		select {
		case <-pb.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// a build aborted by its own caller's context is retried under ours
		if pb.err != nil && !errors.Is(pb.err, context.Canceled) && !errors.Is(pb.err, context.DeadlineExceeded) {
			return nil, pb.err
		}
	}
}

func (h *Hasher) buildEntry(ctx context.Context, id common.Hash, key []byte, pb *pendingBuild) (*entry, error) {
	e, err := h.newEntry(ctx, id, key)

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.building, id)
	pb.err = err
	close(pb.done)
	if err != nil {
		return nil, err
	}
	if h.closed {
		e.close()
		return nil, rxerrors.ErrRClosed
	}
	e.refs = 1
	h.entries.Add(id, e)
	log.Debug(log.HasherMonitoring, "key ready", "key", id.Short(), "full", h.cfg.FullMem, "cached", h.entries.Len())
	return e, nil
}

func (h *Hasher) newEntry(ctx context.Context, id common.Hash, key []byte) (*entry, error) {
	var store dataset.Store
	if h.store != nil {
		store = h.store
	}
	cache, err := h.newCache(ctx, key, store)
	if err != nil {
		return nil, err
	}
	e := &entry{id: id, cache: cache, ds: dataset.NewLightDataset(cache)}
	if h.cfg.FullMem {
		full, err := dataset.NewFullDataset(ctx, cache, h.cfg.Workers)
		if err != nil {
			cache.Close()
			return nil, err
		}
		e.full = full
		e.ds = full
	}
	return e, nil
}

func (h *Hasher) release(e *entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.evicted {
		e.close()
	}
}

// Hash returns the 32-byte hash of input under key.
func (h *Hasher) Hash(ctx context.Context, key, input []byte) (common.Hash, error) {
	ctx, span := tracer.Start(ctx, "randomx.Hash")
	defer span.End()
	span.SetAttributes(attribute.Int("input.len", len(input)))

	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	e, err := h.acquire(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, rxerrors.GetErrorName(err))
		return common.Hash{}, err
	}
	defer h.release(e)

	m := h.machines.Get().(*vm.Machine)
	defer h.machines.Put(m)
	m.SetDataset(e.ds)

	start := time.Now()
	out := Compute(m, input)
	log.Trace(log.HasherMonitoring, "hash", "key", e.id.Short(), "out", out.Short(), "elapsed", time.Since(start))
	return out, nil
}

// VerifyHash recomputes the hash of input and compares it with expected.
func (h *Hasher) VerifyHash(ctx context.Context, key, input []byte, expected common.Hash) error {
	got, err := h.Hash(ctx, key, input)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("%w: got %s want %s", rxerrors.ErrHMismatch, got.Hex(), expected.Hex())
	}
	return nil
}

// Close releases every cache not in use and rejects further hashes. Caches
// still held by running hashes are released when those return.
func (h *Hasher) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return rxerrors.ErrRClosed
	}
	h.closed = true
	h.entries.Purge()
	if h.ps != nil {
		return h.ps.Close()
	}
	return nil
}

// Compute runs the eight chained programs for input on m, whose dataset must
// already be set.
func Compute(m *vm.Machine, input []byte) common.Hash {
	tempHash := common.Blake2b512(input)
	generator.Fill1R(&tempHash, m.Scratchpad().Bytes())
	m.ResetRounding()

	var buf [program.BufferSize]byte
	for chain := 0; chain < vm.ProgramCount; chain++ {
		generator.Fill4R(&tempHash, buf[:])
		p, err := program.Parse(buf[:])
		if err != nil {
			rxerrors.Invariant("hash", "program %d: %v", chain, err)
		}
		if err := m.Load(p); err != nil {
			rxerrors.Invariant("hash", "program %d: %v", chain, err)
		}
		m.Run()
		if chain < vm.ProgramCount-1 {
			tempHash = common.Blake2b512(m.RegisterFile().Bytes())
		}
	}

	a := generator.Hash1R(m.Scratchpad().Bytes())
	m.RegisterFile().SetABytes(a[:])
	return common.Blake2b256(m.RegisterFile().Bytes())
}

// FirstProgram returns the first program that hashing input would run. It
// needs no cache.
func FirstProgram(input []byte) *program.Program {
	tempHash := common.Blake2b512(input)
	sp := new(vm.Scratchpad)
	generator.Fill1R(&tempHash, sp.Bytes())
	var buf [program.BufferSize]byte
	generator.Fill4R(&tempHash, buf[:])
	p, err := program.Parse(buf[:])
	if err != nil {
		rxerrors.Invariant("first program", "%v", err)
	}
	return p
}

// SuperscalarPrograms generates the dataset programs of key without filling
// the Argon2 cache.
func SuperscalarPrograms(key []byte) ([]*superscalar.Program, error) {
	if len(key) == 0 {
		return nil, rxerrors.ErrCEmptyKey
	}
	gen, err := generator.NewBlake2Generator(key, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*superscalar.Program, dataset.CacheAccesses)
	for i := range out {
		out[i] = superscalar.Generate(gen)
	}
	return out, nil
}
