package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/colorfulnotion/randomx/argon2"
	"github.com/colorfulnotion/randomx/common"
	"github.com/colorfulnotion/randomx/generator"
	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/colorfulnotion/randomx/superscalar"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ArgonMemory     = 262144
	ArgonIterations = 3
	ArgonLanes      = 1
	ArgonSalt       = "RandomX\x03"
	CacheAccesses   = 8

	CacheSize        = ArgonMemory * argon2.BlockSize
	DatasetBaseSize  = 2147483648
	DatasetExtraSize = 33554368
	ItemSize         = 64
	ItemCount        = (DatasetBaseSize + DatasetExtraSize) / ItemSize

	cacheLineMask = CacheSize/ItemSize - 1
)

// item initialisation constants
const (
	superscalarMul0 = 6364136223846793005
	superscalarAdd1 = 9298411001130361340
	superscalarAdd2 = 12065312585734608966
	superscalarAdd3 = 9306329213124626780
	superscalarAdd4 = 5281919268842080866
	superscalarAdd5 = 10536153434571861004
	superscalarAdd6 = 3398623926847679864
	superscalarAdd7 = 9549104520008361294
)

var tracer = otel.Tracer("github.com/colorfulnotion/randomx/dataset")

// Store persists the Argon2 part of a cache between runs.
type Store interface {
	LoadCache(key []byte, mem []byte) (bool, error)
	SaveCache(key []byte, mem []byte) error
}

// Cache is the Argon2d filled memory and the superscalar programs derived
// from one key. It is read-only once built and safe for concurrent use.
type Cache struct {
	key      []byte
	mem      *Memory
	words    []uint64
	programs [CacheAccesses]*superscalar.Program
}

// NewCache builds the cache for key. When store is not nil the Argon2 fill is
// loaded from it if present and saved to it otherwise.
func NewCache(ctx context.Context, key []byte, store Store) (*Cache, error) {
	if len(key) == 0 {
		return nil, rxerrors.ErrCEmptyKey
	}
	gen, err := generator.NewBlake2Generator(key, 0)
	if err != nil {
		return nil, err
	}
	_, span := tracer.Start(ctx, "dataset.NewCache")
	defer span.End()
	span.SetAttributes(attribute.String("key.id", common.KeyID(key).Hex()))

	mem, err := Allocate(CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rxerrors.ErrRCacheAlloc, err)
	}
	c := &Cache{key: append([]byte(nil), key...), mem: mem, words: mem.Words()}
	start := time.Now()

	loaded := false
	if store != nil {
		loaded, err = store.LoadCache(key, mem.Bytes())
		if err != nil {
			log.Warn(log.CacheMonitoring, "stored cache unusable, recomputing", "key", common.KeyID(key).Short(), "err", err)
			loaded = false
		}
	}
	if !loaded {
		argon2.Fill(c.words, argon2.Params{
			Password: key,
			Salt:     []byte(ArgonSalt),
			Time:     ArgonIterations,
			Memory:   ArgonMemory,
			Lanes:    ArgonLanes,
		})
		if store != nil {
			if err := store.SaveCache(key, mem.Bytes()); err != nil {
				log.Warn(log.CacheMonitoring, "cache not persisted", "key", common.KeyID(key).Short(), "err", err)
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache.loaded", loaded))

	c.generatePrograms(gen)
	log.Info(log.CacheMonitoring, "cache ready", "key", common.KeyID(key).Short(), "loaded", loaded, "elapsed", time.Since(start))
	return c, nil
}

func (c *Cache) generatePrograms(gen superscalar.ByteSource) {
	for i := range c.programs {
		c.programs[i] = superscalar.Generate(gen)
		log.Debug(log.SuperscalarMonitoring, "superscalar program", "index", i, "size", c.programs[i].Size(),
			"addressReg", c.programs[i].AddressRegister, "mulCount", c.programs[i].Metrics.MulCount)
	}
}

func (c *Cache) Key() []byte { return c.key }

// Program returns superscalar program i of the cache.
func (c *Cache) Program(i int) *superscalar.Program { return c.programs[i] }

// Words exposes the Argon2 memory for persistence.
func (c *Cache) Words() []uint64 { return c.words }

func (c *Cache) Close() error {
	if c.mem == nil {
		return rxerrors.ErrRClosed
	}
	err := c.mem.Close()
	c.mem = nil
	c.words = nil
	return err
}

// InitItem computes dataset item itemNumber by chaining the superscalar
// programs over the cache.
func (c *Cache) InitItem(itemNumber uint64) (rl [8]uint64) {
	registerValue := itemNumber
	rl[0] = (itemNumber + 1) * superscalarMul0
	rl[1] = rl[0] ^ superscalarAdd1
	rl[2] = rl[0] ^ superscalarAdd2
	rl[3] = rl[0] ^ superscalarAdd3
	rl[4] = rl[0] ^ superscalarAdd4
	rl[5] = rl[0] ^ superscalarAdd5
	rl[6] = rl[0] ^ superscalarAdd6
	rl[7] = rl[0] ^ superscalarAdd7
	for _, prog := range c.programs {
		off := (registerValue & cacheLineMask) * 8
		mix := c.words[off : off+8 : off+8]
		prog.Execute(&rl)
		for q := range rl {
			rl[q] ^= mix[q]
		}
		registerValue = rl[prog.AddressRegister]
	}
	return rl
}
